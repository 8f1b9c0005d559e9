package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/smsbatch/smsbatch/internal/domain/group"
	"github.com/smsbatch/smsbatch/internal/domain/subscriber"
	ierr "github.com/smsbatch/smsbatch/internal/errors"
	"github.com/smsbatch/smsbatch/internal/integration/textit"
	"github.com/smsbatch/smsbatch/internal/metrics"
	"github.com/smsbatch/smsbatch/internal/sentry"
	"github.com/smsbatch/smsbatch/internal/types"
	"github.com/sourcegraph/conc/pool"
)

// SubscriberService splits subscriber lists into batches and provisions one
// remote group per batch
type SubscriberService interface {
	Ingest(ctx context.Context, req subscriber.IngestRequest) (*subscriber.IngestionResult, error)
	IngestAllSubscribers(ctx context.Context, req subscriber.IngestRequest) (*subscriber.IngestionResult, error)
	CollectGroupMembers(ctx context.Context, groupID string) ([]string, error)
}

type subscriberService struct {
	ServiceParams
	provisioner GroupProvisioner
	newNamer    func(prefix string) GroupNamer
}

func NewSubscriberService(params ServiceParams, provisioner GroupProvisioner) SubscriberService {
	return &subscriberService{
		ServiceParams: params,
		provisioner:   provisioner,
		newNamer: func(prefix string) GroupNamer {
			return NewGroupNamer(prefix, time.Now())
		},
	}
}

type batchOutcome struct {
	group   *group.Group
	failure *subscriber.BatchFailure
}

func (o batchOutcome) finished() bool {
	return o.group != nil || o.failure != nil
}

// outcomeSlots holds one outcome per batch. Slots are read while tasks may
// still be writing when ingestion is cancelled.
type outcomeSlots struct {
	mu       sync.Mutex
	outcomes []batchOutcome
}

func (o *outcomeSlots) set(index int, outcome batchOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[index] = outcome
}

func (o *outcomeSlots) snapshot() []batchOutcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]batchOutcome(nil), o.outcomes...)
}

// Ingest provisions a group for every batch of req.Subscribers. Batches run
// on a bounded pool and the result lists them in batch order. When some
// batches fail the result is returned together with an
// ErrPartialProvisioning error. When ctx is cancelled first the result holds
// the batches that finished and the error is marked ErrCancelled.
func (s *subscriberService) Ingest(ctx context.Context, req subscriber.IngestRequest) (*subscriber.IngestionResult, error) {
	batchSize := lo.Ternary(req.BatchSize > 0, req.BatchSize, s.Config.Ingestion.BatchSize)
	prefix := lo.Ternary(strings.TrimSpace(req.NamePrefix) != "", req.NamePrefix, s.Config.Ingestion.GroupNamePrefix)

	batches, err := subscriber.PlanBatches(req.Subscribers, batchSize)
	if err != nil {
		return nil, err
	}

	result := &subscriber.IngestionResult{
		ID:                  types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INGESTION),
		NumberOfSubscribers: len(req.Subscribers),
		NumberOfGroups:      len(batches),
		Groups:              make([]group.Summary, 0, len(batches)),
	}
	log := s.Logger.With("ingestion_id", result.ID)

	if len(batches) == 0 {
		return result, nil
	}

	outcomes, cancelled := s.provisionAll(ctx, batches, s.newNamer(prefix))
	for _, o := range outcomes {
		switch {
		case o.failure != nil:
			result.FailedBatches = append(result.FailedBatches, *o.failure)
			s.Metrics.ObserveBatch(metrics.OutcomeFailed, o.failure.Size)
		case o.group != nil:
			result.Groups = append(result.Groups, o.group.Summary())
			s.Metrics.ObserveBatch(metrics.OutcomeProvisioned, o.group.Count)
		}
	}

	if cancelled != nil {
		provisioned := lo.Map(result.Groups, func(g group.Summary, _ int) string { return g.UUID })
		log.Warnw("ingestion cancelled",
			"error", cancelled,
			"provisioned_groups", len(provisioned),
			"batches", len(batches))
		return result, ierr.WithError(cancelled).
			WithHintf("Ingestion was cancelled after %d of %d groups were provisioned", len(provisioned), len(batches)).
			WithReportableDetails(map[string]any{
				"ingestion_id":       result.ID,
				"provisioned_groups": provisioned,
				"failed_batches":     result.FailedIndices(),
			}).
			Mark(ierr.ErrCancelled)
	}

	log.Debugf("finished creating %d batches for %d subscribers", len(batches), len(req.Subscribers))

	if result.Failed() {
		log.Warnw("some batches failed to provision",
			"failed_batches", result.FailedIndices(),
			"groups", len(result.Groups))
		return result, ierr.NewError("some batches failed to provision").
			WithHintf("%d of %d groups could not be provisioned", len(result.FailedBatches), len(batches)).
			WithReportableDetails(map[string]any{
				"failed_batches": result.FailedIndices(),
			}).
			Mark(ierr.ErrPartialProvisioning)
	}
	return result, nil
}

// provisionAll returns one outcome per batch, indexed like batches. When ctx
// is done before every task finished it returns right away with the slots
// filled so far and ctx's error; unfinished slots are zero.
func (s *subscriberService) provisionAll(ctx context.Context, batches []subscriber.Batch, namer GroupNamer) ([]batchOutcome, error) {
	slots := &outcomeSlots{outcomes: make([]batchOutcome, len(batches))}

	p := pool.New().
		WithContext(ctx).
		WithMaxGoroutines(s.Config.Ingestion.Concurrency)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, batch := range batches {
			batch := batch
			name := namer.Name(batch.Index)
			p.Go(func(ctx context.Context) error {
				slots.set(batch.Index, s.provisionBatch(ctx, batch, name))
				return nil
			})
		}
		_ = p.Wait()
	}()

	select {
	case <-done:
		return slots.snapshot(), nil
	case <-ctx.Done():
	}

	// both may be ready at once
	select {
	case <-done:
		return slots.snapshot(), nil
	default:
	}
	return lo.Filter(slots.snapshot(), func(o batchOutcome, _ int) bool { return o.finished() }), ctx.Err()
}

func (s *subscriberService) provisionBatch(ctx context.Context, batch subscriber.Batch, name string) batchOutcome {
	span, ctx := s.Sentry.StartProvisionSpan(ctx, batch.Index, name)
	defer sentry.FinishSpan(span)

	g, err := s.provisioner.Provision(ctx, batch, name)
	if err == nil {
		return batchOutcome{group: g}
	}

	failure := &subscriber.BatchFailure{
		Index:     batch.Index,
		Size:      batch.Size(),
		GroupName: name,
		Stage:     subscriber.StageCreateGroup,
		Error:     err.Error(),
	}
	var perr *ProvisionError
	if errors.As(err, &perr) {
		failure.Stage = perr.Stage
		failure.GroupUUID = perr.GroupUUID
		failure.Error = perr.Err.Error()
	}
	s.Sentry.AddBreadcrumb("ingestion", "batch failed", map[string]interface{}{
		"batch_index": failure.Index,
		"group_name":  failure.GroupName,
		"stage":       string(failure.Stage),
		"error":       failure.Error,
	})
	return batchOutcome{failure: failure}
}

// IngestAllSubscribers ingests every member of the configured all
// subscribers group
func (s *subscriberService) IngestAllSubscribers(ctx context.Context, req subscriber.IngestRequest) (*subscriber.IngestionResult, error) {
	members, err := s.CollectGroupMembers(ctx, s.Config.TextIt.AllSubscribersGroup)
	if err != nil {
		return nil, err
	}
	req.Subscribers = members
	return s.Ingest(ctx, req)
}

// CollectGroupMembers returns the UUIDs of every contact in a group by
// following the next links of the contact list
func (s *subscriberService) CollectGroupMembers(ctx context.Context, groupID string) ([]string, error) {
	page, err := s.TextIt.ListContactsByGroup(ctx, groupID, "")
	if err != nil {
		return nil, collectError(ctx, err)
	}

	members := make([]string, 0, len(page.Results))
	seen := make(map[string]struct{})
	for {
		for _, c := range page.Results {
			members = append(members, c.UUID)
		}
		if page.Next == "" {
			break
		}
		if ctx.Err() != nil {
			return nil, collectError(ctx, ctx.Err())
		}
		if _, ok := seen[page.Next]; ok {
			return nil, ierr.NewError("contact pagination loops").
				WithHintf("TextIt returned the page %s twice", page.Next).
				Mark(ierr.ErrHTTPClient)
		}
		seen[page.Next] = struct{}{}

		body, err := s.TextIt.GetByURL(ctx, page.Next)
		if err != nil {
			return nil, collectError(ctx, err)
		}
		next := &textit.ContactPage{}
		if err := json.Unmarshal(body, next); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Malformed contact page from TextIt").
				Mark(ierr.ErrHTTPClient)
		}
		page = next
	}

	s.Logger.Debugw("collected group members", "group_uuid", groupID, "count", len(members))
	return members, nil
}

// collectError marks err as a cancellation when ctx is done, since the
// transport reports an aborted request like any other failure
func collectError(ctx context.Context, err error) error {
	if ctx.Err() == nil {
		return err
	}
	return ierr.WithError(err).
		WithHint("Collecting group members was cancelled").
		Mark(ierr.ErrCancelled)
}
