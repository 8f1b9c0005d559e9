package service

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/smsbatch/smsbatch/internal/domain/group"
	"github.com/smsbatch/smsbatch/internal/domain/subscriber"
	ierr "github.com/smsbatch/smsbatch/internal/errors"
	"github.com/smsbatch/smsbatch/internal/httpclient"
	"github.com/smsbatch/smsbatch/internal/integration/textit"
)

// GroupProvisioner creates one remote group per batch and enrolls its members
type GroupProvisioner interface {
	Provision(ctx context.Context, batch subscriber.Batch, name string) (*group.Group, error)
}

// ProvisionError reports the step a batch failed in. GroupUUID is set when
// the group was created but its membership could not be completed.
type ProvisionError struct {
	Stage     subscriber.Stage
	GroupUUID string
	Err       error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

type groupProvisioner struct {
	ServiceParams
}

func NewGroupProvisioner(params ServiceParams) GroupProvisioner {
	return &groupProvisioner{
		ServiceParams: params,
	}
}

// Provision creates the group called name and adds the batch members to it
func (p *groupProvisioner) Provision(ctx context.Context, batch subscriber.Batch, name string) (*group.Group, error) {
	log := p.Logger.With("batch_index", batch.Index, "group_name", name)

	created, err := p.createGroup(ctx, name)
	if err != nil {
		log.Warnw("failed to create group", "error", err)
		return nil, &ProvisionError{Stage: subscriber.StageCreateGroup, Err: err}
	}

	err = p.retry(ctx, func() error {
		return p.TextIt.AddContactsToGroup(ctx, batch.Members, created.UUID)
	})
	if err != nil {
		log.Warnw("failed to add contacts to group", "group_uuid", created.UUID, "error", err)
		return nil, &ProvisionError{Stage: subscriber.StageAddContacts, GroupUUID: created.UUID, Err: err}
	}

	log.Debugw("provisioned group", "group_uuid", created.UUID, "count", batch.Size())
	return &group.Group{
		UUID:  created.UUID,
		Name:  created.Name,
		Count: batch.Size(),
	}, nil
}

// createGroup retries failed creates, looking the name up first on every
// retry so a group created by an attempt that looked failed is reused.
func (p *groupProvisioner) createGroup(ctx context.Context, name string) (*textit.Group, error) {
	var created *textit.Group
	attempt := 0

	err := p.retry(ctx, func() error {
		attempt++
		if attempt > 1 {
			existing, err := p.TextIt.GetGroupByName(ctx, name)
			if err == nil {
				created = existing
				return nil
			}
			if !ierr.IsNotFound(err) {
				return err
			}
		}

		g, err := p.TextIt.CreateGroup(ctx, name)
		if err != nil {
			return err
		}
		created = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (p *groupProvisioner) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if p.Config.Ingestion.RetryInterval > 0 {
		b.InitialInterval = p.Config.Ingestion.RetryInterval
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(b, uint64(p.Config.Ingestion.RetryMax)),
		ctx,
	)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// isRetryable reports upstream 5xx responses and transport failures.
// Client errors such as a name collision will not change on retry.
func isRetryable(err error) bool {
	if _, ok := httpclient.IsHTTPError(err); ok {
		return httpclient.IsServerError(err)
	}
	return ierr.IsHTTPClient(err)
}
