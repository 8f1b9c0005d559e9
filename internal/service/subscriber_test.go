package service

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/smsbatch/smsbatch/internal/domain/group"
	"github.com/smsbatch/smsbatch/internal/domain/subscriber"
	ierr "github.com/smsbatch/smsbatch/internal/errors"
	"github.com/smsbatch/smsbatch/internal/integration/textit"
	"github.com/smsbatch/smsbatch/internal/testutil"
	"github.com/stretchr/testify/suite"
)

type SubscriberServiceSuite struct {
	testutil.BaseServiceTestSuite
	service *subscriberService
}

func TestSubscriberService(t *testing.T) {
	suite.Run(t, new(SubscriberServiceSuite))
}

// fixedNamer names groups "<prefix> #<n>" so tests can target a batch by name
type fixedNamer struct {
	prefix string
}

func (n fixedNamer) Name(batchIndex int) string {
	return fmt.Sprintf("%s #%d", n.prefix, batchIndex+1)
}

func (s *SubscriberServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.GetConfig().Ingestion.GroupNamePrefix = "Test"
	s.GetConfig().Ingestion.RetryInterval = time.Millisecond
	s.build()
}

// build wires the service against the in-memory TextIt. Call it again after
// changing the config.
func (s *SubscriberServiceSuite) build() {
	client, err := textit.NewClient(s.GetConfig(), s.GetTextIt(), s.GetLogger())
	s.Require().NoError(err)

	params := NewServiceParams(s.GetLogger(), s.GetConfig(), client, s.GetMetrics(), s.GetSentry())
	s.service = NewSubscriberService(params, NewGroupProvisioner(params)).(*subscriberService)
	s.service.newNamer = func(prefix string) GroupNamer {
		return fixedNamer{prefix: prefix}
	}
}

func subscriberIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("contact-%02d", i)
	}
	return out
}

func (s *SubscriberServiceSuite) TestIngestSplitsIntoBatches() {
	subs := subscriberIDs(25)

	result, err := s.service.Ingest(s.GetContext(), subscriber.IngestRequest{
		Subscribers: subs,
		BatchSize:   10,
	})
	s.Require().NoError(err)

	s.NotEmpty(result.ID)
	s.Equal(25, result.NumberOfSubscribers)
	s.Equal(3, result.NumberOfGroups)
	s.Empty(result.FailedBatches)
	s.Require().Len(result.Groups, 3)

	s.Equal([]int{10, 10, 5}, lo.Map(result.Groups, func(g group.Summary, _ int) int { return g.Count }))
	s.Equal([]string{"Test #1", "Test #2", "Test #3"}, lo.Map(result.Groups, func(g group.Summary, _ int) string { return g.Name }))

	for i, g := range result.Groups {
		id, members, ok := s.GetTextIt().Group(g.Name)
		s.Require().True(ok)
		s.Equal(id, g.UUID)
		s.Equal(subs[i*10:min(i*10+10, 25)], members)
	}
}

func (s *SubscriberServiceSuite) TestIngestUsesConfiguredBatchSizeAndPrefix() {
	s.GetConfig().Ingestion.BatchSize = 4
	s.build()

	result, err := s.service.Ingest(s.GetContext(), subscriber.IngestRequest{
		Subscribers: subscriberIDs(9),
		NamePrefix:  "Campaign",
	})
	s.Require().NoError(err)
	s.Equal(3, result.NumberOfGroups)
	s.Equal(
		[]string{"Campaign #1", "Campaign #2", "Campaign #3"},
		lo.Map(result.Groups, func(g group.Summary, _ int) string { return g.Name }),
	)
	s.ElementsMatch([]string{"Campaign #1", "Campaign #2", "Campaign #3"}, s.GetTextIt().GroupNames())
}

func (s *SubscriberServiceSuite) TestIngestNoSubscribers() {
	result, err := s.service.Ingest(s.GetContext(), subscriber.IngestRequest{
		Subscribers: []string{},
	})
	s.Require().NoError(err)
	s.Equal(0, result.NumberOfSubscribers)
	s.Equal(0, result.NumberOfGroups)
	s.NotNil(result.Groups)
	s.Empty(result.Groups)
	s.Empty(s.GetTextIt().Requests())
}

func (s *SubscriberServiceSuite) TestIngestRejectsInvalidBatchSize() {
	s.GetConfig().Ingestion.BatchSize = 0
	s.build()

	_, err := s.service.Ingest(s.GetContext(), subscriber.IngestRequest{
		Subscribers: subscriberIDs(3),
	})
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))
	s.Empty(s.GetTextIt().Requests(), "validation happens before any remote call")
}

func (s *SubscriberServiceSuite) TestIngestPartialFailure() {
	s.GetTextIt().FailCreateGroup("Test #2", http.StatusInternalServerError)

	result, err := s.service.Ingest(s.GetContext(), subscriber.IngestRequest{
		Subscribers: subscriberIDs(25),
		BatchSize:   10,
	})
	s.Require().Error(err)
	s.True(ierr.IsPartialProvisioning(err))
	s.Require().NotNil(result)

	s.Equal(3, result.NumberOfGroups)
	s.Equal([]string{"Test #1", "Test #3"}, lo.Map(result.Groups, func(g group.Summary, _ int) string { return g.Name }))
	s.Require().Len(result.FailedBatches, 1)

	failure := result.FailedBatches[0]
	s.Equal(1, failure.Index)
	s.Equal(10, failure.Size)
	s.Equal("Test #2", failure.GroupName)
	s.Equal(subscriber.StageCreateGroup, failure.Stage)
	s.Empty(failure.GroupUUID)
	s.NotEmpty(failure.Error)
	s.Equal([]int{1}, result.FailedIndices())
}

func (s *SubscriberServiceSuite) TestIngestAddContactsFailureReportsGroup() {
	s.GetTextIt().FailAddContacts("Test #1", http.StatusInternalServerError)

	result, err := s.service.Ingest(s.GetContext(), subscriber.IngestRequest{
		Subscribers: subscriberIDs(4),
		BatchSize:   2,
	})
	s.Require().Error(err)
	s.True(ierr.IsPartialProvisioning(err))
	s.Require().Len(result.FailedBatches, 1)

	groupID, members, ok := s.GetTextIt().Group("Test #1")
	s.Require().True(ok)
	s.Empty(members)

	failure := result.FailedBatches[0]
	s.Equal(subscriber.StageAddContacts, failure.Stage)
	s.Equal(groupID, failure.GroupUUID)
}

func (s *SubscriberServiceSuite) TestIngestKeepsBatchOrder() {
	s.GetConfig().Ingestion.Concurrency = 4
	s.build()
	s.GetTextIt().DelayCreateGroup("Test #1", 80*time.Millisecond)
	s.GetTextIt().DelayAddContacts("Test #2", 40*time.Millisecond)

	result, err := s.service.Ingest(s.GetContext(), subscriber.IngestRequest{
		Subscribers: subscriberIDs(8),
		BatchSize:   2,
	})
	s.Require().NoError(err)
	s.Equal(
		[]string{"Test #1", "Test #2", "Test #3", "Test #4"},
		lo.Map(result.Groups, func(g group.Summary, _ int) string { return g.Name }),
	)
	s.NotEqual("Test #1", s.GetTextIt().GroupNames()[0], "the delayed batch finishes last remotely")
}

func (s *SubscriberServiceSuite) TestIngestCancelled() {
	s.GetTextIt().DelayCreateGroup("Test #1", 5*time.Second)

	ctx, cancel := context.WithCancel(s.GetContext())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	result, err := s.service.Ingest(ctx, subscriber.IngestRequest{
		Subscribers: subscriberIDs(2),
		BatchSize:   1,
	})
	s.Require().Error(err)
	s.True(ierr.Is(err, ierr.ErrCancelled))
	s.Less(time.Since(start), 2*time.Second)

	s.Require().NotNil(result, "finished batches are kept")
	s.Equal(2, result.NumberOfGroups)
	s.Equal([]string{"Test #2"}, lo.Map(result.Groups, func(g group.Summary, _ int) string { return g.Name }))

	groupID, _, ok := s.GetTextIt().Group("Test #2")
	s.Require().True(ok)
	s.Equal(groupID, result.Groups[0].UUID)
}

// cancellingProvisioner succeeds for every batch and cancels the ingestion
// context while provisioning batch cancelAt
type cancellingProvisioner struct {
	cancelAt int
	cancel   context.CancelFunc
}

func (p *cancellingProvisioner) Provision(_ context.Context, batch subscriber.Batch, name string) (*group.Group, error) {
	if batch.Index == p.cancelAt {
		p.cancel()
	}
	return &group.Group{UUID: fmt.Sprintf("uuid-%d", batch.Index), Name: name, Count: batch.Size()}, nil
}

func (s *SubscriberServiceSuite) TestIngestCancelledAfterLastBatchKeepsResult() {
	s.GetConfig().Ingestion.Concurrency = 1
	s.build()

	ctx, cancel := context.WithCancel(s.GetContext())
	defer cancel()
	s.service.provisioner = &cancellingProvisioner{cancelAt: 1, cancel: cancel}

	result, err := s.service.Ingest(ctx, subscriber.IngestRequest{
		Subscribers: subscriberIDs(4),
		BatchSize:   2,
	})
	if err != nil {
		s.True(ierr.Is(err, ierr.ErrCancelled))
	}
	s.Require().NotNil(result)
	s.Empty(result.FailedBatches)
	s.Require().NotEmpty(result.Groups)
	s.Equal("Test #1", result.Groups[0].Name)
	s.Equal("uuid-0", result.Groups[0].UUID)
	s.LessOrEqual(len(result.Groups), 2)
}

func (s *SubscriberServiceSuite) TestProvisionAllReturnsEveryOutcomeWhenDone() {
	ctx, cancel := context.WithCancel(s.GetContext())
	defer cancel()
	s.service.provisioner = &cancellingProvisioner{cancelAt: -1, cancel: cancel}

	batches, err := subscriber.PlanBatches(subscriberIDs(6), 2)
	s.Require().NoError(err)

	outcomes, err := s.service.provisionAll(ctx, batches, fixedNamer{prefix: "Test"})
	s.Require().NoError(err)
	s.Require().Len(outcomes, 3)
	for i, o := range outcomes {
		s.Require().NotNil(o.group)
		s.Equal(fmt.Sprintf("uuid-%d", i), o.group.UUID)
	}
}

func (s *SubscriberServiceSuite) TestProvisionReusesGroupCreatedByFailedAttempt() {
	s.GetConfig().Ingestion.RetryMax = 2
	s.build()
	s.GetTextIt().FailCreateGroupOnce("Test #1", http.StatusBadGateway, true)

	result, err := s.service.Ingest(s.GetContext(), subscriber.IngestRequest{
		Subscribers: subscriberIDs(3),
		BatchSize:   3,
	})
	s.Require().NoError(err)
	s.Require().Len(result.Groups, 1)

	s.Equal([]string{"Test #1"}, s.GetTextIt().GroupNames())
	s.Equal(1, s.GetTextIt().CountRequests(http.MethodPost, textit.ResourceGroups))

	groupID, members, _ := s.GetTextIt().Group("Test #1")
	s.Equal(groupID, result.Groups[0].UUID)
	s.Equal(subscriberIDs(3), members)
}

func (s *SubscriberServiceSuite) TestProvisionRetriesServerErrors() {
	s.GetConfig().Ingestion.RetryMax = 2
	s.build()
	s.GetTextIt().FailCreateGroupOnce("Test #1", http.StatusServiceUnavailable, false)

	result, err := s.service.Ingest(s.GetContext(), subscriber.IngestRequest{
		Subscribers: subscriberIDs(2),
		BatchSize:   2,
	})
	s.Require().NoError(err)
	s.Len(result.Groups, 1)
	s.Equal(2, s.GetTextIt().CountRequests(http.MethodPost, textit.ResourceGroups))
}

func (s *SubscriberServiceSuite) TestProvisionDoesNotRetryClientErrors() {
	s.GetConfig().Ingestion.RetryMax = 2
	s.build()
	s.GetTextIt().AddGroup("Test #1")

	result, err := s.service.Ingest(s.GetContext(), subscriber.IngestRequest{
		Subscribers: subscriberIDs(2),
		BatchSize:   2,
	})
	s.Require().Error(err)
	s.Require().Len(result.FailedBatches, 1)
	s.Equal(subscriber.StageCreateGroup, result.FailedBatches[0].Stage)
	s.Equal(1, s.GetTextIt().CountRequests(http.MethodPost, textit.ResourceGroups))
}

func (s *SubscriberServiceSuite) TestIngestAllSubscribers() {
	fake := s.GetTextIt()
	allID := fake.AddGroup("All Subscribers")
	for _, id := range subscriberIDs(5) {
		fake.AddContact(id, "Contact "+id, allID)
	}
	fake.AddContact("outsider", "Not subscribed")
	fake.PageSize = 2

	s.GetConfig().TextIt.AllSubscribersGroup = allID
	s.build()

	result, err := s.service.IngestAllSubscribers(s.GetContext(), subscriber.IngestRequest{BatchSize: 2})
	s.Require().NoError(err)
	s.Equal(5, result.NumberOfSubscribers)
	s.Equal(3, result.NumberOfGroups)

	_, last, ok := fake.Group("Test #3")
	s.Require().True(ok)
	s.Equal([]string{"contact-04"}, last)
}

func (s *SubscriberServiceSuite) TestCollectGroupMembersUnknownGroup() {
	members, err := s.service.CollectGroupMembers(s.GetContext(), "missing")
	s.Require().NoError(err)
	s.Empty(members)
}

func (s *SubscriberServiceSuite) TestCollectGroupMembersCancelled() {
	fake := s.GetTextIt()
	allID := fake.AddGroup("All Subscribers")
	fake.AddContact("contact-01", "Contact", allID)

	ctx, cancel := context.WithCancel(s.GetContext())
	cancel()

	members, err := s.service.CollectGroupMembers(ctx, allID)
	s.Require().Error(err)
	s.Nil(members)
	s.True(ierr.Is(err, ierr.ErrCancelled))
	s.Equal(http.StatusRequestTimeout, ierr.HTTPStatusFromErr(err))
}

func (s *SubscriberServiceSuite) TestIngestAllSubscribersCancelledWhilePaging() {
	fake := s.GetTextIt()
	allID := fake.AddGroup("All Subscribers")
	for _, id := range subscriberIDs(5) {
		fake.AddContact(id, "Contact "+id, allID)
	}
	fake.PageSize = 2

	s.GetConfig().TextIt.AllSubscribersGroup = allID
	s.build()

	ctx, cancel := context.WithCancel(s.GetContext())
	cancel()

	result, err := s.service.IngestAllSubscribers(ctx, subscriber.IngestRequest{BatchSize: 2})
	s.Require().Error(err)
	s.Nil(result)
	s.True(ierr.Is(err, ierr.ErrCancelled))
	s.Empty(fake.GroupNames())
}
