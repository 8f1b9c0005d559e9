package dto

import (
	"github.com/samber/lo"
	"github.com/smsbatch/smsbatch/internal/domain/subscriber"
	ierr "github.com/smsbatch/smsbatch/internal/errors"
	"github.com/smsbatch/smsbatch/internal/validator"
)

// CreateSubscriberGroupsRequest asks for subscribers to be split into
// remote groups. Either Subscribers or AllSubscribers must be given.
type CreateSubscriberGroupsRequest struct {
	Subscribers    []string `json:"subscribers" validate:"omitempty,dive,required"`
	AllSubscribers bool     `json:"all_subscribers"`
	BatchSize      int      `json:"batch_size" validate:"gte=0"`
	NamePrefix     string   `json:"name_prefix" validate:"omitempty,max=48"`
}

func (r *CreateSubscriberGroupsRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	if r.AllSubscribers && len(r.Subscribers) > 0 {
		return ierr.NewError("subscribers and all_subscribers are mutually exclusive").
			WithHint("Provide either a subscriber list or all_subscribers, not both").
			Mark(ierr.ErrValidation)
	}

	if dupes := lo.FindDuplicates(r.Subscribers); len(dupes) > 0 {
		return ierr.NewError("duplicate subscribers").
			WithHint("Each subscriber may only be listed once").
			WithReportableDetails(map[string]any{"duplicates": dupes}).
			Mark(ierr.ErrValidation)
	}

	return nil
}

// ToIngestRequest maps the validated request to the ingestion input
func (r *CreateSubscriberGroupsRequest) ToIngestRequest() subscriber.IngestRequest {
	return subscriber.IngestRequest{
		Subscribers: lo.Ternary(r.Subscribers == nil, []string{}, r.Subscribers),
		BatchSize:   r.BatchSize,
		NamePrefix:  r.NamePrefix,
	}
}

// SubscriberGroupsResponse is the body returned by POST /subscriber-groups
type SubscriberGroupsResponse = subscriber.IngestionResult
