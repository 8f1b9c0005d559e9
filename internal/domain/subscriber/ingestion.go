package subscriber

import (
	"github.com/smsbatch/smsbatch/internal/domain/group"
)

// Stage identifies the provisioning step a batch failed in
type Stage string

const (
	StageCreateGroup Stage = "create_group"
	StageAddContacts Stage = "add_contacts"
)

// IngestRequest is the validated input of one ingestion run
type IngestRequest struct {
	Subscribers []string
	// BatchSize overrides the configured batch size when positive
	BatchSize int
	// NamePrefix overrides the configured group name prefix when set
	NamePrefix string
}

// BatchFailure describes a batch that was not fully provisioned
type BatchFailure struct {
	Index int `json:"index"`
	Size  int `json:"size"`
	// GroupUUID is set when the group exists remotely but membership failed
	GroupUUID string `json:"groupUuid,omitempty"`
	GroupName string `json:"groupName"`
	Stage     Stage  `json:"stage"`
	Error     string `json:"error"`
}

// IngestionResult aggregates the outcome of an ingestion run. Groups holds
// the provisioned batches in batch order; every other batch is listed in
// FailedBatches.
type IngestionResult struct {
	ID                  string          `json:"id"`
	NumberOfSubscribers int             `json:"numberOfSubscribers"`
	NumberOfGroups      int             `json:"numberOfGroups"`
	Groups              []group.Summary `json:"groups"`
	FailedBatches       []BatchFailure  `json:"failedBatches,omitempty"`
}

// Failed reports whether any batch failed
func (r *IngestionResult) Failed() bool {
	return len(r.FailedBatches) > 0
}

// FailedIndices returns the indices of the failed batches
func (r *IngestionResult) FailedIndices() []int {
	indices := make([]int, len(r.FailedBatches))
	for i, f := range r.FailedBatches {
		indices[i] = f.Index
	}
	return indices
}
