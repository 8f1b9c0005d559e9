package subscriber

import (
	"github.com/samber/lo"
	ierr "github.com/smsbatch/smsbatch/internal/errors"
)

// Batch is a contiguous slice of subscriber ids destined for one remote group
type Batch struct {
	// Index is the zero based position of the batch in the plan
	Index   int
	Members []string
}

// Size returns the number of subscribers in the batch
func (b Batch) Size() int {
	return len(b.Members)
}

// PlanBatches splits subscribers into contiguous batches of maxBatchSize,
// the last batch holding the remainder. Order is preserved and no id is
// dropped or repeated. An empty input yields an empty plan.
func PlanBatches(subscribers []string, maxBatchSize int) ([]Batch, error) {
	if maxBatchSize <= 0 {
		return nil, ierr.NewError("batch size must be positive").
			WithHintf("Invalid batch size %d, it must be greater than zero", maxBatchSize).
			WithReportableDetails(map[string]any{"batch_size": maxBatchSize}).
			Mark(ierr.ErrValidation)
	}

	chunks := lo.Chunk(subscribers, maxBatchSize)
	batches := make([]Batch, len(chunks))
	for i, chunk := range chunks {
		batches[i] = Batch{Index: i, Members: chunk}
	}
	return batches, nil
}
