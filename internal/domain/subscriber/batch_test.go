package subscriber

import (
	"fmt"
	"math/rand"
	"testing"

	ierr "github.com/smsbatch/smsbatch/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("contact-%03d", i)
	}
	return out
}

func TestPlanBatchesSizes(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		batchSize int
		want      []int
	}{
		{"empty", 0, 10, []int{}},
		{"single partial", 3, 10, []int{3}},
		{"exact multiple", 20, 10, []int{10, 10}},
		{"remainder", 25, 10, []int{10, 10, 5}},
		{"batch of one", 3, 1, []int{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches, err := PlanBatches(ids(tt.n), tt.batchSize)
			require.NoError(t, err)
			require.NotNil(t, batches)

			sizes := make([]int, len(batches))
			for i, b := range batches {
				sizes[i] = b.Size()
				assert.Equal(t, i, b.Index)
			}
			assert.Equal(t, tt.want, sizes)
		})
	}
}

func TestPlanBatchesRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := PlanBatches(ids(5), size)
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	}
}

func TestPlanBatchesProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		n := rng.Intn(500)
		size := rng.Intn(60) + 1
		input := ids(n)

		batches, err := PlanBatches(input, size)
		require.NoError(t, err)

		var total int
		var joined []string
		for _, b := range batches {
			assert.GreaterOrEqual(t, b.Size(), 1)
			assert.LessOrEqual(t, b.Size(), size)
			total += b.Size()
			joined = append(joined, b.Members...)
		}

		assert.Equal(t, n, total)
		assert.Equal(t, (n+size-1)/size, len(batches))
		if n > 0 {
			assert.Equal(t, input, joined, "concatenated batches reproduce the input")
		}
	}
}
