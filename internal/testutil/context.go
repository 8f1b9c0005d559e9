package testutil

import (
	"context"

	"github.com/smsbatch/smsbatch/internal/types"
)

// SetupContext returns a context carrying a test request id
func SetupContext() context.Context {
	return types.SetRequestID(context.Background(), "req_test")
}
