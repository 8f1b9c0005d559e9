package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	ierr "github.com/smsbatch/smsbatch/internal/errors"
	"github.com/smsbatch/smsbatch/internal/httpclient"
	"github.com/smsbatch/smsbatch/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveError(t *testing.T, err error) (int, ierr.ErrorResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(ErrorHandler(logger.NewNopLogger(), nil))
	r.GET("/fail", func(c *gin.Context) {
		c.Error(err)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

	var body ierr.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
		wantDetails map[string]any
	}{
		{
			name:        "hint becomes the message",
			err:         ierr.NewError("bad size").WithHint("Batch size must be positive").Mark(ierr.ErrValidation),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Batch size must be positive",
		},
		{
			name:        "error text without a hint",
			err:         errors.New("connection reset by peer"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "connection reset by peer",
		},
		{
			name: "upstream status is forwarded",
			err: ierr.WithError(httpclient.NewError(http.StatusTooManyRequests, nil)).
				WithHint("Request was throttled.").
				Mark(ierr.ErrHTTPClient),
			wantStatus:  http.StatusTooManyRequests,
			wantMessage: "Request was throttled.",
		},
		{
			name: "details are returned",
			err: ierr.NewError("dupes").
				WithHint("Each subscriber may only be listed once").
				WithReportableDetails(map[string]any{"duplicates": []string{"c1"}}).
				Mark(ierr.ErrValidation),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Each subscriber may only be listed once",
			wantDetails: map[string]any{"duplicates": []any{"c1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := serveError(t, tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMessage, body.Message)
			assert.Equal(t, tt.wantDetails, body.Details)
		})
	}
}
