package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	ierr "github.com/smsbatch/smsbatch/internal/errors"
	"github.com/smsbatch/smsbatch/internal/httpclient"
	"github.com/smsbatch/smsbatch/internal/logger"
	"github.com/smsbatch/smsbatch/internal/sentry"
)

// ErrorHandler middleware turns the last handler error into a
// {message, details} response. Upstream API errors keep the upstream status.
func ErrorHandler(log *logger.Logger, sentryService *sentry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		response := ierr.ErrorResponse{
			Message: getDisplayMessage(err),
			Details: getSafeDetails(err),
		}
		status := statusFromErr(err)

		log.Errorw("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"message", response.Message,
			"error", err)

		if status >= http.StatusInternalServerError {
			sentryService.CaptureException(err)
		}

		c.JSON(status, response)
	}
}

func statusFromErr(err error) int {
	if ierr.IsPartialProvisioning(err) {
		return ierr.HTTPStatusFromErr(err)
	}
	if httpErr, ok := httpclient.IsHTTPError(err); ok && httpErr.StatusCode >= 400 {
		return httpErr.StatusCode
	}
	return ierr.HTTPStatusFromErr(err)
}

func getDisplayMessage(err error) string {
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		// Get the first non-empty hint - GetAllHints is post-order traversal
		for _, hint := range hints {
			if hint = strings.TrimSpace(hint); hint != "" {
				return hint
			}
		}
	}

	// fallback to the error message
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return "An unexpected error occurred"
}

func getSafeDetails(err error) map[string]any {
	details := make(map[string]any)

	allSafeDetails := errors.GetAllSafeDetails(err)
	for _, sdp := range allSafeDetails {
		if len(sdp.SafeDetails) == 0 {
			continue
		}

		for _, payload := range sdp.SafeDetails {
			if len(payload) > 9 && strings.HasPrefix(payload, "__json__:") {
				jsonStr := payload[9:]
				var jsonDetails map[string]any
				if err := json.Unmarshal([]byte(jsonStr), &jsonDetails); err == nil {
					for k, v := range jsonDetails {
						details[k] = v
					}
				}
			}
		}
	}

	if len(details) == 0 {
		return nil
	}
	return details
}
