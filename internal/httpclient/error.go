package httpclient

import (
	goerrors "errors"
	"fmt"

	"github.com/smsbatch/smsbatch/internal/errors"
)

// Error represents a non-2xx response from an upstream API
type Error struct {
	*errors.InternalError
	StatusCode int
	Response   []byte
}

func (e *Error) Unwrap() error {
	return e.InternalError.Unwrap()
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: upstream responded with status %d", e.Code, e.StatusCode)
}

// NewError creates a new HTTP client error
func NewError(statusCode int, response []byte) *Error {
	return &Error{
		InternalError: errors.New(errors.ErrCodeHTTPClient, "http client error"),
		StatusCode:    statusCode,
		Response:      response,
	}
}

// IsHTTPError checks if an error is an HTTP client error
func IsHTTPError(err error) (*Error, bool) {
	var httpErr *Error
	if goerrors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

// IsServerError reports whether err is an upstream 5xx response
func IsServerError(err error) bool {
	httpErr, ok := IsHTTPError(err)
	return ok && httpErr.StatusCode >= 500
}
