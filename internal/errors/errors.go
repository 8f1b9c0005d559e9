package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Common error types that can be used across the application
var (
	ErrNotFound            = new(ErrCodeNotFound, "resource not found")
	ErrValidation          = new(ErrCodeValidation, "validation error")
	ErrHTTPClient          = new(ErrCodeHTTPClient, "http client error")
	ErrPartialProvisioning = new(ErrCodePartialProvisioning, "partial provisioning failure")
	ErrCancelled           = new(ErrCodeCancelled, "operation cancelled")
	ErrSystem              = new(ErrCodeSystemError, "system error")
	// maps errors to http status codes, most specific first
	statusCodes = []struct {
		err    error
		status int
	}{
		{ErrPartialProvisioning, http.StatusMultiStatus},
		{ErrCancelled, http.StatusRequestTimeout},
		{ErrNotFound, http.StatusNotFound},
		{ErrValidation, http.StatusBadRequest},
		{ErrHTTPClient, http.StatusBadGateway},
		{ErrSystem, http.StatusInternalServerError},
	}
)

const (
	ErrCodeHTTPClient          = "http_client_error"
	ErrCodeSystemError         = "system_error"
	ErrCodeNotFound            = "not_found"
	ErrCodeValidation          = "validation_error"
	ErrCodePartialProvisioning = "partial_provisioning_failure"
	ErrCodeCancelled           = "cancelled"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Op      string // Logical operation name
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

// New creates a new InternalError with the given code
func New(code string, message string) *InternalError {
	return new(code, message)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err, reference error) bool {
	return errors.Is(err, reference)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsHTTPClient checks if an error is an http client error
func IsHTTPClient(err error) bool {
	return errors.Is(err, ErrHTTPClient)
}

// IsPartialProvisioning checks if some but not all batches were provisioned
func IsPartialProvisioning(err error) bool {
	return errors.Is(err, ErrPartialProvisioning)
}

// HTTPStatusFromErr resolves the response status for err. An error carrying
// several marks gets the status of the first match in statusCodes.
func HTTPStatusFromErr(err error) int {
	for _, sc := range statusCodes {
		if errors.Is(err, sc.err) {
			return sc.status
		}
	}
	return http.StatusInternalServerError
}
