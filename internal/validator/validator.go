package validator

import (
	"sync"

	"github.com/go-playground/validator/v10"
	ierr "github.com/smsbatch/smsbatch/internal/errors"
)

var (
	validate *validator.Validate
	initOnce sync.Once
)

// NewValidator returns the shared validator, creating it on first use
func NewValidator() *validator.Validate {
	initOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// ValidateRequest validates req struct tags and returns a validation error
// whose reportable details map each failing field to its violation.
func ValidateRequest(req interface{}) error {
	if err := NewValidator().Struct(req); err != nil {
		details := make(map[string]any)
		var validateErrs validator.ValidationErrors
		if ierr.As(err, &validateErrs) {
			for _, err := range validateErrs {
				details[err.Field()] = err.Error()
			}
		}
		return ierr.WithError(err).
			WithHint("Request validation failed").
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}
	return nil
}
