package errors

// ErrorResponse represents the error body returned by the API
type ErrorResponse struct {
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
