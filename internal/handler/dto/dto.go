// Package dto provides Data Transfer Objects for API requests and responses.
package dto

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string        `json:"error"`
	Code    string        `json:"code"`
	Details []FieldDetail `json:"details,omitempty"`
}

// FieldDetail names one rejected request field.
type FieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}
