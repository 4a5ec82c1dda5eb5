package service

import "errors"

var (
	ErrForbidden       = errors.New("insufficient permissions")
	ErrNotProductOwner = errors.New("product belongs to another seller")
)

// ValidationError is a blocking input error tied to one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
