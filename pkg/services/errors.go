package services

import (
	"errors"
	"fmt"
)

var (
	// ErrSecretNotConfigured is returned when a webhook arrives before the
	// shared secret has been provisioned
	ErrSecretNotConfigured = errors.New("webhook secret not configured")

	// ErrSignatureInvalid is returned when a webhook signature fails
	// constant-time verification
	ErrSignatureInvalid = errors.New("signature verification failed")

	// ErrInvalidPayload is returned when a webhook body cannot be parsed
	ErrInvalidPayload = errors.New("invalid payload")
)

// ValidationError wraps field-specific validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
