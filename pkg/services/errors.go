package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity is not found
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when attempting to create a duplicate entity
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotConfigured is returned when a feature depends on configuration
	// that is absent (missing secret, disconnected integration)
	ErrNotConfigured = errors.New("not configured")

	// ErrRateLimited is returned when a tenant exceeds its trigger quota
	ErrRateLimited = errors.New("rate limit exceeded")
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

// AuthenticationError is returned when a request's credentials are missing
// or do not verify (bad signature, unknown API key).
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// NewAuthenticationError creates a new authentication error
func NewAuthenticationError(reason string) error {
	return &AuthenticationError{Reason: reason}
}

// IsAuthenticationError checks if an error is an authentication error
func IsAuthenticationError(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// AuthorizationError is returned when verified credentials do not grant
// access to the requested tenant or resource.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization failed: %s", e.Reason)
}

// NewAuthorizationError creates a new authorization error
func NewAuthorizationError(reason string) error {
	return &AuthorizationError{Reason: reason}
}

// IsAuthorizationError checks if an error is an authorization error
func IsAuthorizationError(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}

// UpstreamError is returned when a telephony provider or integration call
// fails after retries. The API layer maps upstream failures to 502.
type UpstreamError struct {
	System     string // "provider_a", "crm_b", ...
	StatusCode int
	Message    string
	Transient  bool
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s returned status %d: %s", e.System, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.System, e.Message)
}

// Retryable reports whether retrying the same request may succeed.
func (e *UpstreamError) Retryable() bool {
	return e.Transient
}

// IsUpstreamError checks if an error is an upstream error
func IsUpstreamError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
