package stt

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors for STT services.
var (
	// ErrMissingAPIKey is returned when a provider is created without credentials.
	ErrMissingAPIKey = errors.New("stt: missing API key")

	// ErrRateLimited is returned when the provider rate limits requests.
	ErrRateLimited = errors.New("rate limited by provider")

	// ErrInvalidFormat is returned when the stream format is not supported.
	ErrInvalidFormat = errors.New("unsupported audio format")
)

// TranscriptionError represents an error during transcription.
type TranscriptionError struct {
	// Provider is the STT provider name.
	Provider string

	// Code is the provider-specific error code.
	Code string

	// Message is a human-readable error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Retryable indicates whether the request can be retried.
	Retryable bool
}

// NewTranscriptionError creates a new TranscriptionError.
func NewTranscriptionError(provider, code, message string, cause error, retryable bool) *TranscriptionError {
	return &TranscriptionError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: retryable,
	}
}

// Error implements the error interface.
func (e *TranscriptionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s transcription error [%s]: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s transcription error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error.
func (e *TranscriptionError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is.
func (e *TranscriptionError) Is(target error) bool {
	t, ok := target.(*TranscriptionError)
	if !ok {
		return false
	}
	return e.Provider == t.Provider && e.Code == t.Code
}

// statusError maps a rejected handshake status to a TranscriptionError.
func statusError(provider string, status int, cause error) *TranscriptionError {
	code := fmt.Sprintf("http_%d", status)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewTranscriptionError(provider, code, "authentication failed", cause, false)
	case status == http.StatusTooManyRequests:
		return NewTranscriptionError(provider, code, "rate limited", errors.Join(ErrRateLimited, cause), true)
	case status >= http.StatusInternalServerError:
		return NewTranscriptionError(provider, code, "server error", cause, true)
	default:
		return NewTranscriptionError(provider, code, "request rejected", cause, false)
	}
}
