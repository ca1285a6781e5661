package tts

import (
	"errors"
	"net/http"
	"strconv"
)

// Common TTS errors.
var (
	// ErrMissingAPIKey is returned when a provider is created without credentials.
	ErrMissingAPIKey = errors.New("tts: missing API key")

	// ErrEmptyText is returned when attempting to synthesize empty text.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrInputEnded is returned when text is pushed after EndInput.
	ErrInputEnded = errors.New("text input already ended")

	// ErrRateLimited is returned when API rate limits are exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrServiceUnavailable is returned when the TTS service is unavailable.
	ErrServiceUnavailable = errors.New("TTS service unavailable")
)

// SynthesisError provides detailed error information from TTS providers.
type SynthesisError struct {
	// Provider is the TTS provider that returned the error.
	Provider string

	// Code is the provider-specific error code.
	Code string

	// Message is the error message.
	Message string

	// Cause is the underlying error (if any).
	Cause error

	// Retryable indicates if the error is transient and retry may succeed.
	Retryable bool
}

// Error implements the error interface.
func (e *SynthesisError) Error() string {
	if e.Cause != nil {
		return e.Provider + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Provider + ": " + e.Message
}

// Unwrap returns the underlying error.
func (e *SynthesisError) Unwrap() error {
	return e.Cause
}

// NewSynthesisError creates a new SynthesisError.
func NewSynthesisError(provider, code, message string, cause error, retryable bool) *SynthesisError {
	return &SynthesisError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: retryable,
	}
}

// statusError classifies a non-200 response. code and message come from
// the provider's error body when it could be decoded.
func statusError(provider string, status int, code, message string) *SynthesisError {
	if code == "" {
		code = strconv.Itoa(status)
	}
	if message == "" {
		message = http.StatusText(status)
	}

	var cause error
	switch {
	case status == http.StatusTooManyRequests:
		cause = ErrRateLimited
	case status >= http.StatusInternalServerError:
		cause = ErrServiceUnavailable
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		cause = errors.New("invalid API key")
	}

	retryable := status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
	return NewSynthesisError(provider, code, message, cause, retryable)
}
