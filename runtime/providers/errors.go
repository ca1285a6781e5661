package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrMissingAPIKey is returned when a provider is created without credentials.
var ErrMissingAPIKey = errors.New("llm: missing API key")

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 * 1024

// ProviderError is a failed LLM request.
type ProviderError struct {
	// Provider is the LLM provider name.
	Provider string

	// StatusCode is the HTTP status, or 0 for transport failures.
	StatusCode int

	// Message is the provider's error message, or the raw body.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Retryable indicates whether the request can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s error (HTTP %d): %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Provider, msg)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether err is a retryable ProviderError.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable
}

// CheckHTTPError returns a ProviderError for a non-2xx response and closes
// its body. It returns nil and leaves the body open otherwise.
func CheckHTTPError(provider string, resp *http.Response) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &ProviderError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Message:    errorMessage(body),
		Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError,
	}
}

// errorMessage extracts {"error":{"message":...}} or {"message":...} from
// an error body, falling back to the raw body.
func errorMessage(body []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &nested); err == nil {
		if nested.Error.Message != "" {
			return nested.Error.Message
		}
		if nested.Message != "" {
			return nested.Message
		}
	}
	return string(body)
}
