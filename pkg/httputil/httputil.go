// Package httputil centralizes HTTP client construction so every provider
// client gets the same timeouts and tracing instrumentation.
package httputil

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Standard timeout defaults used across the gateway.
const (
	// DefaultProviderTimeout bounds a whole LLM streaming request. Replies
	// are short (max_tokens is small) but the first token can be slow.
	DefaultProviderTimeout = 60 * time.Second

	// DefaultSynthesisTimeout bounds a whole TTS request including the
	// streamed audio body.
	DefaultSynthesisTimeout = 90 * time.Second
)

// NewHTTPClient returns an *http.Client with the given timeout whose
// transport records an OpenTelemetry client span per request.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}
