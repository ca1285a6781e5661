package providers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDelta(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		outputText string
		want       Delta
	}{
		{"content only", "hi", "", Delta{Kind: DeltaContent, Text: "hi"}},
		{"output text only", "", "yo", Delta{Kind: DeltaOutputText, Text: "yo"}},
		{"content wins", "a", "b", Delta{Kind: DeltaContent, Text: "a"}},
		{"neither", "", "", Delta{Kind: DeltaOther}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveDelta(tt.content, tt.outputText))
		})
	}
}

func TestDeltaKindString(t *testing.T) {
	assert.Equal(t, "content", DeltaContent.String())
	assert.Equal(t, "output_text", DeltaOutputText.String())
	assert.Equal(t, "other", DeltaOther.String())
}

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestCheckHTTPError(t *testing.T) {
	assert.NoError(t, CheckHTTPError("openai", response(http.StatusOK, "")))

	err := CheckHTTPError("openai", response(http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`))
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusTooManyRequests, pe.StatusCode)
	assert.Equal(t, "slow down", pe.Message)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, "openai error (HTTP 429): slow down", err.Error())

	err = CheckHTTPError("openai", response(http.StatusBadRequest, `{"message":"bad model"}`))
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "bad model", pe.Message)
	assert.False(t, IsRetryable(err))

	err = CheckHTTPError("openai", response(http.StatusBadGateway, "upstream down"))
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "upstream down", pe.Message)
	assert.True(t, pe.Retryable)
}

func TestProviderErrorWithoutStatus(t *testing.T) {
	cause := errors.New("connection reset")
	err := &ProviderError{Provider: "openai", Cause: cause, Retryable: true}
	assert.Equal(t, "openai error: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
}
