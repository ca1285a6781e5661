package tts

import (
	"errors"
	"net/http"
	"testing"
)

func TestSynthesisError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *SynthesisError
		want string
	}{
		{
			name: "with cause",
			err: &SynthesisError{
				Provider: "deepgram",
				Code:     "429",
				Message:  "rate limited",
				Cause:    ErrRateLimited,
			},
			want: "deepgram: rate limited: rate limit exceeded",
		},
		{
			name: "without cause",
			err: &SynthesisError{
				Provider: "deepgram",
				Code:     "INVALID_MODEL",
				Message:  "model not found",
			},
			want: "deepgram: model not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("SynthesisError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSynthesisError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &SynthesisError{
		Provider: "test",
		Message:  "test error",
		Cause:    cause,
	}

	if err.Unwrap() != cause {
		t.Errorf("SynthesisError.Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		code      string
		message   string
		wantCode  string
		wantMsg   string
		wantCause error
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, "", "", "429", "Too Many Requests", ErrRateLimited, true},
		{"server error", http.StatusBadGateway, "", "", "502", "Bad Gateway", ErrServiceUnavailable, true},
		{"bad request keeps body", http.StatusBadRequest, "INVALID_TEXT", "text too long", "INVALID_TEXT", "text too long", nil, false},
		{"unauthorized", http.StatusUnauthorized, "", "", "401", "Unauthorized", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := statusError("deepgram", tt.status, tt.code, tt.message)
			if err.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", err.Code, tt.wantCode)
			}
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %v, want %v", err.Message, tt.wantMsg)
			}
			if tt.wantCause != nil && !errors.Is(err, tt.wantCause) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.wantCause)
			}
			if err.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", err.Retryable, tt.retryable)
			}
		})
	}
}
