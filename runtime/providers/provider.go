// Package providers defines the streaming chat contract used by the
// response generator, and shared helpers for provider implementations.
package providers

import (
	"context"

	"github.com/parvbhullar/media-gateway/runtime/types"
)

// ChatProvider streams a chat completion for an ordered message history.
type ChatProvider interface {
	// ID returns the provider identifier (for logging/metrics).
	ID() string

	// Model returns the model the provider will request.
	Model() string

	// ChatStream starts one streaming completion. The returned channel
	// carries one chunk per fragment and is closed when the stream ends.
	// A chunk with Error set is the last chunk sent.
	ChatStream(ctx context.Context, messages []types.Message) (<-chan StreamChunk, error)
}

// DeltaKind tags which fragment shape a Delta was resolved from.
type DeltaKind int

const (
	// DeltaOther is a fragment that carries no text (role headers,
	// finish markers, usage blocks, unknown events).
	DeltaOther DeltaKind = iota
	// DeltaContent is a chat-completions choices[0].delta.content fragment.
	DeltaContent
	// DeltaOutputText is a response.output_text.delta fragment.
	DeltaOutputText
)

func (k DeltaKind) String() string {
	switch k {
	case DeltaContent:
		return "content"
	case DeltaOutputText:
		return "output_text"
	default:
		return "other"
	}
}

// Delta is one resolved fragment of streamed reply text.
type Delta struct {
	Kind DeltaKind
	Text string
}

// ContentDelta returns a DeltaContent fragment.
func ContentDelta(text string) Delta {
	return Delta{Kind: DeltaContent, Text: text}
}

// OutputTextDelta returns a DeltaOutputText fragment.
func OutputTextDelta(text string) Delta {
	return Delta{Kind: DeltaOutputText, Text: text}
}

// ResolveDelta picks the fragment shape. Both fields are inspected on every
// fragment: content wins when non-empty, otherwise the output-text field is
// used, otherwise the fragment is DeltaOther.
func ResolveDelta(content, outputText string) Delta {
	switch {
	case content != "":
		return ContentDelta(content)
	case outputText != "":
		return OutputTextDelta(outputText)
	default:
		return Delta{Kind: DeltaOther}
	}
}

// StreamChunk is one item from a ChatStream channel.
type StreamChunk struct {
	// Delta is the resolved fragment.
	Delta Delta

	// FinishReason is set by the provider on the fragment that finished
	// the completion ("stop", "length", ...).
	FinishReason string

	// Error is set if the stream failed after it was opened.
	Error error
}

// ProviderDefaults holds sampling defaults applied to every request.
type ProviderDefaults struct {
	Temperature float32
	MaxTokens   int
}
