package tts

import (
	"context"
)

// Default synthesis settings.
const (
	DefaultSampleRate = 16000
	DefaultChunkSize  = 4096
)

// Event is one item from a synthesis stream. Exactly one of Audio, Final or
// Err is meaningful. The channel is closed after the Final or Err event.
type Event struct {
	// Audio is a chunk of 16-bit PCM with an even byte length.
	Audio []byte

	// Final marks the end of synthesized audio.
	Final bool

	// Err reports a failure while synthesizing or streaming.
	Err error
}

// StreamConfig configures one synthesis stream.
type StreamConfig struct {
	// SampleRate of the produced PCM in Hz.
	SampleRate int

	// Voice model (provider-specific). Empty uses the provider default.
	Model string

	// ChunkSize is the maximum byte length of one audio event.
	ChunkSize int
}

// DefaultStreamConfig returns the pipeline's synthesis settings.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		SampleRate: DefaultSampleRate,
		ChunkSize:  DefaultChunkSize,
	}
}

// Stream is one synthesis call. Text is pushed first, then EndInput starts
// audio production.
type Stream interface {
	// PushText appends text to the utterance.
	PushText(text string) error

	// EndInput signals that no more text will be pushed.
	EndInput() error

	// Events returns the audio event channel.
	Events() <-chan Event

	// Close aborts synthesis and releases the stream. It is idempotent.
	Close() error
}

// StreamingService opens synthesis streams.
type StreamingService interface {
	// Name returns the provider identifier (for logging/debugging).
	Name() string

	// OpenStream starts a new synthesis stream.
	OpenStream(ctx context.Context, cfg StreamConfig) (Stream, error)
}
