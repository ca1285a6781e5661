package stt

import (
	"context"
	"time"
)

// Default stream settings.
const (
	DefaultSampleRate  = 16000
	DefaultChannels    = 1
	DefaultLanguage    = "en"
	DefaultEndpointing = 1000 * time.Millisecond
)

// EventKind distinguishes interim from final transcripts.
type EventKind int

const (
	// EventInterim is a partial transcript that may still change.
	EventInterim EventKind = iota
	// EventFinal marks the transcript text as complete.
	EventFinal
)

func (k EventKind) String() string {
	switch k {
	case EventInterim:
		return "interim"
	case EventFinal:
		return "final"
	default:
		return "unknown"
	}
}

// Event is one transcript event. An Event with Err set reports a mid-stream
// provider failure; the channel is closed right after it.
type Event struct {
	Kind       EventKind
	Text       string
	Confidence float64
	Err        error
}

// StreamConfig describes the audio pushed into a stream.
type StreamConfig struct {
	// SampleRate of the pushed PCM in Hz.
	SampleRate int

	// Channels of the pushed PCM. The pipeline always pushes mono.
	Channels int

	// Language is a BCP-47 language hint.
	Language string

	// Model overrides the provider's default model.
	Model string

	// Endpointing is the provider-side silence used to finalize results.
	Endpointing time.Duration

	// InterimResults requests interim events.
	InterimResults bool
}

// DefaultStreamConfig returns the pipeline's stream settings.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		SampleRate:     DefaultSampleRate,
		Channels:       DefaultChannels,
		Language:       DefaultLanguage,
		Endpointing:    DefaultEndpointing,
		InterimResults: true,
	}
}

// Stream is one open transcription stream.
type Stream interface {
	// Push sends one PCM frame. It is a no-op once input has ended or the
	// stream is closed.
	Push(pcm []byte) error

	// EndInput tells the provider no more audio will follow. Remaining
	// events, including the final transcript, are still delivered.
	EndInput() error

	// Events returns the ordered event channel.
	Events() <-chan Event

	// Close tears the stream down immediately. It is idempotent.
	Close() error
}

// StreamingService opens transcription streams.
type StreamingService interface {
	// Name returns the provider identifier.
	Name() string

	// OpenStream connects a new stream.
	OpenStream(ctx context.Context, cfg StreamConfig) (Stream, error)
}
