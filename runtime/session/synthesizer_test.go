package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parvbhullar/media-gateway/runtime/tts"
)

// scriptedTTS replays fixed events then closes the channel.
type scriptedTTS struct {
	events  []tts.Event
	openErr error
}

func (s *scriptedTTS) Name() string { return "scripted" }

func (s *scriptedTTS) OpenStream(context.Context, tts.StreamConfig) (tts.Stream, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	ch := make(chan tts.Event, len(s.events))
	for _, ev := range s.events {
		ch <- ev
	}
	close(ch)
	return &scriptedStream{events: ch}, nil
}

type scriptedStream struct {
	events chan tts.Event
	text   string
}

func (s *scriptedStream) PushText(text string) error {
	if text == "" {
		return tts.ErrEmptyText
	}
	s.text += text
	return nil
}

func (s *scriptedStream) EndInput() error { return nil }

func (s *scriptedStream) Events() <-chan tts.Event { return s.events }

func (s *scriptedStream) Close() error { return nil }

// flakySink refuses the frames whose index is in refuse.
type flakySink struct {
	refuse map[int]error
	n      int
	got    int
}

func (f *flakySink) SendAudio([]byte) error {
	defer func() { f.n++ }()
	if err, ok := f.refuse[f.n]; ok {
		return err
	}
	f.got++
	return nil
}

func audioEvent() tts.Event { return tts.Event{Audio: make([]byte, 320)} }

func TestSpeechSynthesizer_ForwardsFrames(t *testing.T) {
	svc := &scriptedTTS{events: []tts.Event{audioEvent(), audioEvent(), audioEvent(), {Final: true}}}
	syn := NewSpeechSynthesizer(svc, tts.DefaultStreamConfig(), nil)
	assert.Equal(t, "scripted", syn.Provider())

	sink := &flakySink{}
	result, err := syn.Synthesize(context.Background(), "s1", "hello", sink)
	require.NoError(t, err)
	assert.Equal(t, Synthesis{Sent: 3}, result)
	assert.Equal(t, 3, sink.got)
}

func TestSpeechSynthesizer_DropsRefusedFrames(t *testing.T) {
	svc := &scriptedTTS{events: []tts.Event{audioEvent(), audioEvent(), audioEvent(), {Final: true}}}
	syn := NewSpeechSynthesizer(svc, tts.DefaultStreamConfig(), nil)

	sink := &flakySink{refuse: map[int]error{0: ErrTransportClosed, 2: ErrSessionClosed}}
	result, err := syn.Synthesize(context.Background(), "s1", "hello", sink)
	require.NoError(t, err)
	assert.Equal(t, Synthesis{Sent: 1, Dropped: 2}, result)
}

func TestSpeechSynthesizer_Errors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("open", func(t *testing.T) {
		syn := NewSpeechSynthesizer(&scriptedTTS{openErr: tts.ErrMissingAPIKey}, tts.DefaultStreamConfig(), nil)
		_, err := syn.Synthesize(context.Background(), "s1", "hello", &flakySink{})
		assert.ErrorIs(t, err, tts.ErrMissingAPIKey)
	})

	t.Run("empty text", func(t *testing.T) {
		syn := NewSpeechSynthesizer(&scriptedTTS{}, tts.DefaultStreamConfig(), nil)
		_, err := syn.Synthesize(context.Background(), "s1", "", &flakySink{})
		assert.ErrorIs(t, err, tts.ErrEmptyText)
	})

	t.Run("stream error after audio", func(t *testing.T) {
		svc := &scriptedTTS{events: []tts.Event{audioEvent(), {Err: boom}}}
		syn := NewSpeechSynthesizer(svc, tts.DefaultStreamConfig(), nil)
		result, err := syn.Synthesize(context.Background(), "s1", "hello", &flakySink{})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, result.Sent)
	})

	t.Run("missing end marker", func(t *testing.T) {
		svc := &scriptedTTS{events: []tts.Event{audioEvent()}}
		syn := NewSpeechSynthesizer(svc, tts.DefaultStreamConfig(), nil)
		_, err := syn.Synthesize(context.Background(), "s1", "hello", &flakySink{})
		assert.ErrorIs(t, err, ErrUnexpectedEnd)
	})
}
