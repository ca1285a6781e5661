package session

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parvbhullar/media-gateway/runtime/audio"
	"github.com/parvbhullar/media-gateway/runtime/providers"
	"github.com/parvbhullar/media-gateway/runtime/stt"
	"github.com/parvbhullar/media-gateway/runtime/tts"
	"github.com/parvbhullar/media-gateway/runtime/types"
)

const waitFor = 2 * time.Second

// pcmFrame returns one 20ms pipeline frame with every sample at amp, sign
// alternating.
func pcmFrame(amp int16) []byte {
	out := make([]byte, 640)
	for i := 0; i < 320; i++ {
		v := amp
		if i%2 == 1 {
			v = -amp
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func speechFrame() []byte  { return pcmFrame(3000) }
func silenceFrame() []byte { return pcmFrame(0) }

// fakeSTT hands out scripted streams and records every open.
type fakeSTT struct {
	mu      sync.Mutex
	streams []*fakeSTTStream
	openErr error
	opened  chan *fakeSTTStream
}

func newFakeSTT() *fakeSTT {
	return &fakeSTT{opened: make(chan *fakeSTTStream, 16)}
}

func (f *fakeSTT) Name() string { return "fake-stt" }

func (f *fakeSTT) OpenStream(_ context.Context, _ stt.StreamConfig) (stt.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	st := &fakeSTTStream{events: make(chan stt.Event, 16)}
	f.streams = append(f.streams, st)
	f.opened <- st
	return st, nil
}

func (f *fakeSTT) opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams)
}

type fakeSTTStream struct {
	mu     sync.Mutex
	pushed int
	ended  bool
	closed bool
	events chan stt.Event
}

func (s *fakeSTTStream) Push(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended && !s.closed {
		s.pushed++
	}
	return nil
}

func (s *fakeSTTStream) EndInput() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
	return nil
}

func (s *fakeSTTStream) Events() <-chan stt.Event { return s.events }

func (s *fakeSTTStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

func (s *fakeSTTStream) emit(ev stt.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.events <- ev
	}
}

func (s *fakeSTTStream) final(text string) {
	s.emit(stt.Event{Kind: stt.EventFinal, Text: text})
}

func (s *fakeSTTStream) state() (pushed int, ended, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushed, s.ended, s.closed
}

// fakeLLM streams a scripted reply. When gate is set each call waits for a
// value on it before streaming.
type fakeLLM struct {
	mu      sync.Mutex
	calls   [][]types.Message
	chunks  []providers.StreamChunk
	openErr error
	gate    chan struct{}
	called  chan struct{}
}

func newFakeLLM(chunks ...providers.StreamChunk) *fakeLLM {
	return &fakeLLM{chunks: chunks, called: make(chan struct{}, 16)}
}

func replyChunks(parts ...string) []providers.StreamChunk {
	out := make([]providers.StreamChunk, 0, len(parts)+1)
	for _, p := range parts {
		out = append(out, providers.StreamChunk{Delta: providers.ContentDelta(p)})
	}
	return append(out, providers.StreamChunk{FinishReason: "stop"})
}

func (f *fakeLLM) ID() string    { return "fake-llm" }
func (f *fakeLLM) Model() string { return "fake-model" }

func (f *fakeLLM) ChatStream(ctx context.Context, msgs []types.Message) (<-chan providers.StreamChunk, error) {
	f.mu.Lock()
	f.calls = append(f.calls, types.CloneMessages(msgs))
	err := f.openErr
	f.mu.Unlock()
	f.called <- struct{}{}
	if err != nil {
		return nil, err
	}

	out := make(chan providers.StreamChunk)
	go func() {
		defer close(out)
		if f.gate != nil {
			select {
			case <-f.gate:
			case <-ctx.Done():
				return
			}
		}
		for _, c := range f.chunks {
			out <- c
		}
	}()
	return out, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeLLM) call(i int) []types.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

// fakeTTS produces a fixed number of frames per synthesis.
type fakeTTS struct {
	mu     sync.Mutex
	frames int
	err    error
	texts  []string
}

func (f *fakeTTS) Name() string { return "fake-tts" }

func (f *fakeTTS) OpenStream(_ context.Context, _ tts.StreamConfig) (tts.Stream, error) {
	return &fakeTTSStream{svc: f, events: make(chan tts.Event), done: make(chan struct{})}, nil
}

func (f *fakeTTS) spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeTTSStream struct {
	svc       *fakeTTS
	text      string
	events    chan tts.Event
	done      chan struct{}
	closeOnce sync.Once
}

func (s *fakeTTSStream) PushText(text string) error {
	s.text += text
	return nil
}

func (s *fakeTTSStream) EndInput() error {
	s.svc.mu.Lock()
	s.svc.texts = append(s.svc.texts, s.text)
	frames, err := s.svc.frames, s.svc.err
	s.svc.mu.Unlock()

	go func() {
		defer close(s.events)
		send := func(ev tts.Event) bool {
			select {
			case s.events <- ev:
				return true
			case <-s.done:
				return false
			}
		}
		for i := 0; i < frames; i++ {
			if !send(tts.Event{Audio: make([]byte, 640)}) {
				return
			}
		}
		if err != nil {
			send(tts.Event{Err: err})
			return
		}
		send(tts.Event{Final: true})
	}()
	return nil
}

func (s *fakeTTSStream) Events() <-chan tts.Event { return s.events }

func (s *fakeTTSStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// fakeTransport records everything the session sends.
type fakeTransport struct {
	mu     sync.Mutex
	frames int
	texts  []map[string]any
	events chan map[string]any
	fail   atomic.Bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan map[string]any, 256)}
}

func (t *fakeTransport) SendAudio(pcm []byte) error {
	if t.fail.Load() {
		return ErrTransportClosed
	}
	t.mu.Lock()
	t.frames++
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) SendText(data []byte) error {
	if t.fail.Load() {
		return ErrTransportClosed
	}
	var ev map[string]any
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	t.mu.Lock()
	t.texts = append(t.texts, ev)
	t.mu.Unlock()
	t.events <- ev
	return nil
}

func (t *fakeTransport) audioFrames() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}

func (t *fakeTransport) eventTypes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.texts))
	for _, ev := range t.texts {
		out = append(out, ev["type"].(string))
	}
	return out
}

// next returns the next event of type typ, skipping others.
func (t *fakeTransport) next(tb testing.TB, typ string) map[string]any {
	tb.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case ev := <-t.events:
			if ev["type"] == typ {
				return ev
			}
		case <-deadline:
			tb.Fatalf("timed out waiting for %q event", typ)
			return nil
		}
	}
}

// harness runs one session over fakes with a manual clock.
type harness struct {
	s     *CallSession
	clock *audio.ManualClock
	stt   *fakeSTT
	llm   *fakeLLM
	tts   *fakeTTS
	tx    *fakeTransport

	done   chan struct{}
	runErr error
}

func newHarness(t *testing.T, llm *fakeLLM, mutate ...func(*Config)) *harness {
	t.Helper()
	h := &harness{
		clock: audio.NewManualClock(time.Unix(1_700_000_000, 0)),
		stt:   newFakeSTT(),
		llm:   llm,
		tts:   &fakeTTS{frames: 3},
		tx:    newFakeTransport(),
		done:  make(chan struct{}),
	}
	pipeline := Pipeline{
		Normalizer:  audio.NewNormalizer(audio.PipelineFormat()),
		Transcriber: NewTranscriptStreamAdapter(h.stt, stt.DefaultStreamConfig(), nil),
		Generator:   NewResponseGenerator(llm, nil),
		Synthesizer: NewSpeechSynthesizer(h.tts, tts.DefaultStreamConfig(), nil),
	}
	cfg := DefaultConfig()
	cfg.Clock = h.clock
	for _, fn := range mutate {
		fn(&cfg)
	}
	h.s = NewCallSession("test-session", h.tx, pipeline, cfg)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	go func() {
		h.runErr = h.s.Run(context.Background())
		close(h.done)
	}()
	t.Cleanup(func() {
		h.s.Close()
		<-h.done
	})
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case <-h.done:
		return h.runErr
	case <-time.After(waitFor):
		t.Fatal("session did not finish")
		return nil
	}
}

// onLoop runs fn on the session loop and waits for it. It reports false if
// the session closed first.
func (h *harness) onLoop(fn func()) bool {
	ran := make(chan struct{})
	if !h.s.post(barrier{fn: func() { fn(); close(ran) }}) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-h.s.Done():
		return false
	case <-time.After(waitFor):
		return false
	}
}

// current waits until the session has an installed stream other than prev
// and returns it.
func (h *harness) current(t *testing.T, prev *fakeSTTStream) *fakeSTTStream {
	t.Helper()
	var st *fakeSTTStream
	require.Eventually(t, func() bool {
		h.onLoop(func() {
			st, _ = h.s.current.(*fakeSTTStream)
		})
		return st != nil && st != prev
	}, waitFor, 5*time.Millisecond)
	return st
}

// slotEmpty reports whether the session has no stream installed or opening.
func (h *harness) slotEmpty() bool {
	var empty bool
	h.onLoop(func() {
		empty = h.s.current == nil && !h.s.opening
	})
	return empty
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitFor):
		t.Fatal("timed out waiting on channel")
		var zero T
		return zero
	}
}

// sync waits for all queued input to be processed.
func (h *harness) sync(t *testing.T) {
	t.Helper()
	require.True(t, h.onLoop(func() {}), "session loop did not respond")
}

// speak feeds n speech frames followed by one silence frame, which arms the
// silence timer.
func (h *harness) speak(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		h.s.HandleAudio(speechFrame())
		h.clock.Advance(20 * time.Millisecond)
	}
	h.s.HandleAudio(silenceFrame())
	h.sync(t)
}
