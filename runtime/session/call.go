package session

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parvbhullar/media-gateway/runtime/audio"
	"github.com/parvbhullar/media-gateway/runtime/logger"
	metrics "github.com/parvbhullar/media-gateway/runtime/metrics/prometheus"
	"github.com/parvbhullar/media-gateway/runtime/stt"
	"github.com/parvbhullar/media-gateway/runtime/types"
	"github.com/parvbhullar/media-gateway/runtime/version"
)

// inboxSize bounds queued loop events. Audio arrives every 20ms, so this
// is several seconds of slack before the transport reader blocks.
const inboxSize = 256

// DefaultCallTimeout is the maximum call length.
const DefaultCallTimeout = 300 * time.Second

// Session end outcomes.
const (
	outcomeClosed   = "closed"
	outcomeTimeout  = "timeout"
	outcomeShutdown = "shutdown"
)

// Pipeline bundles the stateless components a session drives.
type Pipeline struct {
	Normalizer  *audio.Normalizer
	Transcriber *TranscriptStreamAdapter
	Generator   *ResponseGenerator
	Synthesizer *SpeechSynthesizer
}

// Config holds per-session settings shared read-only by every session.
type Config struct {
	// SystemPrompt is the first history message.
	SystemPrompt string

	// InputFormat is the format of inbound binary frames.
	InputFormat audio.Format

	// VAD configures the utterance segmenter.
	VAD audio.VADParams

	// CallTimeout closes the session after this long. Zero disables it.
	CallTimeout time.Duration

	// Clock drives the silence timer. Nil uses the real clock.
	Clock audio.Clock
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		SystemPrompt: types.DefaultSystemPrompt,
		InputFormat:  audio.PipelineFormat(),
		VAD:          audio.DefaultVADParams(),
		CallTimeout:  DefaultCallTimeout,
	}
}

// Stats are cumulative per-session counters.
type Stats struct {
	FramesReceived uint64
	FramesDropped  uint64
	Boundaries     uint64
	StreamsOpened  uint64
	Responses      uint64
}

// Loop events.
type (
	audioIn       struct{ data []byte }
	controlIn     struct{ data []byte }
	boundaryFired struct{ token uint64 }
	streamOpened  struct {
		gen    uint64
		stream stt.Stream
		err    error
	}
	transcriptIn struct {
		gen uint64
		ev  stt.Event
	}
	streamEnded    struct{ gen uint64 }
	replyGenerated struct {
		reply Reply
		err   error
	}
	replySpoken struct {
		fallback bool
		result   Synthesis
		err      error
	}
	barrier struct{ fn func() }
)

// CallSession is the state machine for one call.
type CallSession struct {
	id       string
	cfg      Config
	pipeline Pipeline
	tx       guardedTransport
	clock    audio.Clock
	seg      *audio.Segmenter
	created  time.Time

	inbox     chan any
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	started   atomic.Bool
	state     atomic.Int32

	// Owned by the loop goroutine.
	gen        uint64
	current    stt.Stream
	opening    bool
	live       map[uint64]stt.Stream
	responding bool
	pending    []string

	historyMu sync.Mutex
	history   []types.Message

	framesReceived atomic.Uint64
	framesDropped  atomic.Uint64
	boundaries     atomic.Uint64
	streamsOpened  atomic.Uint64
	responses      atomic.Uint64
}

// NewCallSession creates a session for one transport connection. Run must
// be called to start it.
func NewCallSession(id string, tx Transport, pipeline Pipeline, cfg Config) *CallSession {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = types.DefaultSystemPrompt
	}
	if cfg.InputFormat.SampleRate == 0 {
		cfg.InputFormat = audio.PipelineFormat()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = audio.RealClock()
	}

	s := &CallSession{
		id:       id,
		cfg:      cfg,
		pipeline: pipeline,
		clock:    clock,
		created:  clock.Now(),
		inbox:    make(chan any, inboxSize),
		done:     make(chan struct{}),
		live:     make(map[uint64]stt.Stream),
		history:  []types.Message{types.NewSystemMessage(cfg.SystemPrompt)},
	}
	s.tx = guardedTransport{tx: tx, closed: &s.closed}
	s.seg = audio.NewSegmenter(cfg.VAD, clock, func(token uint64) {
		s.post(boundaryFired{token: token})
	})
	return s
}

// ID returns the session id.
func (s *CallSession) ID() string {
	return s.id
}

// State returns the current state.
func (s *CallSession) State() State {
	return State(s.state.Load())
}

// Done is closed when the session closes.
func (s *CallSession) Done() <-chan struct{} {
	return s.done
}

// History returns a copy of the conversation so far.
func (s *CallSession) History() []types.Message {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	return types.CloneMessages(s.history)
}

// Stats returns a snapshot of the session counters.
func (s *CallSession) Stats() Stats {
	return Stats{
		FramesReceived: s.framesReceived.Load(),
		FramesDropped:  s.framesDropped.Load(),
		Boundaries:     s.boundaries.Load(),
		StreamsOpened:  s.streamsOpened.Load(),
		Responses:      s.responses.Load(),
	}
}

// HandleAudio queues one inbound binary frame. The caller must not modify
// data afterwards. Frames are processed in the order they are queued.
func (s *CallSession) HandleAudio(data []byte) {
	s.post(audioIn{data: data})
}

// HandleText queues one inbound JSON control frame.
func (s *CallSession) HandleText(data []byte) {
	s.post(controlIn{data: data})
}

// Close moves the session to Closed. Further input is discarded and sends
// to the transport are refused. It is safe to call more than once and from
// any goroutine.
func (s *CallSession) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
	})
}

// post delivers a loop event. It reports false once the session is closed.
func (s *CallSession) post(ev any) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.inbox <- ev:
		return true
	case <-s.done:
		return false
	}
}

// Run drives the session until it is closed, the call times out or ctx is
// cancelled. It returns nil after Close, ErrCallTimeout after a timeout, and
// ctx's error otherwise.
func (s *CallSession) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("session already running")
	}
	ctx = logger.WithSessionID(ctx, s.id)

	var cancel context.CancelFunc
	if s.cfg.CallTimeout > 0 {
		ctx, cancel = context.WithTimeoutCause(ctx, s.cfg.CallTimeout, ErrCallTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	metrics.RecordSessionStart()
	logger.InfoContext(ctx, "call session started")
	s.tx.sendEvent(ConnectedEvent{
		Type:      EventConnected,
		Server:    ServerName,
		Version:   version.GetVersion(),
		SessionID: s.id,
		Timestamp: unixMillis(s.clock.Now()),
	})

	s.openStream(ctx)
	s.updateState()

	var result error
	outcome := outcomeClosed
loop:
	for {
		select {
		case <-s.done:
			break loop
		case <-ctx.Done():
			result = context.Cause(ctx)
			outcome = outcomeShutdown
			if errors.Is(result, ErrCallTimeout) {
				outcome = outcomeTimeout
			}
			break loop
		case ev := <-s.inbox:
			s.handle(ctx, ev)
			s.updateState()
		}
	}

	s.release(ctx, outcome)
	return result
}

// release tears down everything the session owns. It runs once, on the
// loop goroutine, after the loop exits.
func (s *CallSession) release(ctx context.Context, outcome string) {
	s.Close()
	s.seg.Stop()
	for gen, stream := range s.live {
		_ = stream.Close()
		delete(s.live, gen)
	}
	s.current = nil
	s.opening = false
	s.pending = nil
	s.state.Store(int32(StateClosed))

	metrics.RecordSessionEnd(outcome, s.clock.Now().Sub(s.created).Seconds())
	stats := s.Stats()
	logger.InfoContext(ctx, "call session closed",
		"outcome", outcome,
		"frames", stats.FramesReceived,
		"dropped", stats.FramesDropped,
		"responses", stats.Responses,
	)
}

func (s *CallSession) updateState() {
	var st State
	switch {
	case s.closed.Load():
		st = StateClosed
	case s.responding:
		st = StateResponding
	case s.current != nil || s.opening:
		st = StateListening
	default:
		st = StateIdle
	}
	s.state.Store(int32(st))
}

func (s *CallSession) handle(ctx context.Context, ev any) {
	if s.closed.Load() {
		if opened, ok := ev.(streamOpened); ok && opened.stream != nil {
			_ = opened.stream.Close()
		}
		return
	}

	switch ev := ev.(type) {
	case audioIn:
		s.onAudio(ctx, ev.data)
	case controlIn:
		s.onControl(ctx, ev.data)
	case boundaryFired:
		s.onBoundary(ctx, ev.token)
	case streamOpened:
		s.onStreamOpened(ctx, ev)
	case transcriptIn:
		s.onTranscript(ctx, ev)
	case streamEnded:
		s.onStreamEnded(ctx, ev.gen)
	case replyGenerated:
		s.onReplyGenerated(ctx, ev)
	case replySpoken:
		s.onReplySpoken(ctx, ev)
	case barrier:
		ev.fn()
	}
}

func (s *CallSession) drop(reason string) {
	s.framesDropped.Add(1)
	metrics.RecordFrameDropped(reason)
}

func (s *CallSession) onAudio(ctx context.Context, data []byte) {
	s.framesReceived.Add(1)
	metrics.RecordFrameReceived()

	frame, err := s.pipeline.Normalizer.Normalize(data, s.cfg.InputFormat)
	if err != nil {
		logger.DebugContext(ctx, "dropping frame", "error", err)
		s.drop(metrics.DropUnsupportedFormat)
		return
	}

	s.seg.OnFrame(frame, s.clock.Now())

	if s.current == nil {
		s.drop(metrics.DropNoStream)
		return
	}
	if err := s.pipeline.Transcriber.Push(s.current, frame); err != nil {
		logger.WarnContext(ctx, "stt push failed", "error", err)
		s.drop(metrics.DropNoStream)
	}
}

func (s *CallSession) onControl(ctx context.Context, data []byte) {
	msg, err := ParseControl(data)
	if err != nil {
		logger.WarnContext(ctx, "invalid control message", "error", err)
		return
	}

	switch msg.Type {
	case ControlPing:
		ts := msg.Timestamp
		if ts == nil {
			ts = unixMillis(s.clock.Now())
		}
		s.tx.sendEvent(PongEvent{Type: EventPong, Timestamp: ts})
	case ControlConfigure:
		logger.InfoContext(ctx, "configure requested", "system_prompt", msg.SystemPrompt)
	default:
		logger.DebugContext(ctx, "unhandled control message", "type", msg.Type)
	}
}

// openStream retires the current slot and starts opening a new stream
// under the next generation.
func (s *CallSession) openStream(ctx context.Context) {
	s.gen++
	gen := s.gen
	s.current = nil
	s.opening = true
	s.streamsOpened.Add(1)

	go func() {
		stream, err := s.pipeline.Transcriber.Open(ctx, s.id)
		if !s.post(streamOpened{gen: gen, stream: stream, err: err}) && stream != nil {
			_ = stream.Close()
		}
	}()
}

func (s *CallSession) onStreamOpened(ctx context.Context, ev streamOpened) {
	if ev.gen != s.gen {
		if ev.stream != nil {
			_ = ev.stream.Close()
		}
		return
	}
	s.opening = false

	streamCtx := logger.WithStreamGen(ctx, strconv.FormatUint(ev.gen, 10))
	if ev.err != nil {
		logger.ProviderError(streamCtx, stageSTT, s.pipeline.Transcriber.Provider(), ev.err)
		s.tx.sendEvent(ErrorEvent{Type: EventError, Message: "speech recognition unavailable"})
		return
	}

	s.current = ev.stream
	s.live[ev.gen] = ev.stream
	logger.DebugContext(streamCtx, "stt stream opened")
	go s.forward(ev.gen, ev.stream)
}

// forward relays one stream's events to the loop.
func (s *CallSession) forward(gen uint64, stream stt.Stream) {
	for ev := range stream.Events() {
		if !s.post(transcriptIn{gen: gen, ev: ev}) {
			return
		}
	}
	s.post(streamEnded{gen: gen})
}

// discard closes a stream and removes it from the slot if it is current.
func (s *CallSession) discard(gen uint64) {
	stream, ok := s.live[gen]
	if !ok {
		return
	}
	delete(s.live, gen)
	_ = stream.Close()
	if gen == s.gen {
		s.current = nil
	}
}

func (s *CallSession) onStreamEnded(ctx context.Context, gen uint64) {
	if _, ok := s.live[gen]; !ok {
		return
	}
	logger.DebugContext(logger.WithStreamGen(ctx, strconv.FormatUint(gen, 10)), "stt stream ended")
	s.discard(gen)
}

func (s *CallSession) onBoundary(ctx context.Context, token uint64) {
	if !s.seg.Expire(token) {
		return
	}
	s.boundaries.Add(1)
	metrics.RecordUtteranceBoundary()

	switch {
	case s.opening:
		// The stream being opened serves the next utterance.
		return
	case s.current != nil:
		if err := s.pipeline.Transcriber.EndInput(s.current); err != nil {
			logger.WarnContext(ctx, "stt end input failed", "error", err)
		}
		// The retired stream stays live so its final transcript still counts.
	case s.responding:
		return
	}
	s.openStream(ctx)
}

func (s *CallSession) onTranscript(ctx context.Context, in transcriptIn) {
	if _, ok := s.live[in.gen]; !ok {
		return
	}
	ev := in.ev

	if ev.Err != nil {
		ctx = logger.WithStreamGen(ctx, strconv.FormatUint(in.gen, 10))
		logger.ProviderError(ctx, stageSTT, s.pipeline.Transcriber.Provider(), ev.Err)
		s.tx.sendEvent(ErrorEvent{Type: EventError, Message: "speech recognition error"})
		return
	}

	text := strings.TrimSpace(ev.Text)
	if ev.Kind != stt.EventFinal {
		metrics.RecordTranscript("interim")
		if text != "" {
			s.sendTranscription(false, text)
		}
		return
	}
	if text == "" {
		metrics.RecordTranscript("empty")
		return
	}

	metrics.RecordTranscript("final")
	s.sendTranscription(true, text)
	s.discard(in.gen)

	if s.responding {
		logger.DebugContext(ctx, "queueing final transcript behind current response")
		s.pending = append(s.pending, text)
		return
	}
	s.startResponse(ctx, text)
}

func (s *CallSession) sendTranscription(final bool, text string) {
	s.tx.sendEvent(TranscriptionEvent{
		Type:      EventTranscription,
		IsFinal:   final,
		Text:      text,
		Timestamp: unixMillis(s.clock.Now()),
	})
}

func (s *CallSession) appendHistory(msg types.Message) {
	s.historyMu.Lock()
	s.history = append(s.history, msg)
	s.historyMu.Unlock()
}

// startResponse appends the user turn and generates a reply in the
// background. Response work is not cancelled by Close; its output is
// refused by the guarded transport instead.
func (s *CallSession) startResponse(ctx context.Context, text string) {
	s.responding = true
	s.appendHistory(types.NewUserMessage(text))
	history := s.History()
	logger.InfoContext(ctx, "user turn", "text", text)

	respCtx := context.WithoutCancel(ctx)
	go func() {
		reply, err := s.pipeline.Generator.Generate(respCtx, s.id, history)
		s.post(replyGenerated{reply: reply, err: err})
	}()
}

func (s *CallSession) onReplyGenerated(ctx context.Context, ev replyGenerated) {
	if ev.err != nil {
		logger.ProviderError(ctx, stageLLM, s.pipeline.Generator.Provider(), ev.err)
		metrics.RecordResponse("error")
		s.tx.sendEvent(ErrorEvent{Type: EventError, Message: "response generation failed"})
		s.finishResponse(ctx)
		return
	}
	if ev.reply.StreamErr != nil {
		logger.ProviderError(ctx, stageLLM, s.pipeline.Generator.Provider(), ev.reply.StreamErr,
			"partial", !ev.reply.Fallback)
	}

	text := ev.reply.Text
	s.appendHistory(types.NewAssistantMessage(text))
	logger.InfoContext(ctx, "assistant turn", "text", text, "fallback", ev.reply.Fallback)
	s.tx.sendEvent(LLMResponseEvent{Type: EventLLMResponse, Text: text})
	s.tx.sendEvent(TTSEvent{Type: EventTTSStarted})

	respCtx := context.WithoutCancel(ctx)
	fallback := ev.reply.Fallback
	go func() {
		result, err := s.pipeline.Synthesizer.Synthesize(respCtx, s.id, text, s.tx)
		s.post(replySpoken{fallback: fallback, result: result, err: err})
	}()
}

func (s *CallSession) onReplySpoken(ctx context.Context, ev replySpoken) {
	switch {
	case ev.err != nil:
		logger.ProviderError(ctx, stageTTS, s.pipeline.Synthesizer.Provider(), ev.err, "frames", ev.result.Sent)
		metrics.RecordResponse("error")
		s.tx.sendEvent(ErrorEvent{Type: EventError, Message: "speech synthesis failed"})
	case ev.fallback:
		metrics.RecordResponse("fallback")
	default:
		metrics.RecordResponse("success")
	}
	s.tx.sendEvent(TTSEvent{Type: EventTTSCompleted, Frames: ev.result.Sent})
	s.responses.Add(1)
	s.finishResponse(ctx)
}

// finishResponse returns to Listening, or answers the next queued final.
func (s *CallSession) finishResponse(ctx context.Context) {
	s.responding = false
	if len(s.pending) > 0 {
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.startResponse(ctx, next)
		return
	}
	if s.current == nil && !s.opening {
		s.openStream(ctx)
	}
}
