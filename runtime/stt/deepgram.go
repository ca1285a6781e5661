package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parvbhullar/media-gateway/runtime/internal/streaming"
	"github.com/parvbhullar/media-gateway/runtime/logger"
)

const (
	deepgramProvider     = "deepgram"
	deepgramListenURL    = "wss://api.deepgram.com/v1/listen"
	deepgramDefaultModel = "nova-2"
	deepgramKeepAlive    = 5 * time.Second
	deepgramEventBuffer  = 32
)

// Deepgram control and result message types.
const (
	dgTypeResults       = "Results"
	dgTypeMetadata      = "Metadata"
	dgTypeSpeechStarted = "SpeechStarted"
	dgTypeUtteranceEnd  = "UtteranceEnd"
	dgTypeError         = "Error"
)

// DeepgramService implements StreamingService using Deepgram's live
// transcription websocket.
type DeepgramService struct {
	apiKey     string
	baseURL    string
	model      string
	keepAlive  time.Duration
	maxRetries int
}

// DeepgramOption configures the Deepgram STT service.
type DeepgramOption func(*DeepgramService)

// WithDeepgramBaseURL sets a custom listen endpoint (for testing or proxies).
func WithDeepgramBaseURL(u string) DeepgramOption {
	return func(s *DeepgramService) {
		s.baseURL = u
	}
}

// WithDeepgramModel sets the default transcription model.
func WithDeepgramModel(model string) DeepgramOption {
	return func(s *DeepgramService) {
		s.model = model
	}
}

// WithDeepgramKeepAlive sets the KeepAlive message interval.
func WithDeepgramKeepAlive(d time.Duration) DeepgramOption {
	return func(s *DeepgramService) {
		s.keepAlive = d
	}
}

// WithDeepgramMaxRetries sets how many times the handshake is attempted.
func WithDeepgramMaxRetries(n int) DeepgramOption {
	return func(s *DeepgramService) {
		s.maxRetries = n
	}
}

// NewDeepgram creates a Deepgram streaming STT service.
func NewDeepgram(apiKey string, opts ...DeepgramOption) *DeepgramService {
	s := &DeepgramService{
		apiKey:     apiKey,
		baseURL:    deepgramListenURL,
		model:      deepgramDefaultModel,
		keepAlive:  deepgramKeepAlive,
		maxRetries: 2,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the provider identifier.
func (s *DeepgramService) Name() string {
	return deepgramProvider
}

// ListenURL builds the websocket URL for a stream configuration.
func (s *DeepgramService) ListenURL(cfg StreamConfig) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid deepgram url: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = s.model
	}
	language := cfg.Language
	if language == "" {
		language = DefaultLanguage
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	endpointing := cfg.Endpointing
	if endpointing <= 0 {
		endpointing = DefaultEndpointing
	}

	q := url.Values{}
	q.Set("model", model)
	q.Set("language", language)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("channels", "1")
	q.Set("interim_results", strconv.FormatBool(cfg.InterimResults))
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("endpointing", strconv.FormatInt(endpointing.Milliseconds(), 10))
	q.Set("vad_events", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// OpenStream connects a new live transcription stream.
func (s *DeepgramService) OpenStream(ctx context.Context, cfg StreamConfig) (Stream, error) {
	if s.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Channels > 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidFormat, cfg.Channels)
	}

	listenURL, err := s.ListenURL(cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+s.apiKey)
	logger.APIRequest(deepgramProvider, http.MethodGet, listenURL, map[string]string{
		"Authorization": headers.Get("Authorization"),
	})

	conn := streaming.NewConn(streaming.ConnConfig{
		URL:        listenURL,
		Headers:    headers,
		MaxRetries: s.maxRetries,
		Logger:     logger.DefaultLogger,
	})
	if err := conn.ConnectWithRetry(ctx); err != nil {
		var dialErr *streaming.DialError
		if errors.As(err, &dialErr) {
			return nil, statusError(deepgramProvider, dialErr.StatusCode, err)
		}
		return nil, NewTranscriptionError(deepgramProvider, "connect", "failed to open stream", err, true)
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream := &deepgramStream{
		conn:   conn,
		ctx:    streamCtx,
		cancel: cancel,
		events: make(chan Event, deepgramEventBuffer),
	}
	go stream.run()
	if s.keepAlive > 0 {
		conn.StartKeepAlive(streamCtx, s.keepAlive, func() error {
			return conn.SendJSON(dgControl{Type: "KeepAlive"})
		})
	}
	return stream, nil
}

type dgControl struct {
	Type string `json:"type"`
}

type dgMessage struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	Description string `json:"description"`
	Message     string `json:"message"`
	Variant     string `json:"variant"`
}

type deepgramStream struct {
	conn   *streaming.Conn
	ctx    context.Context
	cancel context.CancelFunc
	events chan Event

	inputEnded atomic.Bool
	closeOnce  sync.Once
}

func (s *deepgramStream) Push(pcm []byte) error {
	if s.inputEnded.Load() || len(pcm) == 0 {
		return nil
	}
	err := s.conn.SendBinary(pcm)
	if errors.Is(err, streaming.ErrNotConnected) {
		return nil
	}
	return err
}

func (s *deepgramStream) EndInput() error {
	if !s.inputEnded.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.conn.SendJSON(dgControl{Type: "Finalize"}); err != nil && !errors.Is(err, streaming.ErrNotConnected) {
		return err
	}
	if err := s.conn.SendJSON(dgControl{Type: "CloseStream"}); err != nil && !errors.Is(err, streaming.ErrNotConnected) {
		return err
	}
	return nil
}

func (s *deepgramStream) Events() <-chan Event {
	return s.events
}

func (s *deepgramStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.inputEnded.Store(true)
		s.cancel()
		err = s.conn.Close()
	})
	return err
}

func (s *deepgramStream) run() {
	defer close(s.events)
	defer s.cancel()

	raw := make(chan streaming.Message, deepgramEventBuffer)
	readErr := make(chan error, 1)
	go func() {
		readErr <- s.conn.ReadLoop(s.ctx, raw)
		close(raw)
	}()

	failed := false
	for msg := range raw {
		if msg.Binary || failed {
			continue
		}
		if !s.handle(msg.Data) {
			// Keep draining raw until ReadLoop notices the close.
			failed = true
			_ = s.conn.Close()
		}
	}

	if err := <-readErr; err != nil && s.ctx.Err() == nil {
		s.emit(Event{Err: NewTranscriptionError(deepgramProvider, "stream", "connection lost", err, true)})
	}
}

// handle decodes one message. It returns false when the stream must stop.
func (s *deepgramStream) handle(data []byte) bool {
	var msg dgMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Warn("deepgram: undecodable message", "error", err)
		return true
	}

	switch msg.Type {
	case dgTypeResults:
		if len(msg.Channel.Alternatives) == 0 {
			return true
		}
		alt := msg.Channel.Alternatives[0]
		kind := EventInterim
		if msg.IsFinal || msg.SpeechFinal {
			kind = EventFinal
		}
		s.emit(Event{Kind: kind, Text: alt.Transcript, Confidence: alt.Confidence})
	case dgTypeMetadata, dgTypeSpeechStarted, dgTypeUtteranceEnd:
		logger.Debug("deepgram event", "type", msg.Type)
	case dgTypeError:
		desc := msg.Description
		if desc == "" {
			desc = msg.Message
		}
		s.emit(Event{Err: NewTranscriptionError(deepgramProvider, msg.Variant, desc, nil, false)})
		return false
	default:
		logger.Debug("deepgram: unhandled message", "type", msg.Type)
	}
	return true
}

func (s *deepgramStream) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}
