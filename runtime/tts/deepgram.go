package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/parvbhullar/media-gateway/pkg/httputil"
	"github.com/parvbhullar/media-gateway/runtime/logger"
)

const (
	deepgramProvider     = "deepgram"
	deepgramSpeakURL     = "https://api.deepgram.com/v1/speak"
	deepgramDefaultModel = "aura-asteria-en"
	deepgramEventBuffer  = 16
)

// DeepgramService implements StreamingService using Deepgram's speak API
// with raw linear16 output.
type DeepgramService struct {
	apiKey  string
	baseURL string
	client  *http.Client
	model   string
}

// DeepgramOption configures the Deepgram TTS service.
type DeepgramOption func(*DeepgramService)

// WithDeepgramBaseURL sets a custom speak endpoint (for testing or proxies).
func WithDeepgramBaseURL(u string) DeepgramOption {
	return func(s *DeepgramService) {
		s.baseURL = u
	}
}

// WithDeepgramClient sets a custom HTTP client.
func WithDeepgramClient(client *http.Client) DeepgramOption {
	return func(s *DeepgramService) {
		s.client = client
	}
}

// WithDeepgramModel sets the default voice model.
func WithDeepgramModel(model string) DeepgramOption {
	return func(s *DeepgramService) {
		s.model = model
	}
}

// NewDeepgram creates a Deepgram TTS service.
func NewDeepgram(apiKey string, opts ...DeepgramOption) *DeepgramService {
	s := &DeepgramService{
		apiKey:  apiKey,
		baseURL: deepgramSpeakURL,
		client:  httputil.NewHTTPClient(httputil.DefaultSynthesisTimeout),
		model:   deepgramDefaultModel,
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

type deepgramRequest struct {
	Text string `json:"text"`
}

type deepgramErrorResponse struct {
	ErrCode string `json:"err_code"`
	ErrMsg  string `json:"err_msg"`
}

// Synthesize converts text to raw PCM. The caller must close the reader.
func (s *DeepgramService) Synthesize(ctx context.Context, text string, cfg StreamConfig) (io.ReadCloser, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if s.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	endpoint, err := s.speakURL(cfg)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(deepgramRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	logger.APIRequest(deepgramProvider, req.Method, endpoint, map[string]string{
		"Authorization": req.Header.Get("Authorization"),
	})

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, NewSynthesisError(deepgramProvider, "", "request failed", err, true)
	}
	logger.APIResponse(deepgramProvider, resp.StatusCode, nil)

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var errResp deepgramErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, statusError(deepgramProvider, resp.StatusCode, errResp.ErrCode, errResp.ErrMsg)
	}
	return resp.Body, nil
}

func (s *DeepgramService) speakURL(cfg StreamConfig) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid deepgram url: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = s.model
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	q := url.Values{}
	q.Set("model", model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("container", "none")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// OpenStream returns a stream that collects text until EndInput and then
// streams the synthesized audio in chunks of cfg.ChunkSize bytes.
func (s *DeepgramService) OpenStream(ctx context.Context, cfg StreamConfig) (Stream, error) {
	if s.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.ChunkSize < 2 {
		cfg.ChunkSize = DefaultChunkSize
	}

	streamCtx, cancel := context.WithCancel(ctx)
	return &deepgramStream{
		svc:    s,
		cfg:    cfg,
		ctx:    streamCtx,
		cancel: cancel,
		events: make(chan Event, deepgramEventBuffer),
	}, nil
}

type deepgramStream struct {
	svc    *DeepgramService
	cfg    StreamConfig
	ctx    context.Context
	cancel context.CancelFunc
	events chan Event

	mu    sync.Mutex
	text  strings.Builder
	ended bool
}

func (s *deepgramStream) PushText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrInputEnded
	}
	s.text.WriteString(text)
	return nil
}

func (s *deepgramStream) EndInput() error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil
	}
	s.ended = true
	text := s.text.String()
	s.mu.Unlock()

	go s.run(text)
	return nil
}

func (s *deepgramStream) Events() <-chan Event {
	return s.events
}

func (s *deepgramStream) Close() error {
	s.cancel()
	return nil
}

func (s *deepgramStream) run(text string) {
	defer close(s.events)
	defer s.cancel()

	body, err := s.svc.Synthesize(s.ctx, text, s.cfg)
	if err != nil {
		s.emit(Event{Err: err})
		return
	}
	defer body.Close()

	err = ChunkPCM(body, s.cfg.ChunkSize, func(chunk []byte) bool {
		return s.emit(Event{Audio: chunk})
	})
	if err != nil {
		if s.ctx.Err() == nil {
			s.emit(Event{Err: NewSynthesisError(deepgramProvider, "", "audio stream interrupted", err, true)})
		}
		return
	}
	s.emit(Event{Final: true})
}

func (s *deepgramStream) emit(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// ChunkPCM reads 16-bit PCM from r and passes it to emit as it arrives, in
// chunks of at most size bytes. A chunk never splits a sample: an odd
// trailing byte is carried into the next chunk, and one left at EOF is
// dropped. Chunks are freshly allocated. ChunkPCM stops early without error
// when emit returns false.
func ChunkPCM(r io.Reader, size int, emit func([]byte) bool) error {
	if size < 2 {
		return fmt.Errorf("chunk size %d too small", size)
	}
	buf := make([]byte, size)
	carry := 0
	for {
		n, err := r.Read(buf[carry:])
		n += carry
		whole := n &^ 1
		if whole > 0 {
			chunk := make([]byte, whole)
			copy(chunk, buf[:whole])
			if !emit(chunk) {
				return nil
			}
		}
		carry = n - whole
		if carry == 1 {
			buf[0] = buf[whole]
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
