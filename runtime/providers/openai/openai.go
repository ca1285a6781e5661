// Package openai provides an OpenAI chat completions provider that streams
// reply fragments over SSE.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/parvbhullar/media-gateway/pkg/httputil"
	"github.com/parvbhullar/media-gateway/runtime/logger"
	"github.com/parvbhullar/media-gateway/runtime/providers"
	"github.com/parvbhullar/media-gateway/runtime/types"
)

// HTTP constants
const (
	openAIChatCompletionsPath = "/chat/completions"
	contentTypeHeader         = "Content-Type"
	applicationJSON           = "application/json"
	authorizationHeader       = "Authorization"
	bearerPrefix              = "Bearer "
	sseDone                   = "[DONE]"
)

// Defaults used when the configuration leaves them unset.
const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 150
	DefaultTemperature = 0.7
)

// eventOutputTextDelta is the Responses API event type carrying text.
const eventOutputTextDelta = "response.output_text.delta"

// Provider implements providers.ChatProvider for OpenAI.
type Provider struct {
	id       string
	model    string
	baseURL  string
	apiKey   string
	defaults providers.ProviderDefaults
	client   *http.Client
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.client = client
	}
}

// NewProvider creates a new OpenAI provider. Empty model and baseURL and
// zero defaults fall back to the package defaults.
func NewProvider(id, model, baseURL, apiKey string, defaults providers.ProviderDefaults, opts ...Option) *Provider {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if defaults.MaxTokens <= 0 {
		defaults.MaxTokens = DefaultMaxTokens
	}
	if defaults.Temperature == 0 {
		defaults.Temperature = DefaultTemperature
	}

	p := &Provider{
		id:       id,
		model:    model,
		baseURL:  baseURL,
		apiKey:   apiKey,
		defaults: defaults,
		client:   httputil.NewHTTPClient(httputil.DefaultProviderTimeout),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the provider identifier.
func (p *Provider) ID() string {
	return p.id
}

// Model returns the configured model.
func (p *Provider) Model() string {
	return p.model
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float32         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
	Stream      bool            `json:"stream"`
}

// openAIStreamChunk covers both fragment shapes: chat completions chunks
// carry choices[0].delta.content, Responses API events carry a top-level
// delta string.
type openAIStreamChunk struct {
	Type    string `json:"type"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Delta json.RawMessage `json:"delta"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func convertMessages(messages []types.Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openAIMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// ChatStream streams a completion for messages.
func (p *Provider) ChatStream(ctx context.Context, messages []types.Message) (<-chan providers.StreamChunk, error) {
	if p.apiKey == "" {
		return nil, providers.ErrMissingAPIKey
	}

	reqBody, err := json.Marshal(openAIRequest{
		Model:       p.model,
		Messages:    convertMessages(messages),
		Temperature: p.defaults.Temperature,
		MaxTokens:   p.defaults.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.baseURL + openAIChatCompletionsPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set(contentTypeHeader, applicationJSON)
	httpReq.Header.Set(authorizationHeader, bearerPrefix+p.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")
	logger.APIRequest(p.id, httpReq.Method, url, map[string]string{
		authorizationHeader: httpReq.Header.Get(authorizationHeader),
	})

	//nolint:bodyclose // body is closed in streamResponse goroutine
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &providers.ProviderError{Provider: p.id, Message: "failed to send request", Cause: err, Retryable: true}
	}
	logger.APIResponse(p.id, resp.StatusCode, nil)

	if err := providers.CheckHTTPError(p.id, resp); err != nil {
		return nil, err
	}

	outChan := make(chan providers.StreamChunk)
	go p.streamResponse(ctx, resp.Body, outChan)
	return outChan, nil
}

// streamResponse reads the SSE body and sends one chunk per fragment.
func (p *Provider) streamResponse(ctx context.Context, body io.ReadCloser, outChan chan<- providers.StreamChunk) {
	defer close(outChan)
	defer body.Close()

	send := func(chunk providers.StreamChunk) bool {
		select {
		case outChan <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := providers.NewSSEScanner(body)
	for scanner.Scan() {
		data := scanner.Data()
		if data == sseDone {
			return
		}

		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			logger.Debug("openai: skipping malformed chunk", "error", err)
			continue
		}
		if chunk.Error != nil {
			send(providers.StreamChunk{Error: &providers.ProviderError{Provider: p.id, Message: chunk.Error.Message}})
			return
		}

		if !send(resolveChunk(&chunk, scanner.Event())) {
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		send(providers.StreamChunk{Error: &providers.ProviderError{
			Provider: p.id, Message: "stream interrupted", Cause: err, Retryable: true,
		}})
	}
}

// resolveChunk turns one decoded fragment into a StreamChunk, inspecting
// both the chat completions and the output-text shapes.
func resolveChunk(chunk *openAIStreamChunk, event string) providers.StreamChunk {
	var content, finish string
	if len(chunk.Choices) > 0 {
		content = chunk.Choices[0].Delta.Content
		if fr := chunk.Choices[0].FinishReason; fr != nil {
			finish = *fr
		}
	}

	var outputText string
	if chunk.Type == eventOutputTextDelta || event == eventOutputTextDelta {
		// delta is an object on chat chunks, so decode only string values.
		_ = json.Unmarshal(chunk.Delta, &outputText)
	}

	return providers.StreamChunk{
		Delta:        providers.ResolveDelta(content, outputText),
		FinishReason: finish,
	}
}
