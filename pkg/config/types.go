package config

import (
	"net"
	"strconv"
	"time"
)

// BridgeConfig is the gateway configuration manifest.
type BridgeConfig struct {
	APIVersion string     `yaml:"apiVersion"`
	Kind       string     `yaml:"kind"`
	Metadata   ObjectMeta `yaml:"metadata,omitempty"`
	Spec       BridgeSpec `yaml:"spec"`
}

// ObjectMeta names a manifest.
type ObjectMeta struct {
	Name   string            `yaml:"name,omitempty"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

// BridgeSpec holds every configuration section.
type BridgeSpec struct {
	Server  ServerSpec  `yaml:"server,omitempty"`
	Audio   AudioSpec   `yaml:"audio,omitempty"`
	STT     STTSpec     `yaml:"stt,omitempty"`
	LLM     LLMSpec     `yaml:"llm,omitempty"`
	TTS     TTSSpec     `yaml:"tts,omitempty"`
	Metrics MetricsSpec `yaml:"metrics,omitempty"`
	Tracing TracingSpec `yaml:"tracing,omitempty"`
	Logging LoggingSpec `yaml:"logging,omitempty"`
}

// ServerSpec configures the websocket server and call admission.
type ServerSpec struct {
	Host               string        `yaml:"host,omitempty"`
	Port               int           `yaml:"port,omitempty"`
	Path               string        `yaml:"path,omitempty"`
	MaxConcurrentCalls int           `yaml:"maxConcurrentCalls,omitempty"`
	CallTimeout        time.Duration `yaml:"callTimeout,omitempty"`
	PingInterval       time.Duration `yaml:"pingInterval,omitempty"`
	ReadBufferSize     int           `yaml:"readBufferSize,omitempty"`
	WriteBufferSize    int           `yaml:"writeBufferSize,omitempty"`
}

// Addr returns host:port.
func (s ServerSpec) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// AudioSpec describes inbound audio and segmentation.
type AudioSpec struct {
	SampleRate     int           `yaml:"sampleRate,omitempty"`
	Channels       int           `yaml:"channels,omitempty"`
	BitDepth       int           `yaml:"bitDepth,omitempty"`
	SilenceTimeout time.Duration `yaml:"silenceTimeout,omitempty"`
	VADThreshold   int           `yaml:"vadThreshold,omitempty"`
	ReplayChunk    time.Duration `yaml:"replayChunk,omitempty"`
}

// STTSpec configures the speech-to-text provider.
type STTSpec struct {
	Provider       string        `yaml:"provider,omitempty"`
	APIKey         string        `yaml:"apiKey,omitempty"`
	Model          string        `yaml:"model,omitempty"`
	Language       string        `yaml:"language,omitempty"`
	Endpointing    time.Duration `yaml:"endpointing,omitempty"`
	InterimResults bool          `yaml:"interimResults"`
	KeepAlive      time.Duration `yaml:"keepAlive,omitempty"`
	BaseURL        string        `yaml:"baseURL,omitempty"`
}

// LLMSpec configures the language model provider.
type LLMSpec struct {
	Provider     string  `yaml:"provider,omitempty"`
	APIKey       string  `yaml:"apiKey,omitempty"`
	Model        string  `yaml:"model,omitempty"`
	BaseURL      string  `yaml:"baseURL,omitempty"`
	MaxTokens    int     `yaml:"maxTokens,omitempty"`
	Temperature  float32 `yaml:"temperature,omitempty"`
	SystemPrompt string  `yaml:"systemPrompt,omitempty"`
}

// TTSSpec configures the text-to-speech provider.
type TTSSpec struct {
	Provider  string `yaml:"provider,omitempty"`
	APIKey    string `yaml:"apiKey,omitempty"`
	Model     string `yaml:"model,omitempty"`
	ChunkSize int    `yaml:"chunkSize,omitempty"`
	BaseURL   string `yaml:"baseURL,omitempty"`
}

// MetricsSpec configures the Prometheus exporter.
type MetricsSpec struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address,omitempty"`
}

// TracingSpec configures OTLP trace export.
type TracingSpec struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint,omitempty"`
	ServiceName string `yaml:"serviceName,omitempty"`
}

// LoggingSpec configures the global logger.
type LoggingSpec struct {
	Level        string            `yaml:"level,omitempty"`
	Format       string            `yaml:"format,omitempty"`
	CommonFields map[string]string `yaml:"commonFields,omitempty"`
}

// Provider names.
const (
	ProviderDeepgram = "deepgram"
	ProviderOpenAI   = "openai"
)

// Default returns the configuration used when nothing is overridden.
func Default() *BridgeConfig {
	return &BridgeConfig{
		APIVersion: APIVersion,
		Kind:       KindBridgeConfig,
		Metadata:   ObjectMeta{Name: "media-gateway"},
		Spec: BridgeSpec{
			Server: ServerSpec{
				Host:               "0.0.0.0",
				Port:               8765,
				Path:               "/ws/rustpbx",
				MaxConcurrentCalls: 10,
				CallTimeout:        300 * time.Second,
				PingInterval:       30 * time.Second,
				ReadBufferSize:     4096,
				WriteBufferSize:    4096,
			},
			Audio: AudioSpec{
				SampleRate:     16000,
				Channels:       1,
				BitDepth:       16,
				SilenceTimeout: 1200 * time.Millisecond,
				VADThreshold:   500,
				ReplayChunk:    20 * time.Millisecond,
			},
			STT: STTSpec{
				Provider:       ProviderDeepgram,
				Model:          "nova-2",
				Language:       "en",
				Endpointing:    1000 * time.Millisecond,
				InterimResults: true,
				KeepAlive:      5 * time.Second,
			},
			LLM: LLMSpec{
				Provider:     ProviderOpenAI,
				Model:        "gpt-4o-mini",
				BaseURL:      "https://api.openai.com/v1",
				MaxTokens:    150,
				Temperature:  0.7,
				SystemPrompt: "You are a helpful AI assistant.",
			},
			TTS: TTSSpec{
				Provider:  ProviderDeepgram,
				Model:     "aura-asteria-en",
				ChunkSize: 4096,
			},
			Metrics: MetricsSpec{
				Enabled: true,
				Address: ":9090",
			},
			Tracing: TracingSpec{
				ServiceName: "media-gateway",
			},
			Logging: LoggingSpec{
				Level:  "info",
				Format: "text",
			},
		},
	}
}
