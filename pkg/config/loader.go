package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	pkgerrors "github.com/parvbhullar/media-gateway/pkg/errors"
)

// Load builds the configuration from defaults and an optional manifest
// file, then applies the process environment. An empty filename skips the
// file.
func Load(filename string) (*BridgeConfig, error) {
	cfg := Default()
	if filename != "" {
		if err := cfg.LoadFile(filename); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes a YAML manifest over c. Fields absent from the file keep
// their current values. Unknown fields are an error.
func (c *BridgeConfig) LoadFile(filename string) error {
	data, err := os.ReadFile(filename) //nolint:gosec // path comes from the operator
	if err != nil {
		return pkgerrors.New(pkgerrors.ComponentConfig, "read "+filename, err)
	}
	if err := c.Decode(data); err != nil {
		return pkgerrors.New(pkgerrors.ComponentConfig, "parse "+filename, err)
	}
	return nil
}

// Decode decodes YAML manifest bytes over c.
func (c *BridgeConfig) Decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if c.Kind != KindBridgeConfig {
		return fmt.Errorf("unexpected kind %q, want %q", c.Kind, KindBridgeConfig)
	}
	return nil
}

// LoadEnvFile loads a .env file into the process environment. Variables
// already set are not overwritten. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Environment variables recognized by ApplyEnv.
const (
	EnvDeepgramAPIKey     = "DEEPGRAM_API_KEY"
	EnvOpenAIAPIKey       = "OPENAI_API_KEY"
	EnvOpenAIBaseURL      = "OPENAI_BASE_URL"
	EnvLogLevel           = "LOG_LEVEL"
	EnvServerHost         = "PIPECAT_SERVER_HOST"
	EnvServerPort         = "PIPECAT_SERVER_PORT"
	EnvMaxConcurrentCalls = "MAX_CONCURRENT_CALLS"
	EnvCallTimeout        = "CALL_TIMEOUT"
	EnvLLMModel           = "LLM_MODEL"
	EnvLLMMaxTokens       = "LLM_MAX_TOKENS"
	EnvLLMTemperature     = "LLM_TEMPERATURE"
	EnvSTTModel           = "STT_MODEL"
	EnvSTTLanguage        = "STT_LANGUAGE"
	EnvTTSModel           = "TTS_MODEL"
	EnvSampleRate         = "SAMPLE_RATE"
	EnvChannels           = "CHANNELS"
)

// placeholderPrefix marks API keys copied from an example env file.
const placeholderPrefix = "placeholder_"

// ApplyEnv overrides c with environment variables read through lookup.
// CALL_TIMEOUT is in seconds. Placeholder API keys are ignored.
func (c *BridgeConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	s := &c.Spec
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}

	if key, ok := lookup(EnvDeepgramAPIKey); ok && !isPlaceholder(key) {
		s.STT.APIKey = strings.TrimSpace(key)
		s.TTS.APIKey = strings.TrimSpace(key)
	}
	if key, ok := lookup(EnvOpenAIAPIKey); ok && !isPlaceholder(key) {
		s.LLM.APIKey = strings.TrimSpace(key)
	}

	str(EnvOpenAIBaseURL, &s.LLM.BaseURL)
	str(EnvLogLevel, &s.Logging.Level)
	s.Logging.Level = strings.ToLower(s.Logging.Level)
	str(EnvServerHost, &s.Server.Host)
	integer(EnvServerPort, &s.Server.Port)
	integer(EnvMaxConcurrentCalls, &s.Server.MaxConcurrentCalls)
	str(EnvLLMModel, &s.LLM.Model)
	integer(EnvLLMMaxTokens, &s.LLM.MaxTokens)
	str(EnvSTTModel, &s.STT.Model)
	str(EnvSTTLanguage, &s.STT.Language)
	str(EnvTTSModel, &s.TTS.Model)
	integer(EnvSampleRate, &s.Audio.SampleRate)
	integer(EnvChannels, &s.Audio.Channels)

	var seconds int
	if _, ok := lookup(EnvCallTimeout); ok {
		integer(EnvCallTimeout, &seconds)
		if seconds > 0 {
			s.Server.CallTimeout = time.Duration(seconds) * time.Second
		}
	}
	if v, ok := lookup(EnvLLMTemperature); ok && strings.TrimSpace(v) != "" {
		t, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvLLMTemperature, err))
		} else {
			s.LLM.Temperature = float32(t)
		}
	}

	return errors.Join(errs...)
}

func isPlaceholder(key string) bool {
	key = strings.TrimSpace(key)
	return key == "" || strings.HasPrefix(key, placeholderPrefix)
}
