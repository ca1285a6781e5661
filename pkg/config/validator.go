package config

import (
	"fmt"
	"strings"
)

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed with %d errors:\n  - %s",
		len(e.Problems), strings.Join(e.Problems, "\n  - "))
}

// Validate checks value ranges. It returns a *ValidationError naming every
// violation, or nil.
func (c *BridgeConfig) Validate() error {
	v := &validator{}
	s := c.Spec

	v.check(c.APIVersion == APIVersion, "apiVersion must be %q", APIVersion)
	v.check(c.Kind == KindBridgeConfig, "kind must be %q", KindBridgeConfig)

	v.check(s.Server.Port > 0 && s.Server.Port <= 65535, "server.port must be between 1 and 65535")
	v.check(strings.HasPrefix(s.Server.Path, "/"), "server.path must start with /")
	v.check(s.Server.MaxConcurrentCalls >= 1, "server.maxConcurrentCalls must be at least 1")
	v.check(s.Server.CallTimeout > 0, "server.callTimeout must be positive")
	v.check(s.Server.PingInterval > 0, "server.pingInterval must be positive")
	v.check(s.Server.ReadBufferSize >= 0, "server.readBufferSize must not be negative")
	v.check(s.Server.WriteBufferSize >= 0, "server.writeBufferSize must not be negative")

	v.check(s.Audio.SampleRate > 0, "audio.sampleRate must be positive")
	v.check(s.Audio.Channels == 1 || s.Audio.Channels == 2, "audio.channels must be 1 or 2")
	v.check(s.Audio.BitDepth == 8 || s.Audio.BitDepth == 16, "audio.bitDepth must be 8 or 16")
	v.check(s.Audio.SilenceTimeout > 0, "audio.silenceTimeout must be positive")
	v.check(s.Audio.VADThreshold >= 0 && s.Audio.VADThreshold <= 32768, "audio.vadThreshold must be between 0 and 32768")
	v.check(s.Audio.ReplayChunk > 0, "audio.replayChunk must be positive")

	v.check(s.STT.Provider == ProviderDeepgram, "stt.provider %q is not supported", s.STT.Provider)
	v.check(s.STT.Endpointing > 0, "stt.endpointing must be positive")
	v.check(s.STT.KeepAlive >= 0, "stt.keepAlive must not be negative")

	v.check(s.LLM.Provider == ProviderOpenAI, "llm.provider %q is not supported", s.LLM.Provider)
	v.check(s.LLM.Model != "", "llm.model is required")
	v.check(s.LLM.MaxTokens > 0, "llm.maxTokens must be positive")
	v.check(s.LLM.Temperature >= 0 && s.LLM.Temperature <= 2, "llm.temperature must be between 0 and 2")

	v.check(s.TTS.Provider == ProviderDeepgram, "tts.provider %q is not supported", s.TTS.Provider)
	v.check(s.TTS.ChunkSize >= 2, "tts.chunkSize must be at least 2")

	v.check(!s.Metrics.Enabled || s.Metrics.Address != "", "metrics.address is required when metrics are enabled")
	v.check(!s.Tracing.Enabled || s.Tracing.Endpoint != "", "tracing.endpoint is required when tracing is enabled")

	switch s.Logging.Format {
	case "", "text", "json":
	default:
		v.add("logging.format %q must be text or json", s.Logging.Format)
	}
	switch s.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		v.add("logging.level %q is not a known level", s.Logging.Level)
	}

	return v.err()
}

// RequireCredentials reports the API keys the configured providers need but
// do not have.
func (c *BridgeConfig) RequireCredentials() error {
	v := &validator{}
	v.check(c.Spec.STT.APIKey != "", "stt: %s is not set", EnvDeepgramAPIKey)
	v.check(c.Spec.LLM.APIKey != "", "llm: %s is not set", EnvOpenAIAPIKey)
	v.check(c.Spec.TTS.APIKey != "", "tts: %s is not set", EnvDeepgramAPIKey)
	return v.err()
}

type validator struct {
	problems []string
}

func (v *validator) check(ok bool, format string, args ...any) {
	if !ok {
		v.add(format, args...)
	}
}

func (v *validator) add(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}
