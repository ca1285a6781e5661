package main

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parvbhullar/media-gateway/pkg/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfig(newConfigCmd(t, "", false))
	require.NoError(t, err)
	assert.Equal(t, config.Default().Spec, cfg.Spec)
}

func TestLoadConfig_ManifestAndEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvMaxConcurrentCalls, "7")
	t.Setenv(config.EnvDeepgramAPIKey, "dg-key")

	path := writeFile(t, "bridge.yaml", []byte(validManifest))
	cfg, err := loadConfig(newConfigCmd(t, path, false))
	require.NoError(t, err)

	s := cfg.Spec
	assert.Equal(t, 9100, s.Server.Port)
	assert.Equal(t, 7, s.Server.MaxConcurrentCalls)
	assert.Equal(t, 8000, s.Audio.SampleRate)
	assert.Equal(t, 700*time.Millisecond, s.Audio.SilenceTimeout)
	assert.Equal(t, "Answer in one sentence.", s.LLM.SystemPrompt)
	assert.Equal(t, "dg-key", s.STT.APIKey)
	assert.Equal(t, "dg-key", s.TTS.APIKey)
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvServerPort, "9200")

	viper.Set(keyPort, 9300)
	viper.Set(keyCallTimeout, "45s")
	viper.Set(keyNoMetrics, true)
	t.Cleanup(func() {
		viper.Set(keyPort, nil)
		viper.Set(keyCallTimeout, nil)
		viper.Set(keyNoMetrics, nil)
	})

	cfg, err := loadConfig(newConfigCmd(t, "", true))
	require.NoError(t, err)
	assert.Equal(t, 9300, cfg.Spec.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Spec.Server.CallTimeout)
	assert.False(t, cfg.Spec.Metrics.Enabled)
	assert.Equal(t, "debug", cfg.Spec.Logging.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvChannels, "3")

	_, err := loadConfig(newConfigCmd(t, "", false))
	var verr *config.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "audio.channels")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	clearEnv(t)

	_, err := loadConfig(newConfigCmd(t, "does-not-exist.yaml", false))
	assert.Error(t, err)
}
