package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/parvbhullar/media-gateway/pkg/config"
)

const validManifest = `apiVersion: mediagateway.io/v1alpha1
kind: BridgeConfig
metadata:
  name: cli-test
spec:
  server:
    port: 9100
    maxConcurrentCalls: 3
  audio:
    sampleRate: 8000
    silenceTimeout: 700ms
  llm:
    systemPrompt: Answer in one sentence.
  metrics:
    address: ":9100"
`

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvDeepgramAPIKey, config.EnvOpenAIAPIKey, config.EnvOpenAIBaseURL,
		config.EnvLogLevel, config.EnvServerHost, config.EnvServerPort,
		config.EnvMaxConcurrentCalls, config.EnvCallTimeout, config.EnvLLMModel,
		config.EnvLLMMaxTokens, config.EnvLLMTemperature, config.EnvSTTModel,
		config.EnvSTTLanguage, config.EnvTTSModel, config.EnvSampleRate,
		config.EnvChannels,
	} {
		t.Setenv(key, "")
	}
}

// newConfigCmd returns a command carrying the flags loadConfig reads.
func newConfigCmd(t *testing.T, configPath string, verbose bool) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String(flagConfig, "", "")
	cmd.Flags().Bool(flagVerbose, false, "")
	if configPath != "" {
		require.NoError(t, cmd.Flags().Set(flagConfig, configPath))
	}
	if verbose {
		require.NoError(t, cmd.Flags().Set(flagVerbose, "true"))
	}
	return cmd
}
