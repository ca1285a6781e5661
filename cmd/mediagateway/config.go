package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/parvbhullar/media-gateway/pkg/config"
)

// Viper keys for flag overrides. They mirror the manifest field paths.
const (
	keyLogLevel    = "logging.level"
	keyHost        = "server.host"
	keyPort        = "server.port"
	keyMaxCalls    = "server.maxConcurrentCalls"
	keyCallTimeout = "server.callTimeout"
	keyMetricsAddr = "metrics.address"
	keyNoMetrics   = "metrics.disabled"
)

// loadConfig resolves the bridge configuration: defaults, the manifest
// named by --config, the environment, then flag overrides.
func loadConfig(cmd *cobra.Command) (*config.BridgeConfig, error) {
	path, _ := cmd.Flags().GetString(flagConfig)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg)
	if verbose, _ := cmd.Flags().GetBool(flagVerbose); verbose {
		cfg.Spec.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides copies explicitly set flags into cfg.
func applyOverrides(cfg *config.BridgeConfig) {
	if viper.IsSet(keyLogLevel) {
		cfg.Spec.Logging.Level = viper.GetString(keyLogLevel)
	}
	if viper.IsSet(keyHost) {
		cfg.Spec.Server.Host = viper.GetString(keyHost)
	}
	if viper.IsSet(keyPort) {
		cfg.Spec.Server.Port = viper.GetInt(keyPort)
	}
	if viper.IsSet(keyMaxCalls) {
		cfg.Spec.Server.MaxConcurrentCalls = viper.GetInt(keyMaxCalls)
	}
	if viper.IsSet(keyCallTimeout) {
		cfg.Spec.Server.CallTimeout = viper.GetDuration(keyCallTimeout)
	}
	if viper.IsSet(keyMetricsAddr) {
		cfg.Spec.Metrics.Address = viper.GetString(keyMetricsAddr)
	}
	if viper.GetBool(keyNoMetrics) {
		cfg.Spec.Metrics.Enabled = false
	}
}
