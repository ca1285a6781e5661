// Command mediagateway bridges telephony websocket audio to a streaming
// STT, LLM and TTS pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/parvbhullar/media-gateway/pkg/config"
	"github.com/parvbhullar/media-gateway/runtime/logger"
	"github.com/parvbhullar/media-gateway/runtime/version"
)

// Persistent flag names.
const (
	flagConfig   = "config"
	flagEnvFile  = "env-file"
	flagVerbose  = "verbose"
	flagLogLevel = "log-level"
)

var rootCmd = &cobra.Command{
	Use:           "mediagateway",
	Short:         "Telephony audio to STT, LLM and TTS voice bridge",
	Version:       version.GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
	Long: `mediagateway accepts telephony calls over a websocket, transcribes the
caller with a streaming speech-to-text provider, generates a reply with a
language model and speaks it back through a text-to-speech provider.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString(flagEnvFile)
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}
		if cmd.Flags().Changed(flagVerbose) {
			verbose, err := cmd.Flags().GetBool(flagVerbose)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error getting verbose flag: %v\n", err)
				return nil
			}
			logger.SetVerbose(verbose)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringP(flagConfig, "c", "", "Bridge configuration file (YAML)")
	rootCmd.PersistentFlags().String(flagEnvFile, ".env", "Environment file loaded before configuration")
	rootCmd.PersistentFlags().BoolP(flagVerbose, "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String(flagLogLevel, "", "Log level override: debug, info, warn or error")

	_ = viper.BindPFlag(keyLogLevel, rootCmd.PersistentFlags().Lookup(flagLogLevel))
}

// setupVersion configures the version display
func setupVersion() {
	rootCmd.SetVersionTemplate(version.GetVersionInfo() + "\n")
}

func main() {
	setupVersion()
	if err := rootCmd.Execute(); err != nil {
		// Error already printed by cobra
		os.Exit(1)
	}
}
