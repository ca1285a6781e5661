package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/parvbhullar/media-gateway/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a bridge configuration manifest",
	Long: `Validates a BridgeConfig manifest against its JSON schema, then checks
value ranges after defaults are applied.

Examples:
  mediagateway validate bridge.yaml
  mediagateway validate bridge.yaml --schema-only`,
	RunE: runValidate,
}

var validateSchemaOnly bool

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateSchemaOnly, "schema-only", false, "Only validate schema, skip range checks")
}

func runValidate(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("file path required")
	}

	filePath := args[0]
	if err := validateFile(filePath, validateSchemaOnly); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ %s is valid\n", filepath.Base(filePath))
	return nil
}

// validateFile runs schema validation and, unless schemaOnly is set, the
// range checks on the manifest merged over the defaults.
func validateFile(filePath string, schemaOnly bool) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // path comes from the operator
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if err := config.ValidateManifest(data); err != nil {
		return err
	}
	if schemaOnly {
		return nil
	}

	cfg := config.Default()
	if err := cfg.Decode(data); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filePath, err)
	}
	return cfg.Validate()
}
