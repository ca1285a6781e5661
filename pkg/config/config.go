// Package config provides configuration management for the media gateway.
//
// Configuration is a single K8s-style BridgeConfig manifest. Values are
// resolved in this order, later sources winning:
//   - built-in defaults (Default)
//   - the YAML manifest file (LoadFile), decoded with unknown fields rejected
//   - a .env file and the process environment (LoadEnvFile, ApplyEnv)
//   - command-line flags, bound by the CLI
//
// The package is organized into:
//   - types.go: BridgeConfig and its spec sections
//   - loader.go: file and environment loading
//   - validator.go: range checks returning a ValidationError
//   - schema_validator.go: JSON schema validation of raw manifests
//   - logging.go: logger options derived from the logging section
package config
