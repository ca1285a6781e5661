// Package version provides build version information for the gateway.
// Version variables can be overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/parvbhullar/media-gateway/runtime/version.version=1.0.0"
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const (
	// devVersion is the default version when not set via ldflags
	devVersion = "dev"
	// shortCommitLen is the length of the short commit hash
	shortCommitLen = 7
	// vcsRevisionKey is the build info key for git commit
	vcsRevisionKey = "vcs.revision"
	// vcsModifiedKey is the build info key for dirty state
	vcsModifiedKey = "vcs.modified"
)

// Build-time variables - can be overridden with -ldflags
var (
	version   = devVersion
	gitCommit = ""
	buildDate = ""
)

// Info is the structured form of the build version.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
}

// GetVersion returns the current version string.
// Falls back to build info from go modules if version is "dev".
func GetVersion() string {
	if version != devVersion {
		return version
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}

	return devVersion
}

// buildSetting returns a VCS setting from the embedded build info.
func buildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func commit() string {
	if gitCommit != "" {
		return gitCommit
	}
	rev := buildSetting(vcsRevisionKey)
	return rev[:min(shortCommitLen, len(rev))]
}

// Get returns the structured build information.
func Get() Info {
	return Info{
		Version:   GetVersion(),
		Commit:    commit(),
		Dirty:     gitCommit == "" && buildSetting(vcsModifiedKey) == "true",
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
	}
}

// GetVersionInfo returns a human-readable multi-line version description.
func GetVersionInfo() string {
	info := Get()

	var b strings.Builder
	fmt.Fprintf(&b, "media-gateway version %s", info.Version)
	if info.Commit != "" {
		fmt.Fprintf(&b, "\ncommit: %s", info.Commit)
		if info.Dirty {
			b.WriteString(" (dirty)")
		}
	}
	if info.BuildDate != "" {
		fmt.Fprintf(&b, "\nbuilt: %s", info.BuildDate)
	}
	fmt.Fprintf(&b, "\ngo: %s", info.GoVersion)
	return b.String()
}

// GetBuildInfo returns version details as structured slog attributes.
// This is useful for including version info in log messages.
func GetBuildInfo() []any {
	info := Get()
	attrs := []any{"version", info.Version}
	if info.Commit != "" {
		attrs = append(attrs, "commit", info.Commit)
	}
	if info.Dirty {
		attrs = append(attrs, "dirty", true)
	}
	if info.BuildDate != "" {
		attrs = append(attrs, "built", info.BuildDate)
	}
	return attrs
}
