package logger

import (
	"fmt"
	"log/slog"
	"sort"
)

// Log format constants
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Options configures the global logger.
type Options struct {
	// Level is a level name: debug, info, warn or error. Empty keeps the
	// current level.
	Level string
	// Format is FormatText or FormatJSON. Empty means text.
	Format string
	// CommonFields are added to every record (service name, environment).
	CommonFields map[string]string
}

// Configure applies opts to the global logger.
func Configure(opts Options) error {
	switch opts.Format {
	case "", FormatText, FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", opts.Format)
	}

	mu.Lock()
	defer mu.Unlock()

	if opts.Level != "" {
		currentLevel.Set(ParseLevel(opts.Level))
	}
	useJSON = opts.Format == FormatJSON

	keys := make([]string, 0, len(opts.CommonFields))
	for k := range opts.CommonFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	commonFields = make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		commonFields = append(commonFields, slog.String(k, opts.CommonFields[k]))
	}

	rebuild()
	slog.SetDefault(DefaultLogger)
	return nil
}
