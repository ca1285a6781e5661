// Package logger provides structured logging for the media gateway.
//
// It wraps log/slog with:
//   - a process-wide DefaultLogger configured from LOG_LEVEL
//   - context-aware records carrying session and stage fields
//   - provider call helpers that redact API keys
//
// All exported functions use the global DefaultLogger.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
)

// DefaultLogger is the global structured logger instance.
var DefaultLogger *slog.Logger

var (
	mu           sync.Mutex
	logOutput    io.Writer = os.Stderr
	useJSON      bool
	commonFields []slog.Attr
)

var currentLevel = new(slog.LevelVar)

func init() {
	currentLevel.Set(ParseLevel(os.Getenv("LOG_LEVEL")))
	rebuild()
}

// rebuild recreates DefaultLogger from the current settings. Callers hold mu
// or run before any concurrent use.
func rebuild() {
	opts := &slog.HandlerOptions{Level: currentLevel}
	var base slog.Handler
	if useJSON {
		base = slog.NewJSONHandler(logOutput, opts)
	} else {
		base = slog.NewTextHandler(logOutput, opts)
	}
	DefaultLogger = slog.New(NewContextHandler(base, commonFields...))
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the logging level for all subsequent log operations.
func SetLevel(level slog.Level) {
	currentLevel.Set(level)
}

// Level returns the current logging level.
func Level() slog.Level {
	return currentLevel.Level()
}

// SetVerbose enables debug-level logging when verbose is true, otherwise sets info-level.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// SetOutput redirects log output. Mainly useful in tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logOutput = w
	rebuild()
}

// Info logs an informational message with structured key-value attributes.
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext logs an informational message with context fields.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs a debug-level message with structured attributes.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// DebugContext logs a debug message with context fields.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs a warning message with structured attributes.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// WarnContext logs a warning message with context fields.
func WarnContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.WarnContext(ctx, msg, args...)
}

// Error logs an error message with structured attributes.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// ErrorContext logs an error message with context fields.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

// ProviderCall logs the start of a provider stream (stt, llm or tts).
func ProviderCall(ctx context.Context, stage, provider string, attrs ...any) {
	all := make([]any, 0, 4+len(attrs))
	all = append(all, "stage", stage, "provider", provider)
	all = append(all, attrs...)
	DebugContext(ctx, "provider call", all...)
}

// ProviderError logs a failed provider stream. The error text is redacted.
func ProviderError(ctx context.Context, stage, provider string, err error, attrs ...any) {
	all := make([]any, 0, 6+len(attrs))
	all = append(all, "stage", stage, "provider", provider)
	if err != nil {
		all = append(all, "error", RedactSensitiveData(err.Error()))
	}
	all = append(all, attrs...)
	ErrorContext(ctx, "provider error", all...)
}

// apiKeyPatterns match OpenAI keys, bearer tokens and Deepgram tokens.
var apiKeyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),
	regexp.MustCompile(`Token\s+[a-zA-Z0-9._-]+`),
}

// RedactSensitiveData removes API keys and tokens from a string.
// OpenAI keys keep their first four characters; bearer and token
// credentials are replaced entirely.
func RedactSensitiveData(input string) string {
	result := input
	for _, pattern := range apiKeyPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			switch {
			case strings.HasPrefix(match, "Bearer"):
				return "Bearer [REDACTED]"
			case strings.HasPrefix(match, "Token"):
				return "Token [REDACTED]"
			case len(match) > 8:
				return match[:4] + "...[REDACTED]"
			default:
				return "[REDACTED]"
			}
		})
	}
	return result
}

// APIRequest logs an outgoing provider request at debug level with
// credentials redacted. It is a no-op when debug logging is disabled.
func APIRequest(provider, method, url string, headers map[string]string) {
	if !DefaultLogger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	attrs := make([]any, 0, 8)
	attrs = append(attrs,
		"provider", provider,
		"method", method,
		"url", RedactSensitiveData(url),
	)
	if len(headers) > 0 {
		redacted := make(map[string]string, len(headers))
		for k, v := range headers {
			redacted[k] = RedactSensitiveData(v)
		}
		attrs = append(attrs, "headers", redacted)
	}
	Debug("API request", attrs...)
}

// APIResponse logs a provider response status at debug level, or at error
// level when err is set.
func APIResponse(provider string, statusCode int, err error) {
	if err != nil {
		Error("API response error", "provider", provider, "status_code", statusCode,
			"error", RedactSensitiveData(err.Error()))
		return
	}
	Debug("API response", "provider", provider, "status_code", statusCode)
}
