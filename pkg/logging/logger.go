// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Component names used in the "component" field.
const (
	ComponentClient     = "tosdr-client"
	ComponentRateLimit  = "ratelimit"
	ComponentPagination = "pagination"
	ComponentExport     = "export"
	ComponentCLI        = "cli"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger. An unknown level falls back to
// info; use ParseLevel to reject it instead.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level, err := ParseLevel(string(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to zerolog.Level. The empty string is info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", level)
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss)
//   - Throttled responses and backoff waits
//   - Limiter queueing
//
// Info: Normal operation events
//   - One line per page attempt ("Fetching page N")
//   - Fetch progress and completion
//   - Export summaries
//
// Warn: Warning conditions that don't prevent operation
//   - Retry exhaustion
//   - Error responses before they become page failures
//   - Cache errors (fallback to direct request)
//   - Exports that dropped pages or services
//
// Error: Error conditions requiring attention
//   - Terminal page failures
//   - Failed service lookups
//   - Page 1 failures that abort an export
//
// Context Fields:
//   - component: emitting package (see Component constants)
//   - endpoint: API endpoint path or export name
//   - page: 1-based page index
//   - attempt: 1-based attempt number
//   - total_pages: page count announced by page 1
//   - status: HTTP status code
//   - error_class: client, server, rate_limit, network, decode
//   - service_id: id of a single-service lookup
//   - duration: elapsed time
