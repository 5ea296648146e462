package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls log output. The zero value logs JSON to stdout at
// info level.
type Config struct {
	// Level is the minimum level emitted: debug, info, warn, error.
	Level string `yaml:"level"`

	// Format selects the handler: json or text.
	Format string `yaml:"format"`

	// Output selects the destination: stdout or stderr.
	Output string `yaml:"output"`
}

// Logger wraps slog.Logger with runtime-wide default attributes
// (service name and version). Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the logging section of the config file.
// JSON output suits log shippers; text is easier on a terminal during
// development.
//
// Parameters:
//   - cfg: Logging configuration
//   - version: Build version stamped on every record
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg Config, version string) *Logger {
	handler := newHandler(cfg)
	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "hearth-core"),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(handler)}
}

func newHandler(cfg Config) slog.Handler {
	var output io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(output, opts)
	}
	return slog.NewJSONHandler(output, opts)
}

// parseLevel maps a config string to a slog.Level. Unrecognised
// strings fall back to info rather than failing startup.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger carrying additional default attributes.
//
// Example:
//
//	mqttLogger := logger.With("component", "mqtt")
//	mqttLogger.Info("connected") // includes component=mqtt
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a JSON stdout logger at info level for use before
// the config file has been read.
func Default() *Logger {
	return New(Config{Level: "info", Format: "json", Output: "stdout"}, "dev")
}
