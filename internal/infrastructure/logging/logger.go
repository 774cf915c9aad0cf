package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nerrad567/klf200-bridge/internal/infrastructure/config"
)

// ServiceName is attached to every log entry.
const ServiceName = "klf200bridge"

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// Logger is a *slog.Logger that may own a rotated log file.
//
// Loggers derived with With share the parent's file; only the root logger
// returned by New closes it.
type Logger struct {
	*slog.Logger

	file io.Closer
}

// New builds the logger described by cfg.
//
// Parameters:
//   - cfg: the logging section; output "file" rotates through lumberjack
//   - version: build version recorded on every entry
//
// Returns:
//   - *Logger: ready to use; call Close to release a log file
func New(cfg config.LoggingConfig, version string) *Logger {
	w, file := destination(cfg)
	return &Logger{
		Logger: slog.New(newHandler(w, cfg, version)),
		file:   file,
	}
}

// destination resolves cfg.Output. Anything unrecognised writes to stdout.
func destination(cfg config.LoggingConfig) (io.Writer, io.Closer) {
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		return os.Stderr, nil
	case "file":
		lj := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSize,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAge,
			Compress:   cfg.File.Compress,
		}
		return lj, lj
	default:
		return os.Stdout, nil
	}
}

func newHandler(w io.Writer, cfg config.LoggingConfig, version string) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}
	return h.WithAttrs([]slog.Attr{
		slog.String("service", ServiceName),
		slog.String("version", version),
	})
}

// parseLevel maps a level name to slog, case-insensitively. Unknown names
// mean info.
func parseLevel(level string) slog.Level {
	if l, ok := levels[strings.ToLower(level)]; ok {
		return l
	}
	return slog.LevelInfo
}

// With returns a child logger carrying args on every entry, for example
// log.With("component", "watchdog").
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Close releases the log file, if the logger owns one.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Default is the logger used before the configuration is loaded: JSON on
// stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}
