// Package logging wires the process-wide slog logger: console plus a
// per-session log file, with an optional GELF fan-out for Graylog
// deployments.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Manager owns the configured logger.
type Manager struct {
	logger *slog.Logger
}

// NewManager creates an unconfigured manager. Logger falls back to
// slog.Default until Setup runs.
func NewManager() *Manager {
	return &Manager{}
}

// parseLevel converts a config string to a slog.Level, defaulting to
// info.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the logging fan-out. file and gelfWriter are both
// optional; pass nil to skip the sink.
func (m *Manager) Setup(file io.Writer, level string, gelfWriter MessageWriter) {
	lvl := parseLevel(level)

	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler
	handlers = append(handlers, slog.NewTextHandler(os.Stdout, handlerOpts))
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	}
	if gelfWriter != nil {
		handlers = append(handlers, NewGelfHandler(gelfWriter, lvl))
	}

	m.logger = slog.New(NewMultiHandler(handlers...))
	m.logger.Info("logging initialized", "level", level)
}

// Logger returns the configured logger.
func (m *Manager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// LogFilePath builds the per-session log file path.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405")),
	)
}
