// Package logging sets up the process-wide slog logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/config"
)

// Init installs a default logger writing to stdout and to cfg.Path. The
// previous log file is kept as <path>.old. The returned func closes the file.
func Init(cfg config.LogConfig) (func(), error) {
	level := ParseLevel(cfg.Level)

	if cfg.Path == "" {
		slog.SetDefault(slog.New(consoleHandler(os.Stdout, level)))
		return func() {}, nil
	}

	rotate(cfg.Path)
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	slog.SetDefault(slog.New(NewHandler(file, os.Stdout, level)))
	return func() { file.Close() }, nil
}

// NewHandler writes every record at level or above to file, and records at
// INFO or above to console.
func NewHandler(file, console io.Writer, level slog.Level) slog.Handler {
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	})
	return &multiHandler{handlers: []slog.Handler{fileHandler, consoleHandler(console, level)}}
}

func consoleHandler(w io.Writer, level slog.Level) slog.Handler {
	if level < slog.LevelInfo {
		level = slog.LevelInfo
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
}

// ParseLevel accepts DEBUG, INFO, WARN and ERROR in any case. Anything else
// is INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

//nolint:gocritic // slog.Handler takes the record by value
func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: out}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: out}
}

func rotate(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	old := path + ".old"
	_ = os.Remove(old)
	_ = os.Rename(path, old)
}
