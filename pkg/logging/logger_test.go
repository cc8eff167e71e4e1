package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/config"
)

func TestInit(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "logs", "arcgis-buffer.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("previous run\n"), 0o644))

	cleanup, err := Init(config.LogConfig{Level: "debug", Path: path})
	require.NoError(t, err)
	slog.Debug("selection cycle", "id", "abc")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "selection cycle")
	assert.Contains(t, string(data), "source=", "debug adds source")
	assert.NotContains(t, string(data), "previous run")

	old, err := os.ReadFile(path + ".old")
	require.NoError(t, err)
	assert.Equal(t, "previous run\n", string(old))
}

func TestInit_NoPath(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cleanup, err := Init(config.LogConfig{Level: "WARN"})
	require.NoError(t, err)
	cleanup()
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
}

func TestNewHandler_Levels(t *testing.T) {
	var file, console bytes.Buffer
	log := slog.New(NewHandler(&file, &console, slog.LevelDebug)).With("view", "primary")

	log.Debug("hit test")
	log.Info("buffer drawn")

	assert.Contains(t, file.String(), "hit test")
	assert.Contains(t, file.String(), "buffer drawn")
	assert.NotContains(t, console.String(), "hit test", "console stays at INFO")
	assert.Contains(t, console.String(), "buffer drawn")
	assert.Equal(t, 2, strings.Count(file.String(), "view=primary"))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		" Warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
