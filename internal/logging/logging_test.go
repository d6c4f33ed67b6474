package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for name, want := range cases {
		assert.Equal(t, want, ParseLevel(name), name)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("sync finished", "pushed", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sync finished", entry["msg"])
	assert.Equal(t, float64(3), entry["pushed"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug", "text")

	logger.Debug("pull applied", "applied", 2)

	assert.Contains(t, buf.String(), "msg=\"pull applied\"")
	assert.Contains(t, buf.String(), "applied=2")
}

func TestRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finsync.log")
	w := RotatingFile(path)
	defer w.Close()

	logger := New(w, "info", "text")
	logger.Info("background sync started")

	assert.FileExists(t, path)
}
