package contract

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/huangsam/recap/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.True(t, v)
	}
	for _, s := range []string{"no", "False", "0"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.False(t, v)
	}
	_, err := ParseBoolString("perhaps")
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	level, err := ParseLogLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = ParseLogLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLogLevel("chatty")
	assert.Error(t, err)
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, slog.LevelInfo, "json")
	log.Debug("hidden")
	log.With("component", "executor").Info("started", "units", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "started", line["msg"])
	assert.Equal(t, "executor", line["component"])
	assert.EqualValues(t, 3, line["units"])
}

func TestLoggerOrDefault(t *testing.T) {
	assert.Same(t, slog.Default(), LoggerOrDefault(nil))
	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	assert.Same(t, custom, LoggerOrDefault(custom))
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "abcdefg...", TruncateText("abcdefghijklmnop", 10))
	assert.Equal(t, "abcdef", TruncateText("abcdef", 3))
}

func TestLabels(t *testing.T) {
	assert.Contains(t, GetColorLabel(3), "Major")
	assert.Contains(t, GetColorLabel(1.5), "Notable")
	assert.Contains(t, GetColorLabel(0.1), "Minor")
	assert.Contains(t, GetStatusLabel(schema.ChunkFailed), "failed")
	assert.Contains(t, GetStatusLabel(schema.ChunkSucceeded), "succeeded")
}
