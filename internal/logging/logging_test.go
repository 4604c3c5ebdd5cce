package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerWritesStructuredLines(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "log"))
	require.NoError(t, err)
	defer f.Close()

	logger := newLogger(Config{Level: "debug", Format: "json"}, f)
	logger.Debug().Str("component", "test").Msg("hello")

	raw, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal(raw, &line))
	require.Equal(t, "hello", line["message"])
	require.Equal(t, "test", line["component"])
	require.Equal(t, "debug", line["level"])
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "log"))
	require.NoError(t, err)
	defer f.Close()

	logger := newLogger(Config{Level: "loud", Format: "json"}, f)
	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestAutoFormatOnFileIsJSON(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "log"))
	require.NoError(t, err)
	defer f.Close()

	_, isConsole := logWriter(Config{Format: "auto"}, f).(zerolog.ConsoleWriter)
	require.False(t, isConsole)
	_, isConsole = logWriter(Config{Format: "console"}, f).(zerolog.ConsoleWriter)
	require.True(t, isConsole)
}
