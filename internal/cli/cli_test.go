package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"currencycheck/internal/config"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"run"}, {"show"}, {"search"}, {"chart"}, {"convert"},
		{"favorites", "toggle"}, {"portfolio", "add"}, {"portfolio", "remove"},
		{"prefs", "theme"}, {"prefs", "sound"},
		{"export"}, {"samples"}, {"migrate"}, {"prune"}, {"simulate-alert"}, {"version"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		require.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestVersionCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		appHandle = nil
	})

	require.NoError(t, rootCmd.Execute())
	require.Contains(t, out.String(), "version: ")
	require.Contains(t, out.String(), "go: go")
}

func TestParseTimeFlag(t *testing.T) {
	got, err := parseTimeFlag("from", "")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = parseTimeFlag("from", "2024-03-01")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *got)

	got, err = parseTimeFlag("to", "2024-03-01T10:30:00Z")
	require.NoError(t, err)
	require.Equal(t, 10, got.Hour())

	_, err = parseTimeFlag("to", "yesterday")
	require.ErrorContains(t, err, "--to")
}

func TestApplyOverrides(t *testing.T) {
	t.Cleanup(func() { logLevel, prefsPath, dsn = "", "", "" })
	logLevel, prefsPath, dsn = "debug", "/tmp/prefs.json", "postgres://localhost/quotes"

	cfg := &config.Config{}
	cfg.Logging.Level = "info"
	applyOverrides(cfg)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "/tmp/prefs.json", cfg.Prefs.Path)
	require.True(t, cfg.Database.Enabled())
}
