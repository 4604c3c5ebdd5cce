package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, cfg.Refresh.CryptoValidity)
	require.Equal(t, 5*time.Minute, cfg.Refresh.FiatValidity)
	require.Equal(t, 2, cfg.Refresh.PriorityCutoff)
	require.Equal(t, 500*time.Millisecond, cfg.Refresh.DeferredDelay)
	require.Equal(t, 5, cfg.Refresh.DeferredWarnAfter)
	require.Equal(t, "https://api.coingecko.com/api/v3", cfg.CoinGecko.BaseURL)
	require.Equal(t, "https://api.fxratesapi.com", cfg.FXRates.BaseURL)
	require.InDelta(t, 10.0, cfg.Alerting.ThresholdPct, 1e-9)
	require.Equal(t, []string{"console"}, cfg.Alerting.Channels)
	require.False(t, cfg.Database.Enabled())
	require.False(t, cfg.Server.Enabled)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
refresh:
  crypto_validity: 45s
  priority_cutoff: 3
alerting:
  channels: console,telegram
  telegram:
    enabled: true
    bot_token: token
    chat_id: "42"
`), 0o600))
	t.Setenv("CURRENCYCHECK_SERVER_ENABLED", "true")
	t.Setenv("CURRENCYCHECK_REFRESH_FIAT_VALIDITY", "10m")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 45*time.Second, cfg.Refresh.CryptoValidity)
	require.Equal(t, 10*time.Minute, cfg.Refresh.FiatValidity)
	require.Equal(t, 3, cfg.Refresh.PriorityCutoff)
	require.Equal(t, []string{"console", "telegram"}, cfg.Alerting.Channels)
	require.True(t, cfg.Server.Enabled)
	require.Equal(t, "42", cfg.Alerting.Telegram.ChatID)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CURRENCYCHECK_COINGECKO_API_KEY=demo-key\n"), 0o600))
	t.Setenv("CURRENCYCHECK_COINGECKO_API_KEY", "")
	os.Unsetenv("CURRENCYCHECK_COINGECKO_API_KEY")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "demo-key", cfg.CoinGecko.APIKey)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	base, err := Load("")
	require.NoError(t, err)

	cases := map[string]func(c *Config){
		"zero interval":        func(c *Config) { c.Refresh.Interval = 0 },
		"zero validity":        func(c *Config) { c.Refresh.CryptoValidity = 0 },
		"cutoff below one":     func(c *Config) { c.Refresh.PriorityCutoff = 0 },
		"negative delay":       func(c *Config) { c.Refresh.DeferredDelay = -time.Second },
		"negative threshold":   func(c *Config) { c.Alerting.ThresholdPct = -1 },
		"telegram no token":    func(c *Config) { c.Alerting.Telegram.Enabled = true; c.Alerting.Telegram.ChatID = "1" },
		"server without addr":  func(c *Config) { c.Server.Enabled = true; c.Server.Addr = "" },
		"unknown log format":   func(c *Config) { c.Logging.Format = "xml" },
		"no export points":     func(c *Config) { c.Export.MaxDataPoints = 0 },
		"history cache zeroed": func(c *Config) { c.History.CacheTTL = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := *base
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 10}}
	require.Equal(t, 10, cfg.ResolveMaxPoints(0))
	require.Equal(t, 3, cfg.ResolveMaxPoints(3))
}
