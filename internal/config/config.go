package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"currencycheck/internal/logging"
	"currencycheck/internal/version"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	CoinGecko CoinGeckoConfig `mapstructure:"coingecko"`
	FXRates   FXRatesConfig   `mapstructure:"fxrates"`
	History   HistoryConfig   `mapstructure:"history"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Server    ServerConfig    `mapstructure:"server"`
	Prefs     PrefsConfig     `mapstructure:"prefs"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN disables
// the quote history sink.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	Retention       time.Duration `mapstructure:"retention"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool { return d.DSN != "" }

// RefreshConfig governs the refresh cycle and the two cache tiers.
type RefreshConfig struct {
	Interval          time.Duration `mapstructure:"interval"`
	AlignToStart      bool          `mapstructure:"align_to_start"`
	StartupDelay      time.Duration `mapstructure:"startup_delay"`
	CryptoValidity    time.Duration `mapstructure:"crypto_validity"`
	FiatValidity      time.Duration `mapstructure:"fiat_validity"`
	PriorityCutoff    int           `mapstructure:"priority_cutoff"`
	DeferredDelay     time.Duration `mapstructure:"deferred_delay"`
	DeferredWarnAfter int           `mapstructure:"deferred_warn_after"`
}

// CoinGeckoConfig covers the crypto price and history API.
type CoinGeckoConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	HistoryAttempts   uint          `mapstructure:"history_attempts"`
	HistoryBackoff    time.Duration `mapstructure:"history_backoff"`
}

// FXRatesConfig covers the fiat rates API.
type FXRatesConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// HistoryConfig sizes the chart history cache.
type HistoryConfig struct {
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	CacheMaxItems int64         `mapstructure:"cache_max_items"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	ThresholdPct float64        `mapstructure:"threshold_pct"`
	Cooldown     time.Duration  `mapstructure:"cooldown"`
	Channels     []string       `mapstructure:"channels"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ServerConfig controls the local HTTP API.
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PrefsConfig locates the preferences file. Empty means the default path.
type PrefsConfig struct {
	Path string `mapstructure:"path"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("CURRENCYCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDotEnv exports .env entries into the process environment. A missing
// file is fine; variables already set win.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "currencycheck")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "auto")

	v.SetDefault("refresh.interval", "30s")
	v.SetDefault("refresh.align_to_start", false)
	v.SetDefault("refresh.startup_delay", "0s")
	v.SetDefault("refresh.crypto_validity", "30s")
	v.SetDefault("refresh.fiat_validity", "5m")
	v.SetDefault("refresh.priority_cutoff", 2)
	v.SetDefault("refresh.deferred_delay", "500ms")
	v.SetDefault("refresh.deferred_warn_after", 5)

	v.SetDefault("coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("coingecko.api_key", "")
	v.SetDefault("coingecko.request_timeout", "10s")
	v.SetDefault("coingecko.user_agent", version.UserAgent())
	v.SetDefault("coingecko.requests_per_minute", 30)
	v.SetDefault("coingecko.history_attempts", 3)
	v.SetDefault("coingecko.history_backoff", "500ms")

	v.SetDefault("fxrates.base_url", "https://api.fxratesapi.com")
	v.SetDefault("fxrates.request_timeout", "10s")
	v.SetDefault("fxrates.user_agent", version.UserAgent())

	v.SetDefault("history.cache_ttl", "5m")
	v.SetDefault("history.cache_max_items", 256)

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.threshold_pct", 10.0)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.channels", []string{"console"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", "127.0.0.1:8787")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("prefs.path", "")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.connect_timeout", "5s")
	v.SetDefault("database.retention", "720h")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be greater than zero")
	}
	if c.Refresh.CryptoValidity <= 0 || c.Refresh.FiatValidity <= 0 {
		return fmt.Errorf("refresh.crypto_validity and refresh.fiat_validity must be greater than zero")
	}
	if c.Refresh.PriorityCutoff < 1 {
		return fmt.Errorf("refresh.priority_cutoff must be at least 1")
	}
	if c.Refresh.DeferredDelay < 0 {
		return fmt.Errorf("refresh.deferred_delay cannot be negative")
	}
	if c.CoinGecko.RequestsPerMinute < 0 {
		return fmt.Errorf("coingecko.requests_per_minute cannot be negative")
	}
	if c.History.CacheTTL <= 0 || c.History.CacheMaxItems <= 0 {
		return fmt.Errorf("history.cache_ttl and history.cache_max_items must be greater than zero")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console", "auto":
	default:
		return fmt.Errorf("logging.format must be json, console or auto (got %q)", c.Logging.Format)
	}
	if c.Alerting.ThresholdPct < 0 {
		return fmt.Errorf("alerting.threshold_pct cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required when the server is enabled")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

// CacheValidity maps each class name to its validity window.
func (c *Config) CacheValidity() (crypto, fiat time.Duration) {
	return c.Refresh.CryptoValidity, c.Refresh.FiatValidity
}
