package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT"}, cfg.Scanner.Symbols)
	assert.Equal(t, 15*time.Second, cfg.Scanner.PollInterval)
	assert.Equal(t, 200, cfg.Scanner.CandleLimit)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
scanner:
  symbols: [ETHUSDT, SOLUSDT]
  timeframes: [5m, 15m, 1h]
  poll_interval: 30s
  candle_limit: 300
tracker:
  breakeven_progress: 0.6
filter:
  duplicate_window_min: 45
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"ETHUSDT", "SOLUSDT"}, cfg.Scanner.Symbols)
	assert.Equal(t, []model.Timeframe{model.TF5m, model.TF15m, model.TF1h}, cfg.Scanner.Timeframes)
	assert.Equal(t, 30*time.Second, cfg.Scanner.PollInterval)
	assert.Equal(t, 300, cfg.Scanner.CandleLimit)
	assert.InDelta(t, 0.6, cfg.Tracker.BreakevenProgress, 1e-9)
	assert.Equal(t, 45, cfg.Filter.DuplicateWindowMin)

	// Untouched sections keep their defaults.
	assert.Equal(t, 14, cfg.Indicators.RSIPeriod)
}

func TestEnvOverridesCredentials(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tg-token")
	t.Setenv("FEED_API_KEY", "key-123")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, "tg-token", cfg.Notify.TelegramBotToken)
	assert.Equal(t, "key-123", cfg.Feed.APIKey)
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name  string
		mutate func(*Config)
	}{
		{"no symbols", func(c *Config) { c.Scanner.Symbols = nil }},
		{"no timeframes", func(c *Config) { c.Scanner.Timeframes = nil }},
		{"unknown timeframe", func(c *Config) { c.Scanner.Timeframes = []model.Timeframe{"7m"} }},
		{"zero poll interval", func(c *Config) { c.Scanner.PollInterval = 0 }},
		{"tiny candle limit", func(c *Config) { c.Scanner.CandleLimit = 10 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "scanner: [not a map")
	_, err := Load(path)
	require.Error(t, err)
}
