// Package config loads scanner configuration from a YAML file with
// environment variable overrides for credentials. A missing file yields
// the built-in defaults, so the scanner runs out of the box.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/predeshen/telegramscalperbot-sub000/internal/detector"
	"github.com/predeshen/telegramscalperbot-sub000/internal/filter"
	"github.com/predeshen/telegramscalperbot-sub000/internal/indicator"
	"github.com/predeshen/telegramscalperbot-sub000/internal/markethours"
	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
	"github.com/predeshen/telegramscalperbot-sub000/internal/store/redis"
	"github.com/predeshen/telegramscalperbot-sub000/internal/store/sqlite"
	"github.com/predeshen/telegramscalperbot-sub000/internal/strategy"
	"github.com/predeshen/telegramscalperbot-sub000/internal/tracker"
	"github.com/predeshen/telegramscalperbot-sub000/pkg/marketfeed"
)

// ScannerConfig holds the scan loop settings.
type ScannerConfig struct {
	Symbols      []string          `yaml:"symbols"`
	Timeframes   []model.Timeframe `yaml:"timeframes"`
	PollInterval time.Duration     `yaml:"poll_interval"`
	CandleLimit  int               `yaml:"candle_limit"`
	TickRingSize int               `yaml:"tick_ring_size"`
}

// NotifyConfig selects notification backends.
type NotifyConfig struct {
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
	WebhookURL       string `yaml:"webhook_url"`
	WebhookToken     string `yaml:"webhook_token"`
	Buffer           int    `yaml:"buffer"`
}

// Config is the full scanner configuration.
type Config struct {
	Scanner     ScannerConfig      `yaml:"scanner"`
	Indicators  indicator.Config   `yaml:"indicators"`
	Strategies  strategy.Config    `yaml:"strategies"`
	Detector    detector.Config    `yaml:"detector"`
	Filter      filter.Config      `yaml:"filter"`
	Tracker     tracker.Config     `yaml:"tracker"`
	Market      markethours.Config `yaml:"market"`
	Feed        marketfeed.Config  `yaml:"feed"`
	Redis       redis.Config       `yaml:"redis"`
	SQLite      sqlite.Config      `yaml:"sqlite"`
	Notify      NotifyConfig       `yaml:"notify"`
	MetricsAddr string             `yaml:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Scanner: ScannerConfig{
			Symbols:      []string{"BTCUSDT"},
			Timeframes:   []model.Timeframe{model.TF1m, model.TF5m, model.TF15m},
			PollInterval: 15 * time.Second,
			CandleLimit:  200,
			TickRingSize: 1024,
		},
		Indicators:  indicator.DefaultConfig(),
		Strategies:  strategy.DefaultConfig(),
		Detector:    detector.DefaultConfig(),
		Filter:      filter.DefaultConfig(),
		Tracker:     tracker.DefaultConfig(),
		Redis:       redis.Config{Addr: "localhost:6379"},
		SQLite:      sqlite.Config{Path: "data/candles.db"},
		Notify:      NotifyConfig{Buffer: 64},
		MetricsAddr: ":9090",
	}
}

// Load reads the YAML file at path (skipped when empty or missing) over
// the defaults, then applies environment overrides. A .env file in the
// working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("[config] no .env file, using process environment")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			log.Printf("[config] %s not found, using defaults", path)
		case err != nil:
			return nil, fmt.Errorf("config read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config parse %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides credentials and endpoints from the environment so
// secrets stay out of the YAML file.
func applyEnv(cfg *Config) {
	set := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set("FEED_BASE_URL", &cfg.Feed.BaseURL)
	set("FEED_STREAM_URL", &cfg.Feed.StreamURL)
	set("FEED_API_KEY", &cfg.Feed.APIKey)
	set("FEED_CLIENT_CODE", &cfg.Feed.ClientCode)
	set("FEED_PASSWORD", &cfg.Feed.Password)
	set("FEED_TOTP_SECRET", &cfg.Feed.TOTPSecret)
	set("REDIS_ADDR", &cfg.Redis.Addr)
	set("REDIS_PASSWORD", &cfg.Redis.Password)
	set("SQLITE_PATH", &cfg.SQLite.Path)
	set("TELEGRAM_BOT_TOKEN", &cfg.Notify.TelegramBotToken)
	set("TELEGRAM_CHAT_ID", &cfg.Notify.TelegramChatID)
	set("WEBHOOK_URL", &cfg.Notify.WebhookURL)
	set("WEBHOOK_TOKEN", &cfg.Notify.WebhookToken)
	set("METRICS_ADDR", &cfg.MetricsAddr)
}

// Validate rejects configurations the scanner cannot run with.
func (c *Config) Validate() error {
	if len(c.Scanner.Symbols) == 0 {
		return fmt.Errorf("config: no symbols configured")
	}
	if len(c.Scanner.Timeframes) == 0 {
		return fmt.Errorf("config: no timeframes configured")
	}
	for _, tf := range c.Scanner.Timeframes {
		if tf.Seconds() <= 0 {
			return fmt.Errorf("config: unknown timeframe %q", tf)
		}
	}
	if c.Scanner.PollInterval <= 0 {
		return fmt.Errorf("config: poll_interval must be positive")
	}
	if c.Scanner.CandleLimit < 50 {
		return fmt.Errorf("config: candle_limit %d too small for indicator warmup", c.Scanner.CandleLimit)
	}
	return nil
}
