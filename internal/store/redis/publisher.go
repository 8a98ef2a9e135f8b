// Package redis publishes admitted signals, suppressions and trade
// lifecycle events to Redis Streams for downstream consumers, and can
// serve candles back out of streams an upstream collector maintains.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/predeshen/telegramscalperbot-sub000/internal/filter"
	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
	"github.com/predeshen/telegramscalperbot-sub000/internal/tracker"
)

const (
	// Keep roughly a day of scalp signals per symbol.
	signalStreamMaxLen = 2000
	eventStreamMaxLen  = 5000
	defaultLatestTTL   = 30 * time.Minute
)

// Config configures the Redis connection.
type Config struct {
	Addr     string `yaml:"addr"` // e.g. "localhost:6379"
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Publisher writes signals and lifecycle events to Redis.
type Publisher struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// NewPublisher connects and pings the server.
func NewPublisher(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client}, nil
}

// PublishSignal writes an admitted signal: XADD to the per-symbol stream,
// SET latest with TTL, PUBLISH for live subscribers. One pipeline, one
// roundtrip.
func (p *Publisher) PublishSignal(ctx context.Context, sig *model.Signal) error {
	payload := string(sig.JSON())

	streamKey := "signals:" + sig.Symbol
	latestKey := "signals:latest:" + sig.Symbol
	pubsubCh := "pub:signals:" + sig.Symbol

	pipe := p.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: streamKey,
		MaxLen: signalStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": payload},
	})
	pipe.Set(ctx, latestKey, payload, defaultLatestTTL)
	pipe.Publish(ctx, pubsubCh, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish signal %s: %w", sig.Symbol, err)
	}
	return nil
}

// PublishEvent writes a trade lifecycle event to the per-symbol trade
// stream and the live channel.
func (p *Publisher) PublishEvent(ctx context.Context, ev tracker.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis marshal event: %w", err)
	}
	payload := string(data)

	streamKey := "trades:" + ev.Symbol
	pubsubCh := "pub:trades:" + ev.Symbol

	pipe := p.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: streamKey,
		MaxLen: eventStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"type": string(ev.Type), "data": payload},
	})
	pipe.Publish(ctx, pubsubCh, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish event %s/%s: %w", ev.Symbol, ev.Type, err)
	}
	return nil
}

// PublishSuppression appends a filter rejection to the shared audit
// stream.
func (p *Publisher) PublishSuppression(ctx context.Context, s filter.Suppression) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis marshal suppression: %w", err)
	}

	err = p.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: "suppressions",
		MaxLen: eventStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"reason": string(s.Reason), "data": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis publish suppression: %w", err)
	}
	return nil
}

// Run consumes lifecycle events from evCh and publishes them.
// Blocks until ctx is cancelled or evCh is closed.
func (p *Publisher) Run(ctx context.Context, evCh <-chan tracker.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-evCh:
			if !ok {
				return
			}
			if err := p.PublishEvent(ctx, ev); err != nil {
				log.Printf("[redis] %v", err)
			}
		}
	}
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
