package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/go-redis/redis/v8"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

// Source reads candles out of per-symbol streams written by an upstream
// collector. Stream layout: candles:<tf>:<symbol>, one JSON candle per
// entry under the "data" field. Satisfies feed.CandleSource.
type Source struct {
	client *goredis.Client
}

// NewSource creates a candle source over an existing publisher
// connection.
func NewSource(p *Publisher) *Source {
	return &Source{client: p.client}
}

// Candles returns the newest limit candles for symbol and tf, oldest
// first.
func (s *Source) Candles(ctx context.Context, symbol string, tf model.Timeframe, limit int) (*model.Series, error) {
	streamKey := "candles:" + string(tf) + ":" + symbol

	msgs, err := s.client.XRevRangeN(ctx, streamKey, "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis xrevrange %s: %w", streamKey, err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("redis stream %s: %w", streamKey, model.ErrEmptySeries)
	}

	// XREVRANGE yields newest first; fill backwards to restore order.
	candles := make([]model.Candle, len(msgs))
	for i, msg := range msgs {
		raw, ok := msg.Values["data"].(string)
		if !ok {
			return nil, fmt.Errorf("redis stream %s entry %s: missing data field", streamKey, msg.ID)
		}
		var c model.Candle
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("redis stream %s entry %s: %w", streamKey, msg.ID, err)
		}
		candles[len(msgs)-1-i] = c
	}

	series := &model.Series{Symbol: symbol, Timeframe: tf, Candles: candles}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}
