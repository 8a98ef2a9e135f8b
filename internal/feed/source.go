// Package feed defines the market data inputs the scanner runs on and a
// resampler that derives higher timeframes from a base candle stream.
package feed

import (
	"context"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

// CandleSource returns the most recent candles for a symbol and timeframe,
// oldest first. Implementations: the vendor REST client, the redis stream
// reader and the sqlite cache.
type CandleSource interface {
	Candles(ctx context.Context, symbol string, tf model.Timeframe, limit int) (*model.Series, error)
}

// PriceSource returns the latest traded price for a symbol. The websocket
// feed serves this from its tick cache; the REST client falls back to a
// quote call.
type PriceSource interface {
	LastPrice(ctx context.Context, symbol string) (model.Tick, error)
}
