package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Candle represents one OHLCV bar for a fixed time bucket.
type Candle struct {
	TS     time.Time `json:"ts"` // bucket start time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// TypicalPrice returns (high + low + close) / 3, the VWAP input price.
func (c Candle) TypicalPrice() float64 {
	return (c.High + c.Low + c.Close) / 3.0
}

var (
	// ErrEmptySeries is returned when a candle sequence has no candles.
	ErrEmptySeries = errors.New("empty candle series")

	// ErrBadCandle is returned when a candle violates OHLC ordering,
	// carries NaN values, or breaks timestamp monotonicity.
	ErrBadCandle = errors.New("malformed candle")
)

// Series is an ordered candle sequence for one (symbol, timeframe).
type Series struct {
	Symbol    string
	Timeframe Timeframe
	Candles   []Candle
}

// Validate checks the series invariants: non-empty, no NaN among raw OHLCV,
// high >= max(open, close, low), low <= min(open, close), volume >= 0,
// and non-decreasing timestamps.
func (s *Series) Validate() error {
	if len(s.Candles) == 0 {
		return fmt.Errorf("series %s/%s: %w", s.Symbol, s.Timeframe, ErrEmptySeries)
	}
	var prev time.Time
	for i, c := range s.Candles {
		if hasNaN(c) {
			return fmt.Errorf("series %s/%s candle %d: NaN in OHLCV: %w", s.Symbol, s.Timeframe, i, ErrBadCandle)
		}
		if c.High < c.Open || c.High < c.Close || c.High < c.Low {
			return fmt.Errorf("series %s/%s candle %d: high below open/close/low: %w", s.Symbol, s.Timeframe, i, ErrBadCandle)
		}
		if c.Low > c.Open || c.Low > c.Close {
			return fmt.Errorf("series %s/%s candle %d: low above open/close: %w", s.Symbol, s.Timeframe, i, ErrBadCandle)
		}
		if c.Volume < 0 {
			return fmt.Errorf("series %s/%s candle %d: negative volume: %w", s.Symbol, s.Timeframe, i, ErrBadCandle)
		}
		if i > 0 && c.TS.Before(prev) {
			return fmt.Errorf("series %s/%s candle %d: timestamp went backwards: %w", s.Symbol, s.Timeframe, i, ErrBadCandle)
		}
		prev = c.TS
	}
	return nil
}

// Last returns the most recent candle. Callers must have validated non-empty.
func (s *Series) Last() Candle {
	return s.Candles[len(s.Candles)-1]
}

func hasNaN(c Candle) bool {
	return math.IsNaN(c.Open) || math.IsNaN(c.High) || math.IsNaN(c.Low) ||
		math.IsNaN(c.Close) || math.IsNaN(c.Volume)
}
