package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Direction is the trade side a signal calls for.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Opposes reports whether the two directions conflict.
func (d Direction) Opposes(other Direction) bool {
	return d != other
}

// Snapshot captures the indicator values that produced a signal.
// The downstream-consumed set is statically known, so the fields are typed
// rather than carried in a loose map.
type Snapshot struct {
	RSI         float64 `json:"rsi"`
	ATR         float64 `json:"atr"`
	VWAP        float64 `json:"vwap"`
	EMAFast     float64 `json:"ema_fast"`
	EMASlow     float64 `json:"ema_slow"`
	EMATrend    float64 `json:"ema_trend"`
	ADX         float64 `json:"adx"`
	StochK      float64 `json:"stoch_k"`
	StochD      float64 `json:"stoch_d"`
	MACD        float64 `json:"macd"`
	MACDSignal  float64 `json:"macd_signal"`
	VolumeRatio float64 `json:"volume_ratio"`
}

// ErrBadSignal is returned when a signal violates its direction invariant.
var ErrBadSignal = errors.New("invalid signal")

// Signal is one tradable setup candidate. Immutable once created: the
// detector builds it, every later component only reads it.
type Signal struct {
	ID         string    `json:"id"`
	TS         time.Time `json:"ts"`
	Symbol     string    `json:"symbol"`
	Timeframe  Timeframe `json:"timeframe"`
	Direction  Direction `json:"direction"`
	Entry      float64   `json:"entry"`
	Stop       float64   `json:"stop"`
	Target     float64   `json:"target"`
	RiskReward float64   `json:"risk_reward"`
	Confidence int       `json:"confidence"` // 3..5
	Strategy   string    `json:"strategy"`
	Snapshot   Snapshot  `json:"snapshot"`
}

// Validate enforces the direction invariant and the bounds on
// risk/reward and confidence.
func (s *Signal) Validate() error {
	switch s.Direction {
	case Long:
		if !(s.Stop < s.Entry && s.Entry < s.Target) {
			return fmt.Errorf("%w: LONG requires stop < entry < target (stop=%.5f entry=%.5f target=%.5f)",
				ErrBadSignal, s.Stop, s.Entry, s.Target)
		}
	case Short:
		if !(s.Target < s.Entry && s.Entry < s.Stop) {
			return fmt.Errorf("%w: SHORT requires target < entry < stop (target=%.5f entry=%.5f stop=%.5f)",
				ErrBadSignal, s.Target, s.Entry, s.Stop)
		}
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrBadSignal, s.Direction)
	}
	if s.RiskReward <= 0 {
		return fmt.Errorf("%w: risk_reward must be positive, got %.4f", ErrBadSignal, s.RiskReward)
	}
	if s.Confidence < 3 || s.Confidence > 5 {
		return fmt.Errorf("%w: confidence must be in [3,5], got %d", ErrBadSignal, s.Confidence)
	}
	return nil
}

// JSON returns the JSON-encoded signal (ignoring errors for hot-path usage).
func (s *Signal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// TickContext is the optional oscillator/trend/volume context delivered with a
// price update. Its absence disables the extension and reversal heuristics.
type TickContext struct {
	RSI           float64 `json:"rsi"`
	PrevRSI       float64 `json:"previous_rsi"`
	TrendStrength float64 `json:"trend_strength"`
	VolumeRatio   float64 `json:"volume_ratio"`
}

// Tick is one polled price observation for a symbol.
type Tick struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	TS     time.Time `json:"ts"`
}
