// Package strategy provides the pattern-detection rules evaluated by the
// confluence detector.
//
// A Rule receives an indicator-augmented candle sequence for one
// (symbol, timeframe) and either returns a candidate signal or nil. Nil is
// ordinary control flow: "no setup this cycle" is not an error. Rules are
// registered in priority order; the detector takes the first hit.
package strategy

import (
	"math"

	"github.com/predeshen/telegramscalperbot-sub000/internal/indicator"
	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

// Context is the evaluation input for one rule pass: the candle sequence and
// its frames, aligned 1:1. The detector guarantees len(Candles) == len(Frames)
// and non-empty before rules run.
type Context struct {
	Symbol    string
	Timeframe model.Timeframe
	Candles   []model.Candle
	Frames    []indicator.Frame
}

// Last returns the latest candle and its frame.
func (c *Context) Last() (model.Candle, indicator.Frame) {
	n := len(c.Candles) - 1
	return c.Candles[n], c.Frames[n]
}

// At returns the candle and frame at offset back from the latest
// (0 = latest). ok is false when the offset runs past the sequence head.
func (c *Context) At(back int) (model.Candle, indicator.Frame, bool) {
	i := len(c.Candles) - 1 - back
	if i < 0 {
		return model.Candle{}, indicator.Frame{}, false
	}
	return c.Candles[i], c.Frames[i], true
}

// Rule is the single capability every pattern detector provides.
type Rule interface {
	// Name returns a stable strategy tag, e.g. "momentum_confluence".
	Name() string

	// Evaluate inspects the latest candle in ctx and returns a candidate
	// signal, or nil when no setup is present.
	Evaluate(ctx Context) *model.Signal
}

// Config bundles the parameters of every registered rule.
type Config struct {
	Momentum      MomentumParams      `yaml:"momentum"`
	Pullback      PullbackParams      `yaml:"pullback"`
	MeanReversion MeanReversionParams `yaml:"mean_reversion"`
	SRBounce      SRBounceParams      `yaml:"sr_bounce"`
	Breakout      BreakoutParams      `yaml:"breakout"`
}

// DefaultConfig returns the default parameters for all rules.
func DefaultConfig() Config {
	return Config{
		Momentum:      DefaultMomentumParams(),
		Pullback:      DefaultPullbackParams(),
		MeanReversion: DefaultMeanReversionParams(),
		SRBounce:      DefaultSRBounceParams(),
		Breakout:      DefaultBreakoutParams(),
	}
}

// DefaultRules builds the ordered rule list the detector consumes. Order is
// priority: the first matching rule wins the cycle.
func DefaultRules(cfg Config) []Rule {
	return []Rule{
		NewMomentum(cfg.Momentum),
		NewPullback(cfg.Pullback),
		NewBreakout(cfg.Breakout),
		NewSRBounce(cfg.SRBounce),
		NewMeanReversion(cfg.MeanReversion),
	}
}

// snapshotFrom copies the downstream-consumed indicator values out of a frame.
func snapshotFrom(f indicator.Frame) model.Snapshot {
	return model.Snapshot{
		RSI:         f.RSI,
		ATR:         f.ATR,
		VWAP:        f.VWAP,
		EMAFast:     f.EMAFast,
		EMASlow:     f.EMASlow,
		EMATrend:    f.EMATrend,
		ADX:         f.ADX,
		StochK:      f.StochK,
		StochD:      f.StochD,
		MACD:        f.MACD,
		MACDSignal:  f.MACDSignal,
		VolumeRatio: f.VolumeRatio,
	}
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
