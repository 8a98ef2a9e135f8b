package strategy

import (
	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

// MomentumParams configures the momentum-crossover confluence rule.
type MomentumParams struct {
	VolumeSpike   float64 `yaml:"volume_spike"`    // volume / volume-MA threshold
	RSIBandLow    float64 `yaml:"rsi_band_low"`    // healthy-band lower bound (shorts)
	RSIBandHigh   float64 `yaml:"rsi_band_high"`   // healthy-band upper bound (longs)
	CrossWithin   int     `yaml:"cross_within"`    // candles in which the crossover must have confirmed
	StopATRMult   float64 `yaml:"stop_atr_mult"`
	TargetATRMult float64 `yaml:"target_atr_mult"`
}

// DefaultMomentumParams returns the default momentum-confluence parameters.
func DefaultMomentumParams() MomentumParams {
	return MomentumParams{
		VolumeSpike:   2.0,
		RSIBandLow:    30,
		RSIBandHigh:   70,
		CrossWithin:   2,
		StopATRMult:   1.5,
		TargetATRMult: 1.0,
	}
}

// Momentum is the momentum-crossover confluence rule. Four critical factors
// are AND-gated with no partial credit: price on the correct side of VWAP, a
// fast/slow EMA crossover confirmed within the last CrossWithin candles, a
// volume spike, and RSI inside the healthy band. Price vs the trend EMA is
// confidence-only.
type Momentum struct {
	p MomentumParams
}

// NewMomentum creates the momentum-confluence rule.
func NewMomentum(p MomentumParams) *Momentum {
	return &Momentum{p: p}
}

func (m *Momentum) Name() string { return "momentum_confluence" }

func (m *Momentum) Evaluate(ctx Context) *model.Signal {
	c, f := ctx.Last()
	if anyNaN(f.EMAFast, f.EMASlow, f.VWAP, f.RSI, f.ATR, f.VolumeRatio) {
		return nil
	}

	dir, ok := m.crossDirection(ctx)
	if !ok {
		return nil
	}

	// Critical gates. Any failure aborts the emission entirely.
	switch dir {
	case model.Long:
		if c.Close <= f.VWAP {
			return nil
		}
		if !(f.RSI > 50 && f.RSI < m.p.RSIBandHigh) {
			return nil
		}
	case model.Short:
		if c.Close >= f.VWAP {
			return nil
		}
		if !(f.RSI < 50 && f.RSI > m.p.RSIBandLow) {
			return nil
		}
	}
	if f.VolumeRatio < m.p.VolumeSpike {
		return nil
	}
	if f.ATR <= 0 {
		return nil
	}

	entry := c.Close
	var stop, target float64
	if dir == model.Long {
		stop = entry - m.p.StopATRMult*f.ATR
		target = entry + m.p.TargetATRMult*f.ATR
	} else {
		stop = entry + m.p.StopATRMult*f.ATR
		target = entry - m.p.TargetATRMult*f.ATR
	}

	confidence := 4
	if !anyNaN(f.EMATrend) {
		// Non-critical trend filter: adds confidence, never vetoes.
		if (dir == model.Long && c.Close > f.EMATrend) ||
			(dir == model.Short && c.Close < f.EMATrend) {
			confidence = 5
		}
	}

	return &model.Signal{
		TS:         c.TS,
		Symbol:     ctx.Symbol,
		Timeframe:  ctx.Timeframe,
		Direction:  dir,
		Entry:      entry,
		Stop:       stop,
		Target:     target,
		Confidence: confidence,
		Strategy:   m.Name(),
		Snapshot:   snapshotFrom(f),
	}
}

// crossDirection reports a fast/slow EMA crossover confirmed within the last
// CrossWithin candles, and its direction.
func (m *Momentum) crossDirection(ctx Context) (model.Direction, bool) {
	for back := 0; back < m.p.CrossWithin; back++ {
		_, cur, ok := ctx.At(back)
		if !ok {
			break
		}
		_, prev, ok := ctx.At(back + 1)
		if !ok {
			break
		}
		if anyNaN(cur.EMAFast, cur.EMASlow, prev.EMAFast, prev.EMASlow) {
			continue
		}
		if prev.EMAFast <= prev.EMASlow && cur.EMAFast > cur.EMASlow {
			return model.Long, true
		}
		if prev.EMAFast >= prev.EMASlow && cur.EMAFast < cur.EMASlow {
			return model.Short, true
		}
	}
	return "", false
}
