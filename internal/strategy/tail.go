package strategy

import (
	"github.com/predeshen/telegramscalperbot-sub000/internal/indicator"
	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

// The rules below are the smaller pattern detectors. Each is an independent
// provider of the same Rule capability, registered behind the two core
// families so they only fire on cycles the core rules pass on.

// MeanReversionParams configures the VWAP mean-reversion rule.
type MeanReversionParams struct {
	StretchATRMult float64 `yaml:"stretch_atr_mult"` // distance from VWAP that counts as stretched
	RSIOversold    float64 `yaml:"rsi_oversold"`
	RSIOverbought  float64 `yaml:"rsi_overbought"`
	StopATRMult    float64 `yaml:"stop_atr_mult"`
}

// DefaultMeanReversionParams returns the default mean-reversion parameters.
func DefaultMeanReversionParams() MeanReversionParams {
	return MeanReversionParams{
		StretchATRMult: 2.0,
		RSIOversold:    30,
		RSIOverbought:  70,
		StopATRMult:    1.0,
	}
}

// MeanReversion fades a stretched move back toward VWAP when the oscillator
// is at an extreme. The target is VWAP itself.
type MeanReversion struct {
	p MeanReversionParams
}

// NewMeanReversion creates the mean-reversion rule.
func NewMeanReversion(p MeanReversionParams) *MeanReversion {
	return &MeanReversion{p: p}
}

func (r *MeanReversion) Name() string { return "mean_reversion" }

func (r *MeanReversion) Evaluate(ctx Context) *model.Signal {
	c, f := ctx.Last()
	if anyNaN(f.VWAP, f.ATR, f.RSI) || f.ATR <= 0 {
		return nil
	}

	stretch := r.p.StretchATRMult * f.ATR
	entry := c.Close

	if entry < f.VWAP-stretch && f.RSI <= r.p.RSIOversold {
		stop := entry - r.p.StopATRMult*f.ATR
		target := f.VWAP
		if !(stop < entry && entry < target) {
			return nil
		}
		return r.build(ctx, c, f, model.Long, stop, target)
	}
	if entry > f.VWAP+stretch && f.RSI >= r.p.RSIOverbought {
		stop := entry + r.p.StopATRMult*f.ATR
		target := f.VWAP
		if !(target < entry && entry < stop) {
			return nil
		}
		return r.build(ctx, c, f, model.Short, stop, target)
	}
	return nil
}

func (r *MeanReversion) build(ctx Context, c model.Candle, f indicator.Frame, dir model.Direction, stop, target float64) *model.Signal {
	return &model.Signal{
		TS:         c.TS,
		Symbol:     ctx.Symbol,
		Timeframe:  ctx.Timeframe,
		Direction:  dir,
		Entry:      c.Close,
		Stop:       stop,
		Target:     target,
		Confidence: 3,
		Strategy:   r.Name(),
		Snapshot:   snapshotFrom(f),
	}
}

// SRBounceParams configures the support/resistance bounce rule.
type SRBounceParams struct {
	SwingLookback int     `yaml:"swing_lookback"`
	TolerancePct  float64 `yaml:"tolerance_pct"` // cluster tolerance and touch distance
	MinTouches    int     `yaml:"min_touches"`
	StopATRMult   float64 `yaml:"stop_atr_mult"`
	TargetATRMult float64 `yaml:"target_atr_mult"`
}

// DefaultSRBounceParams returns the default bounce parameters.
func DefaultSRBounceParams() SRBounceParams {
	return SRBounceParams{
		SwingLookback: 2,
		TolerancePct:  0.3,
		MinTouches:    2,
		StopATRMult:   1.0,
		TargetATRMult: 2.0,
	}
}

// SRBounce trades a rejection candle at an established support or
// resistance cluster.
type SRBounce struct {
	p SRBounceParams
}

// NewSRBounce creates the support/resistance bounce rule.
func NewSRBounce(p SRBounceParams) *SRBounce {
	return &SRBounce{p: p}
}

func (r *SRBounce) Name() string { return "sr_bounce" }

func (r *SRBounce) Evaluate(ctx Context) *model.Signal {
	c, f := ctx.Last()
	if anyNaN(f.ATR, f.RSI) || f.ATR <= 0 {
		return nil
	}

	levels, err := indicator.Levels(ctx.Candles, r.p.SwingLookback, r.p.TolerancePct, r.p.MinTouches)
	if err != nil {
		return nil
	}

	for _, lv := range levels {
		near := pct(c.Close, lv.Price) <= r.p.TolerancePct
		if !near {
			continue
		}
		if lv.Kind == "support" && c.Close > c.Open && f.RSI < 50 {
			entry := c.Close
			stop := lv.Price - r.p.StopATRMult*f.ATR
			target := entry + r.p.TargetATRMult*f.ATR
			if !(stop < entry && entry < target) {
				continue
			}
			return &model.Signal{
				TS: c.TS, Symbol: ctx.Symbol, Timeframe: ctx.Timeframe,
				Direction: model.Long, Entry: entry, Stop: stop, Target: target,
				Confidence: 3, Strategy: r.Name(), Snapshot: snapshotFrom(f),
			}
		}
		if lv.Kind == "resistance" && c.Close < c.Open && f.RSI > 50 {
			entry := c.Close
			stop := lv.Price + r.p.StopATRMult*f.ATR
			target := entry - r.p.TargetATRMult*f.ATR
			if !(target < entry && entry < stop) {
				continue
			}
			return &model.Signal{
				TS: c.TS, Symbol: ctx.Symbol, Timeframe: ctx.Timeframe,
				Direction: model.Short, Entry: entry, Stop: stop, Target: target,
				Confidence: 3, Strategy: r.Name(), Snapshot: snapshotFrom(f),
			}
		}
	}
	return nil
}

// BreakoutParams configures the EMA-cloud breakout rule.
type BreakoutParams struct {
	MinVolumeRatio float64 `yaml:"min_volume_ratio"`
	StopATRMult    float64 `yaml:"stop_atr_mult"`
	TargetATRMult  float64 `yaml:"target_atr_mult"`
}

// DefaultBreakoutParams returns the default breakout parameters.
func DefaultBreakoutParams() BreakoutParams {
	return BreakoutParams{
		MinVolumeRatio: 1.5,
		StopATRMult:    1.5,
		TargetATRMult:  2.0,
	}
}

// Breakout trades a close through the fast/slow EMA band ("cloud") on
// expanding volume: the previous close on one side of the whole band, the
// current close through the other side.
type Breakout struct {
	p BreakoutParams
}

// NewBreakout creates the EMA-cloud breakout rule.
func NewBreakout(p BreakoutParams) *Breakout {
	return &Breakout{p: p}
}

func (r *Breakout) Name() string { return "ema_cloud_breakout" }

func (r *Breakout) Evaluate(ctx Context) *model.Signal {
	c, f := ctx.Last()
	prevC, prevF, ok := ctx.At(1)
	if !ok {
		return nil
	}
	if anyNaN(f.EMAFast, f.EMASlow, f.ATR, f.VolumeRatio, prevF.EMAFast, prevF.EMASlow) || f.ATR <= 0 {
		return nil
	}
	if f.VolumeRatio < r.p.MinVolumeRatio {
		return nil
	}

	cloudTop := maxF(f.EMAFast, f.EMASlow)
	cloudBot := minF(f.EMAFast, f.EMASlow)
	prevTop := maxF(prevF.EMAFast, prevF.EMASlow)
	prevBot := minF(prevF.EMAFast, prevF.EMASlow)

	entry := c.Close
	if prevC.Close < prevBot && c.Close > cloudTop {
		return &model.Signal{
			TS: c.TS, Symbol: ctx.Symbol, Timeframe: ctx.Timeframe,
			Direction: model.Long, Entry: entry,
			Stop:   entry - r.p.StopATRMult*f.ATR,
			Target: entry + r.p.TargetATRMult*f.ATR,
			Confidence: 4, Strategy: r.Name(), Snapshot: snapshotFrom(f),
		}
	}
	if prevC.Close > prevTop && c.Close < cloudBot {
		return &model.Signal{
			TS: c.TS, Symbol: ctx.Symbol, Timeframe: ctx.Timeframe,
			Direction: model.Short, Entry: entry,
			Stop:   entry + r.p.StopATRMult*f.ATR,
			Target: entry - r.p.TargetATRMult*f.ATR,
			Confidence: 4, Strategy: r.Name(), Snapshot: snapshotFrom(f),
		}
	}
	return nil
}

func pct(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	d := (a - b) / b * 100.0
	if d < 0 {
		d = -d
	}
	return d
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
