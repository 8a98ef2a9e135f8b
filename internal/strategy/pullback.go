package strategy

import (
	"github.com/predeshen/telegramscalperbot-sub000/internal/indicator"
	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

// PullbackParams configures the trend-following pullback rule.
type PullbackParams struct {
	SwingLookback   int     `yaml:"swing_lookback"`    // neighborhood for swing detection
	TrendWindow     int     `yaml:"trend_window"`      // candles scanned for the swing structure
	MinSwings       int     `yaml:"min_swings"`        // higher-highs AND higher-lows required
	ATRDeclineK     int     `yaml:"atr_decline_k"`     // strictly declining ATR over K candles = consolidation
	MaxPullbackPct  float64 `yaml:"max_pullback_pct"`  // max retracement of the last leg (61.8)
	MinVolumeRatio  float64 `yaml:"min_volume_ratio"`  // volume must not collapse
	StopATRMult     float64 `yaml:"stop_atr_mult"`
	TargetATRMult   float64 `yaml:"target_atr_mult"`
	StrongATRMult   float64 `yaml:"strong_atr_mult"` // target multiple with oscillator confirmation
	StrongRSILong   float64 `yaml:"strong_rsi_long"`
	StrongRSIShort  float64 `yaml:"strong_rsi_short"`
}

// DefaultPullbackParams returns the default pullback parameters.
func DefaultPullbackParams() PullbackParams {
	return PullbackParams{
		SwingLookback:  2,
		TrendWindow:    40,
		MinSwings:      2,
		ATRDeclineK:    4,
		MaxPullbackPct: 61.8,
		MinVolumeRatio: 0.8,
		StopATRMult:    1.5,
		TargetATRMult:  2.5,
		StrongATRMult:  3.0,
		StrongRSILong:  60,
		StrongRSIShort: 40,
	}
}

// Pullback is the trend-following pullback rule: a multi-swing trend, an
// ordered and sloping EMA stack, no consolidation, a retracement no deeper
// than MaxPullbackPct of the last leg, volume holding up, and the close on
// the favorable side of the fast EMA.
type Pullback struct {
	p PullbackParams
}

// NewPullback creates the trend-pullback rule.
func NewPullback(p PullbackParams) *Pullback {
	return &Pullback{p: p}
}

func (r *Pullback) Name() string { return "trend_pullback" }

func (r *Pullback) Evaluate(ctx Context) *model.Signal {
	c, f := ctx.Last()
	if anyNaN(f.EMAFast, f.EMASlow, f.EMATrend, f.ATR, f.RSI, f.VolumeRatio) {
		return nil
	}
	if r.consolidating(ctx) {
		return nil
	}
	if f.VolumeRatio < r.p.MinVolumeRatio {
		return nil
	}

	window := ctx.Candles
	if len(window) > r.p.TrendWindow {
		window = window[len(window)-r.p.TrendWindow:]
	}
	highs, err := indicator.SwingHighs(window, r.p.SwingLookback)
	if err != nil {
		return nil
	}
	lows, err := indicator.SwingLows(window, r.p.SwingLookback)
	if err != nil {
		return nil
	}

	if dir, ok := r.trendDirection(window, highs, lows); ok {
		switch dir {
		case model.Long:
			if c.Close <= f.EMAFast {
				return nil
			}
			if !(f.EMAFast > f.EMASlow && f.EMASlow > f.EMATrend) || !r.sloping(ctx, true) {
				return nil
			}
			if !r.pullbackOK(window, highs, lows, c.Close, true) {
				return nil
			}
			return r.build(ctx, c, f, model.Long)
		case model.Short:
			if c.Close >= f.EMAFast {
				return nil
			}
			if !(f.EMAFast < f.EMASlow && f.EMASlow < f.EMATrend) || !r.sloping(ctx, false) {
				return nil
			}
			if !r.pullbackOK(window, highs, lows, c.Close, false) {
				return nil
			}
			return r.build(ctx, c, f, model.Short)
		}
	}
	return nil
}

func (r *Pullback) build(ctx Context, c model.Candle, f indicator.Frame, dir model.Direction) *model.Signal {
	if f.ATR <= 0 {
		return nil
	}
	entry := c.Close

	targetMult := r.p.TargetATRMult
	confidence := 4
	if (dir == model.Long && f.RSI >= r.p.StrongRSILong) ||
		(dir == model.Short && f.RSI <= r.p.StrongRSIShort) {
		targetMult = r.p.StrongATRMult
		confidence = 5
	}

	var stop, target float64
	if dir == model.Long {
		stop = entry - r.p.StopATRMult*f.ATR
		target = entry + targetMult*f.ATR
	} else {
		stop = entry + r.p.StopATRMult*f.ATR
		target = entry - targetMult*f.ATR
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
		Strategy:   r.Name(),
		Snapshot:   snapshotFrom(f),
	}
}

// trendDirection checks the swing structure: at least MinSwings consecutive
// higher-highs and higher-lows for an uptrend, or the mirror for a downtrend.
func (r *Pullback) trendDirection(window []model.Candle, highs, lows []int) (model.Direction, bool) {
	need := r.p.MinSwings
	if len(highs) < need+1 || len(lows) < need+1 {
		return "", false
	}

	hh, ll := 0, 0
	lh, hl := 0, 0
	for i := len(highs) - need; i < len(highs); i++ {
		if window[highs[i]].High > window[highs[i-1]].High {
			hh++
		}
		if window[highs[i]].High < window[highs[i-1]].High {
			lh++
		}
	}
	for i := len(lows) - need; i < len(lows); i++ {
		if window[lows[i]].Low > window[lows[i-1]].Low {
			hl++
		}
		if window[lows[i]].Low < window[lows[i-1]].Low {
			ll++
		}
	}

	if hh >= need && hl >= need {
		return model.Long, true
	}
	if lh >= need && ll >= need {
		return model.Short, true
	}
	return "", false
}

// consolidating reports a strictly declining ATR over the last K candles.
func (r *Pullback) consolidating(ctx Context) bool {
	k := r.p.ATRDeclineK
	if len(ctx.Frames) < k {
		return false
	}
	for back := 0; back < k-1; back++ {
		_, cur, _ := ctx.At(back)
		_, prev, ok := ctx.At(back + 1)
		if !ok || anyNaN(cur.ATR, prev.ATR) {
			return false
		}
		if cur.ATR >= prev.ATR {
			return false
		}
	}
	return true
}

// sloping checks that the fast and slow EMAs move with the trend.
func (r *Pullback) sloping(ctx Context, up bool) bool {
	_, cur, _ := ctx.At(0)
	_, prev, ok := ctx.At(1)
	if !ok || anyNaN(cur.EMAFast, cur.EMASlow, prev.EMAFast, prev.EMASlow) {
		return false
	}
	if up {
		return cur.EMAFast > prev.EMAFast && cur.EMASlow > prev.EMASlow
	}
	return cur.EMAFast < prev.EMAFast && cur.EMASlow < prev.EMASlow
}

// pullbackOK checks the retracement depth against the last trend leg.
func (r *Pullback) pullbackOK(window []model.Candle, highs, lows []int, close float64, up bool) bool {
	if len(highs) == 0 || len(lows) == 0 {
		return false
	}
	lastHigh := window[highs[len(highs)-1]].High
	lastLow := window[lows[len(lows)-1]].Low
	leg := lastHigh - lastLow
	if leg <= 0 {
		return false
	}
	var depth float64
	if up {
		depth = lastHigh - close // retracement down from the leg's high
	} else {
		depth = close - lastLow // retracement up from the leg's low
	}
	if depth < 0 {
		depth = 0
	}
	return depth/leg*100.0 <= r.p.MaxPullbackPct
}
