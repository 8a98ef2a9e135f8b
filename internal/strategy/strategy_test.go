package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predeshen/telegramscalperbot-sub000/internal/indicator"
	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

func ctxWith(closes []float64, frames []indicator.Frame) Context {
	base := time.Unix(1700000400, 0).UTC()
	candles := make([]model.Candle, len(closes))
	for i, cl := range closes {
		candles[i] = model.Candle{
			TS:     base.Add(time.Duration(i) * time.Minute),
			Open:   cl,
			High:   cl + 1,
			Low:    cl - 1,
			Close:  cl,
			Volume: 1000,
		}
	}
	return Context{
		Symbol:    "BTCUSDT",
		Timeframe: model.TF5m,
		Candles:   candles,
		Frames:    frames,
	}
}

// momentumLongSetup is a fresh bullish EMA crossover with every critical
// factor satisfied.
func momentumLongSetup() Context {
	return ctxWith(
		[]float64{101, 102},
		[]indicator.Frame{
			{EMAFast: 99, EMASlow: 100, VWAP: 99, RSI: 55, ATR: 2, VolumeRatio: 1.0, EMATrend: 95},
			{EMAFast: 101, EMASlow: 100, VWAP: 99, RSI: 60, ATR: 2, VolumeRatio: 2.5, EMATrend: 95},
		},
	)
}

func TestMomentumLongFires(t *testing.T) {
	m := NewMomentum(DefaultMomentumParams())
	sig := m.Evaluate(momentumLongSetup())

	require.NotNil(t, sig)
	assert.Equal(t, model.Long, sig.Direction)
	assert.Equal(t, "momentum_confluence", sig.Strategy)
	assert.Equal(t, 102.0, sig.Entry)
	assert.InDelta(t, 99.0, sig.Stop, 1e-9)   // 1.5 x ATR below entry
	assert.InDelta(t, 104.0, sig.Target, 1e-9) // 1.0 x ATR above entry
	assert.Equal(t, 5, sig.Confidence, "price above trend EMA upgrades confidence")
	assert.Equal(t, 60.0, sig.Snapshot.RSI)
}

func TestMomentumTrendFilterIsConfidenceOnly(t *testing.T) {
	ctx := momentumLongSetup()
	ctx.Frames[1].EMATrend = 110 // price below trend EMA

	sig := NewMomentum(DefaultMomentumParams()).Evaluate(ctx)
	require.NotNil(t, sig, "trend filter must not veto")
	assert.Equal(t, 4, sig.Confidence)
}

func TestMomentumCriticalGates(t *testing.T) {
	m := NewMomentum(DefaultMomentumParams())

	cases := []struct {
		name   string
		mutate func(*Context)
	}{
		{"no volume spike", func(c *Context) { c.Frames[1].VolumeRatio = 1.2 }},
		{"rsi overbought", func(c *Context) { c.Frames[1].RSI = 75 }},
		{"rsi below midline", func(c *Context) { c.Frames[1].RSI = 45 }},
		{"below vwap", func(c *Context) { c.Frames[1].VWAP = 103 }},
		{"no crossover", func(c *Context) { c.Frames[0].EMAFast = 101 }},
		{"warm-up frame", func(c *Context) { c.Frames[1].RSI = math.NaN() }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := momentumLongSetup()
			tc.mutate(&ctx)
			assert.Nil(t, m.Evaluate(ctx))
		})
	}
}

func TestMomentumShortMirror(t *testing.T) {
	ctx := ctxWith(
		[]float64{99, 98},
		[]indicator.Frame{
			{EMAFast: 101, EMASlow: 100, VWAP: 100, RSI: 45, ATR: 2, VolumeRatio: 1.0, EMATrend: 105},
			{EMAFast: 99, EMASlow: 100, VWAP: 100, RSI: 40, ATR: 2, VolumeRatio: 2.5, EMATrend: 105},
		},
	)
	sig := NewMomentum(DefaultMomentumParams()).Evaluate(ctx)

	require.NotNil(t, sig)
	assert.Equal(t, model.Short, sig.Direction)
	assert.InDelta(t, 101.0, sig.Stop, 1e-9)
	assert.InDelta(t, 96.0, sig.Target, 1e-9)
	assert.Equal(t, 5, sig.Confidence)
	require.NoError(t, sig.Validate())
}

func TestMeanReversionFadesOversoldStretch(t *testing.T) {
	ctx := ctxWith(
		[]float64{100},
		[]indicator.Frame{
			{VWAP: 105, ATR: 2, RSI: 25},
		},
	)
	sig := NewMeanReversion(DefaultMeanReversionParams()).Evaluate(ctx)

	require.NotNil(t, sig)
	assert.Equal(t, model.Long, sig.Direction)
	assert.Equal(t, "mean_reversion", sig.Strategy)
	assert.InDelta(t, 98.0, sig.Stop, 1e-9)
	assert.Equal(t, 105.0, sig.Target, "target is VWAP itself")
	assert.Equal(t, 3, sig.Confidence)
}

func TestMeanReversionFadesOverboughtStretch(t *testing.T) {
	ctx := ctxWith(
		[]float64{110},
		[]indicator.Frame{
			{VWAP: 105, ATR: 2, RSI: 75},
		},
	)
	sig := NewMeanReversion(DefaultMeanReversionParams()).Evaluate(ctx)

	require.NotNil(t, sig)
	assert.Equal(t, model.Short, sig.Direction)
	assert.InDelta(t, 112.0, sig.Stop, 1e-9)
	assert.Equal(t, 105.0, sig.Target)
	require.NoError(t, sig.Validate())
}

func TestMeanReversionNeedsBothStretchAndExtreme(t *testing.T) {
	r := NewMeanReversion(DefaultMeanReversionParams())

	// Stretched but RSI not extreme.
	ctx := ctxWith([]float64{100}, []indicator.Frame{{VWAP: 105, ATR: 2, RSI: 40}})
	assert.Nil(t, r.Evaluate(ctx))

	// Extreme RSI but price near VWAP.
	ctx = ctxWith([]float64{104}, []indicator.Frame{{VWAP: 105, ATR: 2, RSI: 25}})
	assert.Nil(t, r.Evaluate(ctx))

	// Zero ATR never divides or fires.
	ctx = ctxWith([]float64{100}, []indicator.Frame{{VWAP: 105, ATR: 0, RSI: 25}})
	assert.Nil(t, r.Evaluate(ctx))
}

func TestDefaultRulesOrder(t *testing.T) {
	rules := DefaultRules(DefaultConfig())
	require.Len(t, rules, 5)
	assert.Equal(t, "momentum_confluence", rules[0].Name())
	assert.Equal(t, "trend_pullback", rules[1].Name())
	assert.Equal(t, "mean_reversion", rules[4].Name())
}
