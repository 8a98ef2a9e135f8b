package indicator

import (
	"fmt"
	"math"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

// ATR calculates the Average True Range: Wilder smoothing over the true
// range series. The first candle's true range is high-low (no previous
// close), so every output value is defined.
func ATR(candles []model.Candle, period int) ([]float64, error) {
	if err := validateCandles(candles, period); err != nil {
		return nil, fmt.Errorf("ATR(%d): %w", period, err)
	}

	tr := make([]float64, len(candles))
	tr[0] = candles[0].High - candles[0].Low
	for i := 1; i < len(candles); i++ {
		tr[i] = trueRange(candles[i], candles[i-1].Close)
	}
	return wilder(tr, period), nil
}

func trueRange(c model.Candle, prevClose float64) float64 {
	hl := c.High - c.Low
	hc := math.Abs(c.High - prevClose)
	lc := math.Abs(c.Low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}

// RSI calculates the Relative Strength Index with Wilder smoothing over the
// gain/loss splits of the price deltas. Output is always inside [0,100];
// avgLoss == 0 maps to 100. Index 0 has no delta and is NaN.
func RSI(values []float64, period int) ([]float64, error) {
	if err := validateValues(values, period); err != nil {
		return nil, fmt.Errorf("RSI(%d): %w", period, err)
	}
	if len(values) < 2 {
		return nil, fmt.Errorf("RSI(%d): need at least 2 values, got %d: %w", period, len(values), ErrInsufficientData)
	}

	out := nanSlice(len(values))
	alpha := 1.0 / float64(period)

	var avgGain, avgLoss float64
	for i := 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		if i == 1 {
			avgGain = gain
			avgLoss = loss
		} else {
			avgGain = gain*alpha + avgGain*(1-alpha)
			avgLoss = loss*alpha + avgLoss*(1-alpha)
		}
		if avgLoss == 0 {
			out[i] = 100.0
		} else {
			rs := avgGain / avgLoss
			out[i] = 100.0 - 100.0/(1.0+rs)
		}
	}
	return out, nil
}

// ADX calculates the Average Directional Index along with the +DI/-DI lines.
// +DM/-DM come from consecutive high/low deltas, clamped at zero with only
// the larger of the two kept per candle; DI = 100 * smoothedDM / ATR;
// DX = 100 * |+DI - -DI| / (+DI + -DI); ADX is Wilder-smoothed DX.
// Index 0 has no delta and is NaN in all three outputs.
func ADX(candles []model.Candle, period int) (adx, plusDI, minusDI []float64, err error) {
	if err := validateCandles(candles, period); err != nil {
		return nil, nil, nil, fmt.Errorf("ADX(%d): %w", period, err)
	}
	if len(candles) < 2 {
		return nil, nil, nil, fmt.Errorf("ADX(%d): need at least 2 candles, got %d: %w", period, len(candles), ErrInsufficientData)
	}

	n := len(candles)
	tr := make([]float64, n-1)
	plusDM := make([]float64, n-1)
	minusDM := make([]float64, n-1)
	for i := 1; i < n; i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		pd, md := 0.0, 0.0
		if up > down && up > 0 {
			pd = up
		}
		if down > up && down > 0 {
			md = down
		}
		plusDM[i-1] = pd
		minusDM[i-1] = md
		tr[i-1] = trueRange(candles[i], candles[i-1].Close)
	}

	smTR := wilder(tr, period)
	smPlus := wilder(plusDM, period)
	smMinus := wilder(minusDM, period)

	adx = nanSlice(n)
	plusDI = nanSlice(n)
	minusDI = nanSlice(n)

	dx := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		pdi, mdi := 0.0, 0.0
		if smTR[i] > 0 {
			pdi = 100.0 * smPlus[i] / smTR[i]
			mdi = 100.0 * smMinus[i] / smTR[i]
		}
		plusDI[i+1] = pdi
		minusDI[i+1] = mdi
		if pdi+mdi > 0 {
			dx[i] = 100.0 * math.Abs(pdi-mdi) / (pdi + mdi)
		}
	}

	smDX := wilder(dx, period)
	for i := 0; i < n-1; i++ {
		adx[i+1] = smDX[i]
	}
	return adx, plusDI, minusDI, nil
}
