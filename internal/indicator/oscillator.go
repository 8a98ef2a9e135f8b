package indicator

import (
	"fmt"
	"math"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

// Stochastic calculates the smoothed stochastic oscillator:
//
//	rawK = 100 * (close - lowestLow(k)) / (highestHigh(k) - lowestLow(k))
//	K    = SMA(rawK, smoothK)
//	D    = SMA(K, d)
//
// A flat k-window (highest == lowest) yields a neutral 50 rather than a
// division by zero. Warm-up positions are NaN.
func Stochastic(candles []model.Candle, k, d, smoothK int) (kOut, dOut []float64, err error) {
	if err := validateCandles(candles, k); err != nil {
		return nil, nil, fmt.Errorf("Stochastic(%d,%d,%d): %w", k, d, smoothK, err)
	}
	if d <= 0 || smoothK <= 0 {
		return nil, nil, fmt.Errorf("Stochastic(%d,%d,%d): %w", k, d, smoothK, ErrBadPeriod)
	}
	if len(candles) < k+smoothK-1 {
		return nil, nil, fmt.Errorf("Stochastic(%d,%d,%d): need %d candles, got %d: %w",
			k, d, smoothK, k+smoothK-1, len(candles), ErrInsufficientData)
	}

	rawK := nanSlice(len(candles))
	for i := k - 1; i < len(candles); i++ {
		lo := math.Inf(1)
		hi := math.Inf(-1)
		for j := i - k + 1; j <= i; j++ {
			if candles[j].Low < lo {
				lo = candles[j].Low
			}
			if candles[j].High > hi {
				hi = candles[j].High
			}
		}
		if hi == lo {
			rawK[i] = 50.0
		} else {
			rawK[i] = 100.0 * (candles[i].Close - lo) / (hi - lo)
		}
	}

	kOut = smaKeepNaN(rawK, smoothK)
	dOut = smaKeepNaN(kOut, d)
	return kOut, dOut, nil
}

// MACD calculates the Moving Average Convergence Divergence:
// macd = EMA(fast) - EMA(slow), signalLine = EMA(macd, signal),
// histogram = macd - signalLine. All outputs are fully defined because the
// underlying EMAs are seeded at the first observation.
func MACD(values []float64, fast, slow, signal int) (macd, signalLine, histogram []float64, err error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return nil, nil, nil, fmt.Errorf("MACD(%d,%d,%d): %w", fast, slow, signal, ErrBadPeriod)
	}
	emaFast, err := EMA(values, fast)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("MACD(%d,%d,%d): %w", fast, slow, signal, err)
	}
	emaSlow, err := EMA(values, slow)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("MACD(%d,%d,%d): %w", fast, slow, signal, err)
	}

	macd = make([]float64, len(values))
	for i := range values {
		macd[i] = emaFast[i] - emaSlow[i]
	}
	signalLine, err = EMA(macd, signal)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("MACD(%d,%d,%d): signal line: %w", fast, slow, signal, err)
	}
	histogram = make([]float64, len(values))
	for i := range values {
		histogram[i] = macd[i] - signalLine[i]
	}
	return macd, signalLine, histogram, nil
}

// VWAP calculates the cumulative volume-weighted average price:
// cumulative(typicalPrice * volume) / cumulative(volume). When dailyReset is
// set, both cumulative sums restart at the first candle of each calendar
// date (UTC). A zero cumulative volume falls back to the typical price.
func VWAP(candles []model.Candle, dailyReset bool) ([]float64, error) {
	if err := validateCandles(candles, 1); err != nil {
		return nil, fmt.Errorf("VWAP: %w", err)
	}

	out := make([]float64, len(candles))
	var cumPV, cumV float64
	var day int
	for i, c := range candles {
		if dailyReset {
			d := c.TS.UTC().YearDay() + c.TS.UTC().Year()*1000
			if i == 0 || d != day {
				cumPV, cumV = 0, 0
			}
			day = d
		}
		cumPV += c.TypicalPrice() * c.Volume
		cumV += c.Volume
		if cumV == 0 {
			out[i] = c.TypicalPrice()
		} else {
			out[i] = cumPV / cumV
		}
	}
	return out, nil
}
