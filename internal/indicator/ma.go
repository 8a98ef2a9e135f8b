package indicator

import (
	"fmt"
	"math"
)

// EMA calculates the Exponential Moving Average in the recursive form seeded
// at the first observation:
//
//	ema[0] = price[0]
//	ema[i] = price[i]*alpha + ema[i-1]*(1-alpha), alpha = 2/(period+1)
//
// Every output value is defined; there is no warm-up NaN window.
func EMA(values []float64, period int) ([]float64, error) {
	if err := validateValues(values, period); err != nil {
		return nil, fmt.Errorf("EMA(%d): %w", period, err)
	}

	alpha := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*alpha + out[i-1]*(1-alpha)
	}
	return out, nil
}

// SMA calculates the Simple Moving Average. Positions before the window
// fills (i < period-1) are NaN.
func SMA(values []float64, period int) ([]float64, error) {
	if err := validateValues(values, period); err != nil {
		return nil, fmt.Errorf("SMA(%d): %w", period, err)
	}
	if len(values) < period {
		return nil, fmt.Errorf("SMA(%d): need %d values, got %d: %w", period, period, len(values), ErrInsufficientData)
	}

	out := nanSlice(len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out, nil
}

// smaKeepNaN applies a simple moving average over a series whose head may be
// NaN (output of another warm-up-windowed indicator). The window only starts
// once it holds `period` defined values; earlier positions stay NaN.
func smaKeepNaN(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	first := -1
	for i, v := range values {
		if !math.IsNaN(v) {
			first = i
			break
		}
	}
	if first < 0 {
		return out
	}
	sum := 0.0
	for i := first; i < len(values); i++ {
		sum += values[i]
		if i-first >= period {
			sum -= values[i-period]
		}
		if i-first >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// wilder applies Wilder smoothing, the recursive exponential form with
// alpha = 1/period, seeded at the first observation.
func wilder(values []float64, period int) []float64 {
	alpha := 1.0 / float64(period)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*alpha + out[i-1]*(1-alpha)
	}
	return out
}
