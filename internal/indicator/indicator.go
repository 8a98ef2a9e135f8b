// Package indicator provides technical indicator calculations over candle data.
//
// All functions are pure, deterministic transforms: identical input produces
// identical output series. Values are float64 slices aligned 1:1 with the
// input candles; NaN marks positions inside an indicator's warm-up window.
// Validation failures (empty input, NaN in raw OHLCV, input too short to
// produce a single defined value) are hard errors, never silent NaN series.
package indicator

import (
	"errors"
	"fmt"
	"math"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

var (
	// ErrEmptyInput is returned when an indicator receives no data.
	ErrEmptyInput = errors.New("indicator: empty input")

	// ErrBadPeriod is returned for non-positive periods.
	ErrBadPeriod = errors.New("indicator: period must be positive")

	// ErrInsufficientData is returned when the input is too short for the
	// requested period to produce any defined output value.
	ErrInsufficientData = errors.New("indicator: insufficient data for period")

	// ErrNaNInput is returned when raw OHLCV input contains NaN.
	ErrNaNInput = errors.New("indicator: NaN in raw input")
)

func validateValues(values []float64, period int) error {
	if period <= 0 {
		return fmt.Errorf("%w: got %d", ErrBadPeriod, period)
	}
	if len(values) == 0 {
		return ErrEmptyInput
	}
	for i, v := range values {
		if math.IsNaN(v) {
			return fmt.Errorf("%w: index %d", ErrNaNInput, i)
		}
	}
	return nil
}

func validateCandles(candles []model.Candle, period int) error {
	if period <= 0 {
		return fmt.Errorf("%w: got %d", ErrBadPeriod, period)
	}
	if len(candles) == 0 {
		return ErrEmptyInput
	}
	for i, c := range candles {
		if math.IsNaN(c.Open) || math.IsNaN(c.High) || math.IsNaN(c.Low) ||
			math.IsNaN(c.Close) || math.IsNaN(c.Volume) {
			return fmt.Errorf("%w: candle %d", ErrNaNInput, i)
		}
	}
	return nil
}

// Closes extracts the close series from candles.
func Closes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts the volume series from candles.
func Volumes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
