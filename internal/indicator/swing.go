package indicator

import (
	"fmt"
	"sort"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

// SwingHighs returns the indexes whose high exceeds the high of every
// neighbor within +/- lookback candles.
func SwingHighs(candles []model.Candle, lookback int) ([]int, error) {
	if err := validateCandles(candles, lookback); err != nil {
		return nil, fmt.Errorf("SwingHighs(%d): %w", lookback, err)
	}
	var out []int
	for i := lookback; i < len(candles)-lookback; i++ {
		isSwing := true
		for j := i - lookback; j <= i+lookback; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isSwing = false
				break
			}
		}
		if isSwing {
			out = append(out, i)
		}
	}
	return out, nil
}

// SwingLows returns the indexes whose low is below the low of every
// neighbor within +/- lookback candles.
func SwingLows(candles []model.Candle, lookback int) ([]int, error) {
	if err := validateCandles(candles, lookback); err != nil {
		return nil, fmt.Errorf("SwingLows(%d): %w", lookback, err)
	}
	var out []int
	for i := lookback; i < len(candles)-lookback; i++ {
		isSwing := true
		for j := i - lookback; j <= i+lookback; j++ {
			if j == i {
				continue
			}
			if candles[j].Low <= candles[i].Low {
				isSwing = false
				break
			}
		}
		if isSwing {
			out = append(out, i)
		}
	}
	return out, nil
}

// Level is one clustered support or resistance price level.
type Level struct {
	Price   float64 // running average of clustered touch prices
	Touches int
	Kind    string // "support" or "resistance"
}

// Levels clusters swing-point touch prices into support/resistance levels.
// A touch joins an existing cluster when it is within tolerancePct percent
// of the cluster's running average, otherwise it starts a new cluster.
// Only clusters with at least minTouches touches are returned, sorted by
// price ascending.
func Levels(candles []model.Candle, lookback int, tolerancePct float64, minTouches int) ([]Level, error) {
	highs, err := SwingHighs(candles, lookback)
	if err != nil {
		return nil, err
	}
	lows, err := SwingLows(candles, lookback)
	if err != nil {
		return nil, err
	}

	var levels []Level
	cluster := func(price float64, kind string) {
		for i := range levels {
			lv := &levels[i]
			if lv.Kind != kind {
				continue
			}
			if pctDistance(price, lv.Price) <= tolerancePct {
				// Fold the touch into the running average.
				lv.Price = (lv.Price*float64(lv.Touches) + price) / float64(lv.Touches+1)
				lv.Touches++
				return
			}
		}
		levels = append(levels, Level{Price: price, Touches: 1, Kind: kind})
	}

	for _, i := range highs {
		cluster(candles[i].High, "resistance")
	}
	for _, i := range lows {
		cluster(candles[i].Low, "support")
	}

	out := levels[:0]
	for _, lv := range levels {
		if lv.Touches >= minTouches {
			out = append(out, lv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out, nil
}

func pctDistance(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	d := (a - b) / b * 100.0
	if d < 0 {
		d = -d
	}
	return d
}
