package indicator

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

// Config selects the indicator periods computed into each Frame.
type Config struct {
	EMAFast  int `yaml:"ema_fast"`
	EMASlow  int `yaml:"ema_slow"`
	EMATrend int `yaml:"ema_trend"`

	RSIPeriod int `yaml:"rsi_period"`
	ATRPeriod int `yaml:"atr_period"`
	ADXPeriod int `yaml:"adx_period"`

	StochK      int `yaml:"stoch_k"`
	StochD      int `yaml:"stoch_d"`
	StochSmooth int `yaml:"stoch_smooth"`

	MACDFast   int `yaml:"macd_fast"`
	MACDSlow   int `yaml:"macd_slow"`
	MACDSignal int `yaml:"macd_signal"`

	VolMAPeriod    int  `yaml:"vol_ma_period"`
	VWAPDailyReset bool `yaml:"vwap_daily_reset"`
}

// DefaultConfig returns the standard scalping periods.
func DefaultConfig() Config {
	return Config{
		EMAFast:  9,
		EMASlow:  21,
		EMATrend: 50,

		RSIPeriod: 14,
		ATRPeriod: 14,
		ADXPeriod: 14,

		StochK:      14,
		StochD:      3,
		StochSmooth: 3,

		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,

		VolMAPeriod:    20,
		VWAPDailyReset: true,
	}
}

// Frame holds the indicator value set for one candle. A NaN field means the
// candle sits inside that indicator's warm-up window.
type Frame struct {
	EMAFast  float64
	EMASlow  float64
	EMATrend float64

	RSI     float64
	ATR     float64
	ADX     float64
	PlusDI  float64
	MinusDI float64

	StochK float64
	StochD float64

	MACD       float64
	MACDSignal float64
	MACDHist   float64

	VWAP float64

	VolMA       float64
	VolumeRatio float64 // candle volume / VolMA
}

// Compute validates the series and produces one Frame per candle.
//
// An indicator whose input is merely too short for its period degrades to
// NaN fields with a logged warning; empty or NaN-polluted input is a hard
// error. If every indicator degrades the whole computation fails rather
// than returning an all-NaN frame set.
func Compute(s *model.Series, cfg Config) ([]Frame, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("indicator compute: %w", err)
	}

	candles := s.Candles
	closes := Closes(candles)
	volumes := Volumes(candles)
	n := len(candles)

	frames := make([]Frame, n)
	for i := range frames {
		frames[i] = Frame{
			EMAFast: math.NaN(), EMASlow: math.NaN(), EMATrend: math.NaN(),
			RSI: math.NaN(), ATR: math.NaN(), ADX: math.NaN(),
			PlusDI: math.NaN(), MinusDI: math.NaN(),
			StochK: math.NaN(), StochD: math.NaN(),
			MACD: math.NaN(), MACDSignal: math.NaN(), MACDHist: math.NaN(),
			VWAP: math.NaN(), VolMA: math.NaN(), VolumeRatio: math.NaN(),
		}
	}

	degraded := 0
	total := 0

	fill := func(name string, run func() error) error {
		total++
		err := run()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrInsufficientData) {
			degraded++
			log.Printf("[indicator] %s/%s: %s degraded: %v", s.Symbol, s.Timeframe, name, err)
			return nil
		}
		return err
	}

	if err := fill("EMA", func() error {
		fast, err := EMA(closes, cfg.EMAFast)
		if err != nil {
			return err
		}
		slow, err := EMA(closes, cfg.EMASlow)
		if err != nil {
			return err
		}
		trend, err := EMA(closes, cfg.EMATrend)
		if err != nil {
			return err
		}
		for i := range frames {
			frames[i].EMAFast = fast[i]
			frames[i].EMASlow = slow[i]
			frames[i].EMATrend = trend[i]
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := fill("RSI", func() error {
		rsi, err := RSI(closes, cfg.RSIPeriod)
		if err != nil {
			return err
		}
		for i := range frames {
			frames[i].RSI = rsi[i]
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := fill("ATR", func() error {
		atr, err := ATR(candles, cfg.ATRPeriod)
		if err != nil {
			return err
		}
		for i := range frames {
			frames[i].ATR = atr[i]
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := fill("ADX", func() error {
		adx, plus, minus, err := ADX(candles, cfg.ADXPeriod)
		if err != nil {
			return err
		}
		for i := range frames {
			frames[i].ADX = adx[i]
			frames[i].PlusDI = plus[i]
			frames[i].MinusDI = minus[i]
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := fill("Stochastic", func() error {
		k, d, err := Stochastic(candles, cfg.StochK, cfg.StochD, cfg.StochSmooth)
		if err != nil {
			return err
		}
		for i := range frames {
			frames[i].StochK = k[i]
			frames[i].StochD = d[i]
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := fill("MACD", func() error {
		macd, sig, hist, err := MACD(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
		if err != nil {
			return err
		}
		for i := range frames {
			frames[i].MACD = macd[i]
			frames[i].MACDSignal = sig[i]
			frames[i].MACDHist = hist[i]
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := fill("VWAP", func() error {
		vwap, err := VWAP(candles, cfg.VWAPDailyReset)
		if err != nil {
			return err
		}
		for i := range frames {
			frames[i].VWAP = vwap[i]
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := fill("VolMA", func() error {
		volMA, err := SMA(volumes, cfg.VolMAPeriod)
		if err != nil {
			return err
		}
		for i := range frames {
			frames[i].VolMA = volMA[i]
			if volMA[i] > 0 {
				frames[i].VolumeRatio = candles[i].Volume / volMA[i]
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if degraded == total {
		return nil, fmt.Errorf("indicator compute %s/%s: all %d indicators undefined for %d candles: %w",
			s.Symbol, s.Timeframe, total, n, ErrInsufficientData)
	}
	return frames, nil
}
