package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

func minuteCandle(ts int64, o, h, l, c, v float64) model.Candle {
	return model.Candle{TS: time.Unix(ts, 0).UTC(), Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestResampleToFiveMinutes(t *testing.T) {
	// Ten 1m candles starting on a 5m boundary.
	var candles []model.Candle
	for i := int64(0); i < 10; i++ {
		p := 100 + float64(i)
		candles = append(candles, minuteCandle(1700000400+i*60, p, p+1, p-1, p+0.5, 10))
	}
	s := &model.Series{Symbol: "BTCUSDT", Timeframe: model.TF1m, Candles: candles}

	out, err := Resample(s, model.TF5m)
	require.NoError(t, err)
	require.Len(t, out.Candles, 2)
	assert.Equal(t, model.TF5m, out.Timeframe)

	first := out.Candles[0]
	assert.Equal(t, time.Unix(1700000400, 0).UTC(), first.TS)
	assert.Equal(t, 100.0, first.Open)
	assert.Equal(t, 105.0, first.High)  // high of candle 4 = 104+1
	assert.Equal(t, 99.0, first.Low)    // low of candle 0
	assert.Equal(t, 104.5, first.Close) // close of candle 4
	assert.Equal(t, 50.0, first.Volume)

	second := out.Candles[1]
	assert.Equal(t, time.Unix(1700000700, 0).UTC(), second.TS)
	assert.Equal(t, 105.0, second.Open)
	assert.Equal(t, 109.5, second.Close)
}

func TestResamplePartialLastBucket(t *testing.T) {
	s := &model.Series{Symbol: "BTCUSDT", Timeframe: model.TF1m, Candles: []model.Candle{
		minuteCandle(1700000400, 100, 101, 99, 100.5, 10),
		minuteCandle(1700000460, 100.5, 102, 100, 101, 10),
	}}
	out, err := Resample(s, model.TF5m)
	require.NoError(t, err)
	require.Len(t, out.Candles, 1)
	assert.Equal(t, 102.0, out.Candles[0].High)
	assert.Equal(t, 20.0, out.Candles[0].Volume)
}

func TestResampleRejectsDownsampling(t *testing.T) {
	s := &model.Series{Symbol: "BTCUSDT", Timeframe: model.TF5m, Candles: []model.Candle{
		minuteCandle(1700000400, 100, 101, 99, 100.5, 10),
	}}
	_, err := Resample(s, model.TF1m)
	assert.Error(t, err)
}

func TestResamplerIncrementalFinalizesOnBucketRoll(t *testing.T) {
	r := NewResampler([]model.Timeframe{model.TF5m})
	type emitted struct {
		symbol string
		tf     model.Timeframe
		c      model.Candle
	}
	var got []emitted
	r.OnCandle = func(symbol string, tf model.Timeframe, c model.Candle) {
		got = append(got, emitted{symbol, tf, c})
	}

	for i := int64(0); i < 5; i++ {
		p := 100 + float64(i)
		r.Add("BTCUSDT", minuteCandle(1700000400+i*60, p, p+1, p-1, p+0.5, 10))
	}
	assert.Empty(t, got, "bucket still forming")

	// First candle of the next bucket closes the previous one.
	r.Add("BTCUSDT", minuteCandle(1700000700, 105, 106, 104, 105.5, 10))
	require.Len(t, got, 1)
	assert.Equal(t, "BTCUSDT", got[0].symbol)
	assert.Equal(t, time.Unix(1700000400, 0).UTC(), got[0].c.TS)
	assert.Equal(t, 100.0, got[0].c.Open)
	assert.Equal(t, 104.5, got[0].c.Close)
	assert.Equal(t, 50.0, got[0].c.Volume)

	// Flush emits the bucket in progress.
	r.Flush()
	require.Len(t, got, 2)
	assert.Equal(t, time.Unix(1700000700, 0).UTC(), got[1].c.TS)
}

func TestResamplerDropsStaleCandles(t *testing.T) {
	r := NewResampler([]model.Timeframe{model.TF5m})
	stale := 0
	r.OnStale = func() { stale++ }

	r.Add("BTCUSDT", minuteCandle(1700000700, 105, 106, 104, 105.5, 10))
	// A candle from two buckets back is beyond the tolerance.
	r.Add("BTCUSDT", minuteCandle(1700000100, 99, 100, 98, 99.5, 10))
	assert.Equal(t, 1, stale)
}
