package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predeshen/telegramscalperbot-sub000/internal/indicator"
	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
	"github.com/predeshen/telegramscalperbot-sub000/internal/strategy"
)

// stubRule fires a fixed candidate on every evaluation, or nothing when
// sig is nil. Each call hands out a copy so the detector may mutate it.
type stubRule struct {
	name string
	sig  *model.Signal
}

func (r *stubRule) Name() string { return r.name }

func (r *stubRule) Evaluate(ctx strategy.Context) *model.Signal {
	if r.sig == nil {
		return nil
	}
	c := *r.sig
	c.Symbol = ctx.Symbol
	c.Timeframe = ctx.Timeframe
	last, _ := ctx.Last()
	c.TS = last.TS
	return &c
}

func testSeries(ts time.Time) (*model.Series, []indicator.Frame) {
	s := &model.Series{
		Symbol:    "BTCUSDT",
		Timeframe: model.TF5m,
		Candles: []model.Candle{
			{TS: ts, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1200},
		},
	}
	return s, make([]indicator.Frame, 1)
}

func longCandidate() *model.Signal {
	return &model.Signal{
		Direction:  model.Long,
		Entry:      100,
		Stop:       98,
		Target:     104,
		Confidence: 4,
		Strategy:   "stub_long",
	}
}

func TestScanEmitsFirstRuleHit(t *testing.T) {
	quiet := &stubRule{name: "quiet"}
	loud := &stubRule{name: "stub_long", sig: longCandidate()}
	d := New([]strategy.Rule{quiet, loud}, DefaultConfig())

	s, frames := testSeries(time.Unix(1700000400, 0).UTC())
	sig := d.Scan(s, frames)

	require.NotNil(t, sig)
	assert.Equal(t, "BTCUSDT", sig.Symbol)
	assert.Equal(t, model.TF5m, sig.Timeframe)
	assert.NotEmpty(t, sig.ID)
	assert.InDelta(t, 2.0, sig.RiskReward, 1e-9)
	require.NoError(t, sig.Validate())
}

func TestScanRejectsZeroStopDistance(t *testing.T) {
	degenerate := longCandidate()
	degenerate.Stop = degenerate.Entry
	d := New([]strategy.Rule{&stubRule{name: "flat", sig: degenerate}}, DefaultConfig())

	s, frames := testSeries(time.Unix(1700000400, 0).UTC())
	assert.Nil(t, d.Scan(s, frames))
}

func TestScanRejectsInvalidOrdering(t *testing.T) {
	bad := longCandidate()
	bad.Target = 99 // below entry on a LONG
	d := New([]strategy.Rule{&stubRule{name: "bad", sig: bad}}, DefaultConfig())

	s, frames := testSeries(time.Unix(1700000400, 0).UTC())
	assert.Nil(t, d.Scan(s, frames))
}

func TestScanDedupBlocksRepeatWithinWindow(t *testing.T) {
	rule := &stubRule{name: "stub_long", sig: longCandidate()}
	d := New([]strategy.Rule{rule}, DefaultConfig())

	base := time.Unix(1700000400, 0).UTC()
	s, frames := testSeries(base)
	require.NotNil(t, d.Scan(s, frames))

	// Ten minutes later at the same price: inside the 30 minute window.
	s2, frames2 := testSeries(base.Add(10 * time.Minute))
	assert.Nil(t, d.Scan(s2, frames2))

	// Past the window the same setup is allowed again.
	s3, frames3 := testSeries(base.Add(31 * time.Minute))
	assert.NotNil(t, d.Scan(s3, frames3))
}

func TestScanDedupReentryOnPriceMove(t *testing.T) {
	rule := &stubRule{name: "stub_long", sig: longCandidate()}
	d := New([]strategy.Rule{rule}, DefaultConfig())

	base := time.Unix(1700000400, 0).UTC()
	s, frames := testSeries(base)
	require.NotNil(t, d.Scan(s, frames))

	// Entry moved 1% from the prior emission: beyond the 0.5% reentry
	// threshold, so the window no longer blocks.
	moved := longCandidate()
	moved.Entry = 101
	moved.Stop = 99
	moved.Target = 105
	rule.sig = moved

	s2, frames2 := testSeries(base.Add(5 * time.Minute))
	assert.NotNil(t, d.Scan(s2, frames2))
}

func TestScanDedupIsPerTimeframe(t *testing.T) {
	rule := &stubRule{name: "stub_long", sig: longCandidate()}
	d := New([]strategy.Rule{rule}, DefaultConfig())

	base := time.Unix(1700000400, 0).UTC()
	s, frames := testSeries(base)
	require.NotNil(t, d.Scan(s, frames))

	s2, frames2 := testSeries(base.Add(time.Minute))
	s2.Timeframe = model.TF15m
	assert.NotNil(t, d.Scan(s2, frames2), "other timeframe keeps its own dedup history")
}

func TestScanOppositeDirectionNotBlocked(t *testing.T) {
	rule := &stubRule{name: "stub_long", sig: longCandidate()}
	d := New([]strategy.Rule{rule}, DefaultConfig())

	base := time.Unix(1700000400, 0).UTC()
	s, frames := testSeries(base)
	require.NotNil(t, d.Scan(s, frames))

	short := &model.Signal{
		Direction:  model.Short,
		Entry:      100,
		Stop:       102,
		Target:     96,
		Confidence: 4,
		Strategy:   "stub_short",
	}
	rule.sig = short
	s2, frames2 := testSeries(base.Add(time.Minute))
	assert.NotNil(t, d.Scan(s2, frames2))
}

func TestScanEmptyInputs(t *testing.T) {
	d := New(nil, DefaultConfig())
	assert.Nil(t, d.Scan(&model.Series{Symbol: "X"}, nil))

	s, frames := testSeries(time.Unix(1700000400, 0).UTC())
	assert.Nil(t, d.Scan(s, frames[:0]), "misaligned frames are rejected")
}
