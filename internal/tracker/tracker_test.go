package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

type fakeClearer struct{ cleared []string }

func (f *fakeClearer) ClearActive(symbol string) { f.cleared = append(f.cleared, symbol) }

func longSignal() *model.Signal {
	return &model.Signal{
		ID:         "t1",
		TS:         time.Now(),
		Symbol:     "BTCUSDT",
		Timeframe:  model.TF5m,
		Direction:  model.Long,
		Entry:      100,
		Stop:       95,
		Target:     110,
		RiskReward: 2,
		Confidence: 4,
		Strategy:   "momentum",
		Snapshot:   model.Snapshot{ATR: 2.5},
	}
}

func shortSignal() *model.Signal {
	s := longSignal()
	s.ID = "t2"
	s.Direction = model.Short
	s.Stop = 105
	s.Target = 90
	return s
}

func collect(tr *Tracker) *[]Event {
	evs := &[]Event{}
	tr.OnEvent = func(ev Event) { *evs = append(*evs, ev) }
	return evs
}

func types(evs []Event) []EventType {
	out := make([]EventType, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

func TestTargetHitRealizesOriginalRisk(t *testing.T) {
	fc := &fakeClearer{}
	tr := New(DefaultConfig(), fc)
	evs := collect(tr)
	t0 := time.Now()

	tr.Open(longSignal(), t0)
	for i, p := range []float64{100, 105, 110} {
		tr.UpdatePrice("BTCUSDT", p, t0.Add(time.Duration(i)*time.Minute), nil)
	}

	closed := tr.Closed()
	require.Len(t, closed, 1)
	assert.Equal(t, StateClosedTP, closed[0].State)
	assert.Equal(t, 110.0, closed[0].ExitPrice)
	assert.InDelta(t, 2.0, closed[0].RealizedRR, 1e-9)
	assert.Equal(t, []string{"BTCUSDT"}, fc.cleared)
	assert.Equal(t, []EventType{EventOpened, EventBreakeven, EventClosed}, types(*evs))
	assert.Empty(t, tr.OpenTrades("BTCUSDT"))
}

func TestStopHitBooksNegativeR(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	t0 := time.Now()
	tr.Open(longSignal(), t0)
	tr.UpdatePrice("BTCUSDT", 94.5, t0.Add(time.Minute), nil)

	closed := tr.Closed()
	require.Len(t, closed, 1)
	assert.Equal(t, StateClosedSL, closed[0].State)
	assert.Equal(t, 95.0, closed[0].ExitPrice)
	assert.InDelta(t, -1.0, closed[0].RealizedRR, 1e-9)
}

func TestShortLifecycleMirrors(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	t0 := time.Now()
	tr.Open(shortSignal(), t0)
	tr.UpdatePrice("BTCUSDT", 90, t0.Add(time.Minute), nil)

	closed := tr.Closed()
	require.Len(t, closed, 1)
	assert.Equal(t, StateClosedTP, closed[0].State)
	assert.InDelta(t, 2.0, closed[0].RealizedRR, 1e-9)
}

func TestBreakevenFiresOnceAndProtects(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	evs := collect(tr)
	t0 := time.Now()
	tr.Open(longSignal(), t0)

	// Halfway to target moves the stop to entry.
	tr.UpdatePrice("BTCUSDT", 105, t0.Add(time.Minute), nil)
	open := tr.OpenTrades("BTCUSDT")
	require.Len(t, open, 1)
	assert.Equal(t, 100.0, open[0].EffectiveStop)

	// Revisiting the trigger level does not re-fire.
	tr.UpdatePrice("BTCUSDT", 104, t0.Add(2*time.Minute), nil)
	tr.UpdatePrice("BTCUSDT", 106, t0.Add(3*time.Minute), nil)
	var count int
	for _, ev := range *evs {
		if ev.Type == EventBreakeven {
			count++
		}
	}
	assert.Equal(t, 1, count)

	// A pullback to entry now stops out flat against the moved stop.
	tr.UpdatePrice("BTCUSDT", 99.9, t0.Add(4*time.Minute), nil)
	closed := tr.Closed()
	require.Len(t, closed, 1)
	assert.Equal(t, StateClosedSL, closed[0].State)
	assert.InDelta(t, 0.0, closed[0].RealizedRR, 1e-9)
}

func TestStopWarningFiresOnceNearStop(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	evs := collect(tr)
	t0 := time.Now()
	tr.Open(longSignal(), t0)

	// Within 20% of the 5-point stop distance.
	tr.UpdatePrice("BTCUSDT", 95.8, t0.Add(time.Minute), nil)
	tr.UpdatePrice("BTCUSDT", 95.9, t0.Add(2*time.Minute), nil)

	var count int
	for _, ev := range *evs {
		if ev.Type == EventStopWarning {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Len(t, tr.OpenTrades("BTCUSDT"), 1)
}

func TestTargetExtensionGates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BreakevenProgress = 2 // keep breakeven out of the way
	tr := New(cfg, nil)
	evs := collect(tr)
	t0 := time.Now()
	tr.Open(longSignal(), t0)

	strong := &model.TickContext{RSI: 62, PrevRSI: 58, TrendStrength: 30, VolumeRatio: 1.4}

	// Outside the progress window: nothing fires.
	tr.UpdatePrice("BTCUSDT", 105, t0.Add(time.Minute), strong)
	// Momentum fading inside the window: nothing fires.
	tired := &model.TickContext{RSI: 72, PrevRSI: 74, TrendStrength: 30, VolumeRatio: 1.4}
	tr.UpdatePrice("BTCUSDT", 108.5, t0.Add(2*time.Minute), tired)
	assert.NotContains(t, types(*evs), EventTargetExtended)

	// All gates aligned at 85% progress: target stretches by one ATR.
	tr.UpdatePrice("BTCUSDT", 108.5, t0.Add(3*time.Minute), strong)
	open := tr.OpenTrades("BTCUSDT")
	require.Len(t, open, 1)
	assert.True(t, open[0].Extended)
	assert.InDelta(t, 112.5, open[0].EffectiveTarget, 1e-9)

	// One-shot: no second extension.
	tr.UpdatePrice("BTCUSDT", 111, t0.Add(4*time.Minute), strong)
	var count int
	for _, ev := range *evs {
		if ev.Type == EventTargetExtended {
			count++
		}
	}
	assert.Equal(t, 1, count)

	// Close happens at the extended target, with R:R off the original stop.
	tr.UpdatePrice("BTCUSDT", 112.6, t0.Add(5*time.Minute), nil)
	closed := tr.Closed()
	require.Len(t, closed, 1)
	assert.Equal(t, StateClosedTP, closed[0].State)
	assert.InDelta(t, 2.5, closed[0].RealizedRR, 1e-9)
}

func TestReversalAdvisoryGating(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BreakevenProgress = 2 // keep the advisory enabled
	tr := New(cfg, nil)
	evs := collect(tr)
	t0 := time.Now()
	tr.Open(longSignal(), t0)

	turn := &model.TickContext{RSI: 71, PrevRSI: 75, TrendStrength: 30, VolumeRatio: 1.2}

	// Build a peak at +4, then give most of it back.
	tr.UpdatePrice("BTCUSDT", 104, t0.Add(time.Minute), nil)

	// Inside the grace period: silent even with confirmation.
	tr.UpdatePrice("BTCUSDT", 101, t0.Add(2*time.Minute), turn)
	assert.NotContains(t, types(*evs), EventReversalAdvisory)

	// Past grace but under water: silent.
	tr.UpdatePrice("BTCUSDT", 99.5, t0.Add(10*time.Minute), turn)
	assert.NotContains(t, types(*evs), EventReversalAdvisory)

	// Past grace, in profit, 75% giveback, RSI rolling over: fires.
	tr.UpdatePrice("BTCUSDT", 101, t0.Add(11*time.Minute), turn)
	assert.Contains(t, types(*evs), EventReversalAdvisory)

	// Cooldown suppresses an immediate repeat.
	tr.UpdatePrice("BTCUSDT", 101, t0.Add(12*time.Minute), turn)
	var count int
	for _, ev := range *evs {
		if ev.Type == EventReversalAdvisory {
			count++
		}
	}
	assert.Equal(t, 1, count)

	// After the cooldown it may fire again.
	tr.UpdatePrice("BTCUSDT", 101, t0.Add(25*time.Minute), turn)
	count = 0
	for _, ev := range *evs {
		if ev.Type == EventReversalAdvisory {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestBreakevenDisablesReversal(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	evs := collect(tr)
	t0 := time.Now()
	tr.Open(longSignal(), t0)

	// Trigger breakeven, then present a textbook reversal.
	tr.UpdatePrice("BTCUSDT", 106, t0.Add(time.Minute), nil)
	turn := &model.TickContext{RSI: 71, PrevRSI: 75, TrendStrength: 30, VolumeRatio: 1.2}
	tr.UpdatePrice("BTCUSDT", 101, t0.Add(15*time.Minute), turn)

	assert.NotContains(t, types(*evs), EventReversalAdvisory)
}

func TestStatsSummarizeClosedTrades(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	t0 := time.Now()

	tr.Open(longSignal(), t0)
	tr.UpdatePrice("BTCUSDT", 110, t0.Add(time.Minute), nil)

	loser := longSignal()
	loser.ID = "t3"
	loser.Symbol = "ETHUSDT"
	loser.Strategy = "pullback"
	tr.Open(loser, t0)
	tr.UpdatePrice("ETHUSDT", 94, t0.Add(time.Minute), nil)

	s := tr.Stats()
	assert.Equal(t, 2, s.Closed)
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 50.0, s.WinRatePct, 1e-9)
	assert.InDelta(t, 1.0, s.CumulativeRR, 1e-9)
	assert.InDelta(t, 0.5, s.AvgRR, 1e-9)
	assert.Equal(t, 1, s.PerStrategy["momentum"].Wins)
	assert.Equal(t, 1, s.PerStrategy["pullback"].Closed)
}

func TestUpdateIgnoresUnknownSymbol(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	tr.UpdatePrice("NOPE", 1, time.Now(), nil)
	assert.Empty(t, tr.Closed())
}
