package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
	"github.com/predeshen/telegramscalperbot-sub000/internal/tracker"
)

func sampleSignal() *model.Signal {
	return &model.Signal{
		ID:         "s1",
		TS:         time.Now(),
		Symbol:     "BTCUSDT",
		Timeframe:  model.TF5m,
		Direction:  model.Long,
		Entry:      64250.5,
		Stop:       64100,
		Target:     64550,
		RiskReward: 1.99,
		Confidence: 4,
		Strategy:   "momentum",
		Snapshot:   model.Snapshot{RSI: 58.2, ADX: 27.1, VolumeRatio: 2.3},
	}
}

func TestFormatSignalCard(t *testing.T) {
	a := FormatSignal(sampleSignal())
	assert.Equal(t, AlertInfo, a.Level)
	assert.Contains(t, a.Title, "BTCUSDT")
	assert.Contains(t, a.Message, "Entry:  64250.5")
	assert.Contains(t, a.Message, "Stop:   64100")
	assert.Contains(t, a.Message, "R:R 1.99")
	assert.Contains(t, a.Message, "Confidence 4/5")
	assert.Contains(t, a.Message, "RSI 58.2")
	assert.Contains(t, a.Message, "Vol 2.30x")
}

func TestFormatEventLevels(t *testing.T) {
	base := tracker.Event{
		Symbol:    "BTCUSDT",
		Timeframe: model.TF5m,
		Direction: model.Long,
		Price:     64400,
	}

	ev := base
	ev.Type = tracker.EventStopWarning
	assert.Equal(t, AlertWarning, FormatEvent(ev).Level)

	ev = base
	ev.Type = tracker.EventClosed
	ev.Outcome = tracker.StateClosedTP
	ev.RealizedRR = 2.0
	a := FormatEvent(ev)
	assert.Equal(t, AlertInfo, a.Level)
	assert.Contains(t, a.Title, "Target hit")
	assert.Contains(t, a.Message, "2.00R")

	ev.Outcome = tracker.StateClosedSL
	ev.RealizedRR = -1.0
	a = FormatEvent(ev)
	assert.Equal(t, AlertCritical, a.Level)
	assert.Contains(t, a.Title, "Stopped out")
}

func TestFmtPriceTrimsZeros(t *testing.T) {
	assert.Equal(t, "64100", fmtPrice(64100))
	assert.Equal(t, "0.000015", fmtPrice(0.000015))
	assert.Equal(t, "1.5", fmtPrice(1.5))
}

type captureNotifier struct {
	mu     sync.Mutex
	alerts []Alert
}

func (c *captureNotifier) Send(_ context.Context, a Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
	return nil
}

func (c *captureNotifier) snapshot() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Alert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := &captureNotifier{}
	d := NewDispatcher([]Notifier{sink}, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	d.Signal(sampleSignal())
	d.Event(tracker.Event{Type: tracker.EventBreakeven, Symbol: "BTCUSDT", Timeframe: model.TF5m, Direction: model.Long, Price: 64400, EffectiveStop: 64250.5})

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	alerts := sink.snapshot()
	assert.Contains(t, alerts[0].Title, "Signal")
	assert.Contains(t, alerts[1].Title, "Breakeven")
}
