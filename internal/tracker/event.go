package tracker

import (
	"time"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

// EventType names a lifecycle notification.
type EventType string

const (
	EventOpened           EventType = "opened"
	EventBreakeven        EventType = "breakeven"
	EventStopWarning      EventType = "stop_warning"
	EventTargetExtended   EventType = "target_extended"
	EventReversalAdvisory EventType = "reversal_advisory"
	EventClosed           EventType = "closed"
)

// Event is emitted by the Tracker on every lifecycle transition and
// advisory. It carries enough to format a notification without touching
// the live Trade.
type Event struct {
	Type      EventType
	TradeID   string
	Symbol    string
	Timeframe model.Timeframe
	Direction model.Direction
	Strategy  string
	Price     float64
	TS        time.Time

	// Mutated levels, valid for breakeven and target_extended.
	EffectiveStop   float64
	EffectiveTarget float64

	// Close details, valid for closed events.
	Outcome    State
	RealizedRR float64
}

func (t *Trade) event(typ EventType, price float64, ts time.Time) Event {
	return Event{
		Type:            typ,
		TradeID:         t.ID,
		Symbol:          t.Signal.Symbol,
		Timeframe:       t.Signal.Timeframe,
		Direction:       t.Signal.Direction,
		Strategy:        t.Signal.Strategy,
		Price:           price,
		TS:              ts,
		EffectiveStop:   t.EffectiveStop,
		EffectiveTarget: t.EffectiveTarget,
		Outcome:         t.State,
		RealizedRR:      t.RealizedRR,
	}
}
