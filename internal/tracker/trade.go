package tracker

import (
	"time"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

// State is a trade's lifecycle state. EXTENDED is not a separate state: an
// extended trade stays ACTIVE with Extended set and a mutated effective
// target.
type State string

const (
	StateActive   State = "ACTIVE"
	StateClosedTP State = "CLOSED_TP"
	StateClosedSL State = "CLOSED_SL"
)

// Trade is the live position record created 1:1 from an admitted signal.
// Only the Tracker creates and mutates trades; every mutation goes through
// its price-update entry point.
type Trade struct {
	ID       string
	Signal   *model.Signal
	OpenedAt time.Time

	State    State
	Extended bool

	// Effective levels: the stop moves to entry on breakeven, the target
	// stretches on extension. Realized R:R always uses the original stop
	// distance.
	EffectiveStop   float64
	EffectiveTarget float64

	// Running extremes since entry.
	Highest float64
	Lowest  float64

	// One-shot notification flags.
	breakevenFired bool
	stopWarned     bool
	extensionFired bool

	// Breakeven permanently disables the reversal advisory: the remaining
	// exposure is already risk-free.
	reversalDisabled bool

	// Last reversal advisory, to enforce the cooldown. Zero until first fire.
	lastAdvisory time.Time

	ClosedAt   time.Time
	ExitPrice  float64
	RealizedRR float64
}

// originalRisk returns the entry-to-original-stop distance.
func (t *Trade) originalRisk() float64 {
	d := t.Signal.Entry - t.Signal.Stop
	if d < 0 {
		d = -d
	}
	return d
}

// unrealized returns the current favorable move in price terms (negative
// when under water).
func (t *Trade) unrealized(price float64) float64 {
	if t.Signal.Direction == model.Long {
		return price - t.Signal.Entry
	}
	return t.Signal.Entry - price
}

// peakProfit returns the best favorable excursion since entry.
func (t *Trade) peakProfit() float64 {
	if t.Signal.Direction == model.Long {
		return t.Highest - t.Signal.Entry
	}
	return t.Signal.Entry - t.Lowest
}

// progress returns the fraction of the entry→effective-target distance
// covered at the given price. Negative values clamp to 0.
func (t *Trade) progress(price float64) float64 {
	span := t.EffectiveTarget - t.Signal.Entry
	if span == 0 {
		return 0
	}
	p := (price - t.Signal.Entry) / span
	if p < 0 {
		return 0
	}
	return p
}
