// Package filter implements the cross-timeframe, cross-strategy signal
// arbiter. It is the second line of defense after the detector's self-dedup:
// every candidate passes timeframe-conflict, active-trade, duplicate, and
// proximity checks in that order, stopping at the first match. Suppressions
// are expected outcomes, recorded in a capped audit log, never errors.
package filter

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

// Reason identifies why a candidate was suppressed.
type Reason string

const (
	ReasonTimeframeConflict Reason = "timeframe_conflict"
	ReasonActiveTrade       Reason = "active_trade_conflict"
	ReasonDuplicate         Reason = "duplicate"
	ReasonProximity         Reason = "proximity"
)

// Config holds the filter windows and ordering.
type Config struct {
	ConflictWindowMin     int     `yaml:"conflict_window_min"`
	DuplicateWindowMin    int     `yaml:"duplicate_window_min"`
	DuplicateTolerancePct float64 `yaml:"duplicate_tolerance_pct"`
	ProximityWindowMin    int     `yaml:"proximity_window_min"`
	HistoryCap            int     `yaml:"history_cap"`
	AuditCap              int     `yaml:"audit_cap"`

	// TimeframePriority lists timeframes highest-rank first. A signal on an
	// earlier timeframe outranks an opposing signal on a later one.
	TimeframePriority []model.Timeframe `yaml:"timeframe_priority"`
}

// DefaultConfig returns the default windows and the standard timeframe
// ordering. Thresholds vary per asset class; deployments tune them in config.
func DefaultConfig() Config {
	return Config{
		ConflictWindowMin:     60,
		DuplicateWindowMin:    30,
		DuplicateTolerancePct: 0.2,
		ProximityWindowMin:    10,
		HistoryCap:            100,
		AuditCap:              500,
		TimeframePriority: []model.Timeframe{
			model.TF1d, model.TF4h, model.TF1h, model.TF15m, model.TF5m, model.TF1m,
		},
	}
}

// symbolState is the per-symbol shared state: recent signal history and the
// active-trade pointer, guarded by its own lock.
type symbolState struct {
	mu      sync.Mutex
	history *history
	active  *model.Signal
}

// Filter arbitrates candidates across timeframes and strategies for each
// symbol. All public operations are serialized at per-symbol granularity.
type Filter struct {
	cfg   Config
	prio  map[model.Timeframe]int // higher value = higher rank
	audit *AuditLog

	mu      sync.RWMutex
	symbols map[string]*symbolState

	// OnSuppress, if set, is called per suppression (metrics hook).
	OnSuppress func(Reason)
}

// New creates a filter from the given config.
func New(cfg Config) *Filter {
	if len(cfg.TimeframePriority) == 0 {
		cfg.TimeframePriority = DefaultConfig().TimeframePriority
	}
	prio := make(map[model.Timeframe]int, len(cfg.TimeframePriority))
	for i, tf := range cfg.TimeframePriority {
		prio[tf] = len(cfg.TimeframePriority) - i
	}
	return &Filter{
		cfg:     cfg,
		prio:    prio,
		audit:   NewAuditLog(cfg.AuditCap),
		symbols: make(map[string]*symbolState),
	}
}

func (f *Filter) state(symbol string) *symbolState {
	f.mu.RLock()
	st, ok := f.symbols[symbol]
	f.mu.RUnlock()
	if ok {
		return st
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok = f.symbols[symbol]; ok {
		return st
	}
	st = &symbolState{history: newHistory(f.cfg.HistoryCap)}
	f.symbols[symbol] = st
	return st
}

// Admit evaluates a candidate against the suppression checks in order and
// stops at the first match. Admitted signals join the symbol history and, if
// no trade is active, become the active-trade pointer.
func (f *Filter) Admit(sig *model.Signal) (bool, Reason) {
	st := f.state(sig.Symbol)
	st.mu.Lock()
	defer st.mu.Unlock()

	if reason, ok := f.check(st, sig); !ok {
		f.suppress(sig, reason)
		return false, reason
	}

	st.history.append(sig)
	if st.active == nil {
		st.active = sig
		log.Printf("[filter] %s: %s %s/%s admitted, now active trade",
			sig.Symbol, sig.Direction, sig.Strategy, sig.Timeframe)
	} else {
		log.Printf("[filter] %s: %s %s/%s admitted alongside active trade",
			sig.Symbol, sig.Direction, sig.Strategy, sig.Timeframe)
	}
	return true, ""
}

func (f *Filter) check(st *symbolState, sig *model.Signal) (Reason, bool) {
	// 1. Timeframe conflict: an opposing signal of equal or higher rank
	// inside the conflict window suppresses the candidate. Equal rank voids
	// the earlier signal too (mutual suppression).
	conflictWin := time.Duration(f.cfg.ConflictWindowMin) * time.Minute
	var conflict *record
	var mutual bool
	st.history.within(sig.TS, conflictWin, func(r *record) bool {
		if !r.sig.Direction.Opposes(sig.Direction) {
			return true
		}
		rRank := f.prio[r.sig.Timeframe]
		cRank := f.prio[sig.Timeframe]
		if rRank > cRank {
			conflict = r
			mutual = false
			return false
		}
		if rRank == cRank {
			conflict = r
			mutual = true
			return false
		}
		return true
	})
	if conflict != nil {
		if mutual {
			conflict.suppressed = true
			f.suppress(conflict.sig, ReasonTimeframeConflict)
		}
		log.Printf("[filter] %s: %s on %s suppressed by opposing %s on %s (conflict window)",
			sig.Symbol, sig.Direction, sig.Timeframe, conflict.sig.Direction, conflict.sig.Timeframe)
		return ReasonTimeframeConflict, false
	}

	// 2. Active-trade conflict.
	if st.active != nil && st.active.Direction.Opposes(sig.Direction) {
		return ReasonActiveTrade, false
	}

	// 3. Duplicate: same direction and timeframe, entry within tolerance,
	// inside the duplicate window.
	dupWin := time.Duration(f.cfg.DuplicateWindowMin) * time.Minute
	duplicate := false
	st.history.within(sig.TS, dupWin, func(r *record) bool {
		if r.sig.Direction != sig.Direction || r.sig.Timeframe != sig.Timeframe {
			return true
		}
		if r.sig.Entry != 0 &&
			math.Abs(sig.Entry-r.sig.Entry)/r.sig.Entry*100.0 <= f.cfg.DuplicateTolerancePct {
			duplicate = true
			return false
		}
		return true
	})
	if duplicate {
		return ReasonDuplicate, false
	}

	// 4. Proximity: any same-direction signal inside the short proximity
	// window, regardless of timeframe or strategy.
	proxWin := time.Duration(f.cfg.ProximityWindowMin) * time.Minute
	near := false
	st.history.within(sig.TS, proxWin, func(r *record) bool {
		if r.sig.Direction == sig.Direction {
			near = true
			return false
		}
		return true
	})
	if near {
		return ReasonProximity, false
	}

	return "", true
}

func (f *Filter) suppress(sig *model.Signal, reason Reason) {
	f.audit.Push(Suppression{
		Symbol:    sig.Symbol,
		Timeframe: sig.Timeframe,
		Direction: sig.Direction,
		Entry:     sig.Entry,
		Reason:    reason,
		TS:        sig.TS,
	})
	if f.OnSuppress != nil {
		f.OnSuppress(reason)
	}
	log.Printf("[filter] %s: %s %s/%s suppressed: %s",
		sig.Symbol, sig.Direction, sig.Strategy, sig.Timeframe, reason)
}

// ActiveTrade returns the symbol's active-trade signal, or nil.
func (f *Filter) ActiveTrade(symbol string) *model.Signal {
	st := f.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.active
}

// ClearActive drops the active-trade pointer. Only the trade tracker calls
// this, on trade close.
func (f *Filter) ClearActive(symbol string) {
	st := f.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.active = nil
}

// Audit returns the suppression audit log.
func (f *Filter) Audit() *AuditLog {
	return f.audit
}
