// Package tracker follows admitted signals through their life as open
// trades: target and stop hits, breakeven stop moves, stop-approach
// warnings, target extensions and momentum-reversal advisories.
package tracker

import (
	"log"
	"sync"
	"time"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

// Config holds the lifecycle thresholds. Progress values are fractions of
// the entry→target distance, percentages are of entry price or of peak
// profit as noted.
type Config struct {
	// BreakevenProgress is the fraction of the way to target at which the
	// effective stop moves to entry.
	BreakevenProgress float64 `yaml:"breakeven_progress"`

	// StopWarnFrac is the fraction of the original stop distance within
	// which a stop-approach warning fires.
	StopWarnFrac float64 `yaml:"stop_warn_frac"`

	// Target extension window and gates.
	ExtendMinProgress float64 `yaml:"extend_min_progress"`
	ExtendMaxProgress float64 `yaml:"extend_max_progress"`
	ExtendATRMult     float64 `yaml:"extend_atr_mult"`
	ExtendRSILong     float64 `yaml:"extend_rsi_long"`
	ExtendRSIShort    float64 `yaml:"extend_rsi_short"`
	TrendStrengthMin  float64 `yaml:"trend_strength_min"`

	// Reversal advisory gates.
	GracePeriodMin   int     `yaml:"grace_period_min"`
	MinPeakProfitPct float64 `yaml:"min_peak_profit_pct"`
	GivebackPct      float64 `yaml:"giveback_pct"`
	AdvisoryCooldown int     `yaml:"advisory_cooldown_min"`
	ReversalRSILong  float64 `yaml:"reversal_rsi_long"`
	ReversalRSIShort float64 `yaml:"reversal_rsi_short"`
}

// DefaultConfig returns thresholds tuned for intraday scalps.
func DefaultConfig() Config {
	return Config{
		BreakevenProgress: 0.5,
		StopWarnFrac:      0.2,
		ExtendMinProgress: 0.80,
		ExtendMaxProgress: 0.95,
		ExtendATRMult:     1.0,
		ExtendRSILong:     70,
		ExtendRSIShort:    30,
		TrendStrengthMin:  25,
		GracePeriodMin:    5,
		MinPeakProfitPct:  0.3,
		GivebackPct:       40,
		AdvisoryCooldown:  10,
		ReversalRSILong:   70,
		ReversalRSIShort:  30,
	}
}

// ActiveClearer releases the per-symbol active trade slot once the tracker
// closes the last open trade on that symbol. Satisfied by filter.Filter.
type ActiveClearer interface {
	ClearActive(symbol string)
}

type symbolTrades struct {
	mu   sync.Mutex
	open []*Trade
}

// Tracker owns every open trade. Price updates for different symbols run
// concurrently; all trades on one symbol are mutated under that symbol's
// lock, so each trade only ever sees one caller.
type Tracker struct {
	mu      sync.RWMutex
	symbols map[string]*symbolTrades

	closedMu sync.Mutex
	closed   []*Trade

	cfg     Config
	clearer ActiveClearer

	// OnEvent receives every lifecycle event. Called synchronously under
	// the symbol lock, so it must not block; hand off to a channel.
	OnEvent func(Event)
}

func New(cfg Config, clearer ActiveClearer) *Tracker {
	return &Tracker{
		symbols: make(map[string]*symbolTrades),
		cfg:     cfg,
		clearer: clearer,
	}
}

func (tr *Tracker) state(symbol string) *symbolTrades {
	tr.mu.RLock()
	st, ok := tr.symbols[symbol]
	tr.mu.RUnlock()
	if ok {
		return st
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if st, ok = tr.symbols[symbol]; ok {
		return st
	}
	st = &symbolTrades{}
	tr.symbols[symbol] = st
	return st
}

// Open creates an ACTIVE trade from an admitted signal and emits an opened
// event. The trade ID is the signal ID.
func (tr *Tracker) Open(sig *model.Signal, now time.Time) *Trade {
	t := &Trade{
		ID:              sig.ID,
		Signal:          sig,
		OpenedAt:        now,
		State:           StateActive,
		EffectiveStop:   sig.Stop,
		EffectiveTarget: sig.Target,
		Highest:         sig.Entry,
		Lowest:          sig.Entry,
	}
	st := tr.state(sig.Symbol)
	st.mu.Lock()
	st.open = append(st.open, t)
	st.mu.Unlock()
	log.Printf("[tracker] opened %s %s %s entry=%.4f stop=%.4f target=%.4f",
		sig.Symbol, sig.Timeframe, sig.Direction, sig.Entry, sig.Stop, sig.Target)
	tr.emit(t.event(EventOpened, sig.Entry, now))
	return t
}

// UpdatePrice runs the lifecycle checks for every open trade on symbol at
// the given price. tctx carries the latest indicator context; it may be
// nil, which skips the extension and reversal checks that need it. A close
// terminates that trade's evaluation for the update.
func (tr *Tracker) UpdatePrice(symbol string, price float64, now time.Time, tctx *model.TickContext) {
	st := tr.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()

	remaining := st.open[:0]
	for _, t := range st.open {
		if tr.step(t, price, now, tctx) {
			remaining = append(remaining, t)
			continue
		}
		tr.closedMu.Lock()
		tr.closed = append(tr.closed, t)
		tr.closedMu.Unlock()
	}
	st.open = remaining
	if len(st.open) == 0 && tr.clearer != nil {
		tr.clearer.ClearActive(symbol)
	}
}

// step applies one price update to one trade. Returns false once the trade
// is closed.
func (tr *Tracker) step(t *Trade, price float64, now time.Time, tctx *model.TickContext) bool {
	if price > t.Highest {
		t.Highest = price
	}
	if price < t.Lowest {
		t.Lowest = price
	}

	long := t.Signal.Direction == model.Long

	// Terminal checks first. Exit is booked at the level, not the
	// observed print, so a gap through both levels resolves at the stop.
	if long && price <= t.EffectiveStop || !long && price >= t.EffectiveStop {
		tr.close(t, t.EffectiveStop, StateClosedSL, now)
		return false
	}
	if long && price >= t.EffectiveTarget || !long && price <= t.EffectiveTarget {
		tr.close(t, t.EffectiveTarget, StateClosedTP, now)
		return false
	}

	if !t.breakevenFired && t.progress(price) >= tr.cfg.BreakevenProgress {
		t.breakevenFired = true
		t.reversalDisabled = true
		t.EffectiveStop = t.Signal.Entry
		log.Printf("[tracker] breakeven %s %s stop→entry %.4f", t.Signal.Symbol, t.Signal.Timeframe, t.EffectiveStop)
		tr.emit(t.event(EventBreakeven, price, now))
	}

	if !t.stopWarned {
		warn := tr.cfg.StopWarnFrac * t.originalRisk()
		if long && price-t.EffectiveStop <= warn || !long && t.EffectiveStop-price <= warn {
			t.stopWarned = true
			tr.emit(t.event(EventStopWarning, price, now))
		}
	}

	if tctx != nil {
		tr.maybeExtend(t, price, now, tctx)
		tr.maybeAdvise(t, price, now, tctx)
	}
	return true
}

func (tr *Tracker) maybeExtend(t *Trade, price float64, now time.Time, tctx *model.TickContext) {
	if t.extensionFired {
		return
	}
	p := t.progress(price)
	if p < tr.cfg.ExtendMinProgress || p > tr.cfg.ExtendMaxProgress {
		return
	}
	long := t.Signal.Direction == model.Long
	if long && (tctx.RSI >= tr.cfg.ExtendRSILong || tctx.RSI <= tctx.PrevRSI) {
		return
	}
	if !long && (tctx.RSI <= tr.cfg.ExtendRSIShort || tctx.RSI >= tctx.PrevRSI) {
		return
	}
	if tctx.TrendStrength <= tr.cfg.TrendStrengthMin || tctx.VolumeRatio < 1.0 {
		return
	}
	atr := t.Signal.Snapshot.ATR
	if atr <= 0 {
		return
	}
	t.extensionFired = true
	t.Extended = true
	if long {
		t.EffectiveTarget += tr.cfg.ExtendATRMult * atr
	} else {
		t.EffectiveTarget -= tr.cfg.ExtendATRMult * atr
	}
	log.Printf("[tracker] extended %s %s target→%.4f", t.Signal.Symbol, t.Signal.Timeframe, t.EffectiveTarget)
	tr.emit(t.event(EventTargetExtended, price, now))
}

func (tr *Tracker) maybeAdvise(t *Trade, price float64, now time.Time, tctx *model.TickContext) {
	if t.reversalDisabled {
		return
	}
	if now.Sub(t.OpenedAt) < time.Duration(tr.cfg.GracePeriodMin)*time.Minute {
		return
	}
	if !t.lastAdvisory.IsZero() && now.Sub(t.lastAdvisory) < time.Duration(tr.cfg.AdvisoryCooldown)*time.Minute {
		return
	}
	unreal := t.unrealized(price)
	if unreal <= 0 {
		return
	}
	peak := t.peakProfit()
	if peak <= 0 || peak/t.Signal.Entry*100 < tr.cfg.MinPeakProfitPct {
		return
	}
	giveback := (peak - unreal) / peak * 100
	if giveback < tr.cfg.GivebackPct {
		return
	}

	// Needs momentum confirmation: an RSI extreme rolling over, or volume
	// drying up past the halfway mark.
	long := t.Signal.Direction == model.Long
	rsiTurn := long && tctx.RSI >= tr.cfg.ReversalRSILong && tctx.RSI < tctx.PrevRSI ||
		!long && tctx.RSI <= tr.cfg.ReversalRSIShort && tctx.RSI > tctx.PrevRSI
	volFade := tctx.VolumeRatio < 1.0 && t.progress(price) >= 0.5
	if !rsiTurn && !volFade {
		return
	}
	t.lastAdvisory = now
	tr.emit(t.event(EventReversalAdvisory, price, now))
}

func (tr *Tracker) close(t *Trade, exit float64, s State, now time.Time) {
	t.State = s
	t.ClosedAt = now
	t.ExitPrice = exit
	risk := t.originalRisk()
	if risk > 0 {
		t.RealizedRR = t.unrealized(exit) / risk
	}
	log.Printf("[tracker] closed %s %s %s exit=%.4f rr=%.2f",
		t.Signal.Symbol, t.Signal.Timeframe, s, exit, t.RealizedRR)
	tr.emit(t.event(EventClosed, exit, now))
}

func (tr *Tracker) emit(ev Event) {
	if tr.OnEvent != nil {
		tr.OnEvent(ev)
	}
}

// OpenTrades returns a snapshot of the open trades for symbol.
func (tr *Tracker) OpenTrades(symbol string) []*Trade {
	st := tr.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]*Trade, len(st.open))
	copy(out, st.open)
	return out
}

// Closed returns the closed trade history, oldest first.
func (tr *Tracker) Closed() []*Trade {
	tr.closedMu.Lock()
	defer tr.closedMu.Unlock()
	out := make([]*Trade, len(tr.closed))
	copy(out, tr.closed)
	return out
}
