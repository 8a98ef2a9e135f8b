// Package detector implements the confluence signal detector: it runs the
// ordered strategy rule list over one indicator-augmented candle sequence
// and emits at most one candidate signal per cycle, deduplicated against its
// own recent emissions.
package detector

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/predeshen/telegramscalperbot-sub000/internal/indicator"
	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
	"github.com/predeshen/telegramscalperbot-sub000/internal/strategy"
	"github.com/predeshen/telegramscalperbot-sub000/pkg/id"
)

// Config holds the detector's self-dedup settings.
type Config struct {
	DedupWindowMin int     `yaml:"dedup_window_min"` // same-direction re-emission block window
	ReentryPct     float64 `yaml:"reentry_pct"`      // price move that overrides the block
	HistoryCap     int     `yaml:"history_cap"`      // emissions kept per (symbol, timeframe)
}

// DefaultConfig returns the default dedup settings.
func DefaultConfig() Config {
	return Config{
		DedupWindowMin: 30,
		ReentryPct:     0.5,
		HistoryCap:     50,
	}
}

type emission struct {
	dir   model.Direction
	price float64
	ts    time.Time
}

// Detector evaluates the registered rules in priority order and returns the
// first hit, after risk/reward screening and self-deduplication.
// Safe for concurrent use from per-symbol workers.
type Detector struct {
	mu      sync.Mutex
	rules   []strategy.Rule
	cfg     Config
	history map[string][]emission // "symbol|timeframe" → recent emissions
}

// New creates a detector over the given ordered rule list.
func New(rules []strategy.Rule, cfg Config) *Detector {
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = DefaultConfig().HistoryCap
	}
	return &Detector{
		rules:   rules,
		cfg:     cfg,
		history: make(map[string][]emission),
	}
}

// Scan decides whether the latest candle of the series is tradable.
// Returns the candidate signal, or nil when no rule fires, the candidate is
// arithmetically degenerate, or self-dedup blocks the emission. A nil result
// is ordinary control flow, never an error.
func (d *Detector) Scan(s *model.Series, frames []indicator.Frame) *model.Signal {
	if len(s.Candles) == 0 || len(frames) != len(s.Candles) {
		return nil
	}

	ctx := strategy.Context{
		Symbol:    s.Symbol,
		Timeframe: s.Timeframe,
		Candles:   s.Candles,
		Frames:    frames,
	}

	for _, rule := range d.rules {
		sig := rule.Evaluate(ctx)
		if sig == nil {
			continue
		}

		risk := math.Abs(sig.Entry - sig.Stop)
		if risk == 0 {
			// Zero-risk denominator: reject before the filter ever sees it.
			log.Printf("[detector] %s/%s: %s candidate rejected: zero stop distance",
				s.Symbol, s.Timeframe, rule.Name())
			return nil
		}
		sig.RiskReward = math.Abs(sig.Target-sig.Entry) / risk
		sig.ID = id.New()

		if err := sig.Validate(); err != nil {
			log.Printf("[detector] %s/%s: %s candidate invalid: %v",
				s.Symbol, s.Timeframe, rule.Name(), err)
			return nil
		}

		if d.blockedByDedup(sig) {
			return nil
		}
		d.record(sig)
		return sig
	}
	return nil
}

func historyKey(sig *model.Signal) string {
	return sig.Symbol + "|" + string(sig.Timeframe)
}

// blockedByDedup reports whether a same-direction emission inside the dedup
// window blocks this signal. A price move beyond ReentryPct from the prior
// emission overrides the block.
func (d *Detector) blockedByDedup(sig *model.Signal) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	window := time.Duration(d.cfg.DedupWindowMin) * time.Minute
	for _, e := range d.history[historyKey(sig)] {
		if e.dir != sig.Direction {
			continue
		}
		if sig.TS.Sub(e.ts) > window {
			continue
		}
		if e.price != 0 {
			movedPct := math.Abs(sig.Entry-e.price) / e.price * 100.0
			if movedPct > d.cfg.ReentryPct {
				continue
			}
		}
		log.Printf("[detector] %s/%s: %s %s blocked by self-dedup (prior emission %s ago)",
			sig.Symbol, sig.Timeframe, sig.Strategy, sig.Direction, sig.TS.Sub(e.ts))
		return true
	}
	return false
}

// record appends the emission and evicts aged or excess entries.
func (d *Detector) record(sig *model.Signal) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := historyKey(sig)
	window := time.Duration(d.cfg.DedupWindowMin) * time.Minute

	kept := d.history[key][:0]
	for _, e := range d.history[key] {
		if sig.TS.Sub(e.ts) <= window {
			kept = append(kept, e)
		}
	}
	kept = append(kept, emission{dir: sig.Direction, price: sig.Entry, ts: sig.TS})
	if len(kept) > d.cfg.HistoryCap {
		kept = kept[len(kept)-d.cfg.HistoryCap:]
	}
	d.history[key] = kept
}
