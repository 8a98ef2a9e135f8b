package filter

import (
	"time"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

// record is one admitted (or mutually-suppressed) signal kept for dedup and
// conflict lookups.
type record struct {
	sig        *model.Signal
	suppressed bool // set when a later equal-rank opposing signal voids it
}

// history is a capacity-bounded, append-only ring of per-symbol signal
// records ordered by timestamp. Callers hold the owning symbolState lock.
type history struct {
	buf  []record
	cap  int
	pos  int
	full bool
}

func newHistory(capacity int) *history {
	if capacity <= 0 {
		capacity = 100
	}
	return &history{
		buf: make([]record, capacity),
		cap: capacity,
	}
}

func (h *history) append(sig *model.Signal) {
	h.buf[h.pos] = record{sig: sig}
	h.pos = (h.pos + 1) % h.cap
	if h.pos == 0 && !h.full {
		h.full = true
	}
}

func (h *history) len() int {
	if h.full {
		return h.cap
	}
	return h.pos
}

// within calls fn for every live record with TS inside [now-window, now],
// newest first. fn may mutate the record (mutual suppression).
func (h *history) within(now time.Time, window time.Duration, fn func(r *record) bool) {
	count := h.len()
	for i := 0; i < count; i++ {
		idx := (h.pos - 1 - i + h.cap*2) % h.cap
		r := &h.buf[idx]
		if r.sig == nil || r.suppressed {
			continue
		}
		age := now.Sub(r.sig.TS)
		if age < 0 || age > window {
			continue
		}
		if !fn(r) {
			return
		}
	}
}
