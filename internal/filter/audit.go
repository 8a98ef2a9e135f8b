package filter

import (
	"sync"
	"time"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

// Suppression is one audit entry recorded for a rejected candidate.
type Suppression struct {
	Symbol    string          `json:"symbol"`
	Timeframe model.Timeframe `json:"timeframe"`
	Direction model.Direction `json:"direction"`
	Entry     float64         `json:"entry"`
	Reason    Reason          `json:"reason"`
	TS        time.Time       `json:"ts"`
}

// AuditLog is a fixed-size circular buffer of recent suppressions.
// Oldest entries are overwritten when full.
//
// Thread-safe for concurrent writes and reads.
type AuditLog struct {
	mu   sync.RWMutex
	buf  []Suppression
	cap  int
	pos  int // next write position
	full bool
}

// NewAuditLog creates an audit log with the given capacity.
func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = 500
	}
	return &AuditLog{
		buf: make([]Suppression, capacity),
		cap: capacity,
	}
}

// Push appends a suppression entry, overwriting the oldest when full.
func (a *AuditLog) Push(s Suppression) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.buf[a.pos] = s
	a.pos = (a.pos + 1) % a.cap
	if a.pos == 0 && !a.full {
		a.full = true
	}
}

// Recent returns up to n entries, newest first.
func (a *AuditLog) Recent(n int) []Suppression {
	a.mu.RLock()
	defer a.mu.RUnlock()

	count := a.len()
	if n > count {
		n = count
	}
	out := make([]Suppression, 0, n)
	for i := 0; i < n; i++ {
		idx := (a.pos - 1 - i + a.cap*2) % a.cap
		out = append(out, a.buf[idx])
	}
	return out
}

// Len returns the number of entries currently held.
func (a *AuditLog) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.len()
}

func (a *AuditLog) len() int {
	if a.full {
		return a.cap
	}
	return a.pos
}
