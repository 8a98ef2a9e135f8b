package redis

import (
	"context"
	"log"
	"sync"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
	"github.com/predeshen/telegramscalperbot-sub000/internal/tracker"
)

// pending is a publish that was buffered while the circuit was open.
type pending struct {
	signal *model.Signal
	event  *tracker.Event
}

// BufferedPublisher wraps a Publisher with a circuit breaker. While Redis
// is down, signals and events queue locally and replay once the breaker
// closes. Alerts still flow to notifiers; only the stream copy lags.
type BufferedPublisher struct {
	pub *Publisher
	cb  *CircuitBreaker
	ctx context.Context

	mu     sync.Mutex
	buffer []pending
	maxBuf int

	// Callbacks for metrics (optional).
	OnBuffer func()
	OnFlush  func(count int)
}

// NewBufferedPublisher wraps pub. maxBufferSize <= 0 defaults to 10000;
// beyond the cap the oldest pending publish is dropped.
func NewBufferedPublisher(ctx context.Context, pub *Publisher, cb *CircuitBreaker, maxBufferSize int) *BufferedPublisher {
	if maxBufferSize <= 0 {
		maxBufferSize = 10000
	}
	bp := &BufferedPublisher{
		pub:    pub,
		cb:     cb,
		ctx:    ctx,
		buffer: make([]pending, 0, 256),
		maxBuf: maxBufferSize,
	}

	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		if to == StateClosed {
			go bp.flush()
		}
	}

	return bp
}

// PublishSignal publishes through the breaker, buffering when open.
func (bp *BufferedPublisher) PublishSignal(sig *model.Signal) error {
	err := bp.cb.Execute(func() error {
		return bp.pub.PublishSignal(bp.ctx, sig)
	})
	if err == ErrCircuitOpen {
		bp.add(pending{signal: sig})
		return nil // buffered, not lost
	}
	return err
}

// PublishEvent publishes through the breaker, buffering when open.
func (bp *BufferedPublisher) PublishEvent(ev tracker.Event) error {
	err := bp.cb.Execute(func() error {
		return bp.pub.PublishEvent(bp.ctx, ev)
	})
	if err == ErrCircuitOpen {
		bp.add(pending{event: &ev})
		return nil
	}
	return err
}

func (bp *BufferedPublisher) add(p pending) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if len(bp.buffer) >= bp.maxBuf {
		// Buffer full, drop oldest
		bp.buffer = bp.buffer[1:]
	}
	bp.buffer = append(bp.buffer, p)

	if bp.OnBuffer != nil {
		bp.OnBuffer()
	}
}

// flush replays buffered publishes through the underlying publisher.
func (bp *BufferedPublisher) flush() {
	bp.mu.Lock()
	if len(bp.buffer) == 0 {
		bp.mu.Unlock()
		return
	}
	toFlush := bp.buffer
	bp.buffer = make([]pending, 0, 256)
	bp.mu.Unlock()

	for _, p := range toFlush {
		switch {
		case p.signal != nil:
			if err := bp.pub.PublishSignal(bp.ctx, p.signal); err != nil {
				log.Printf("[redis] flush signal: %v", err)
			}
		case p.event != nil:
			if err := bp.pub.PublishEvent(bp.ctx, *p.event); err != nil {
				log.Printf("[redis] flush event: %v", err)
			}
		}
	}

	log.Printf("[redis] flushed %d buffered publishes", len(toFlush))
	if bp.OnFlush != nil {
		bp.OnFlush(len(toFlush))
	}
}

// PendingCount returns the number of buffered publishes.
func (bp *BufferedPublisher) PendingCount() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.buffer)
}
