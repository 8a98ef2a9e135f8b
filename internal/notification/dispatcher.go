package notification

import (
	"context"
	"log"
	"time"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
	"github.com/predeshen/telegramscalperbot-sub000/internal/tracker"
)

// Dispatcher fans alerts out to every configured backend. Producers hand
// off over buffered channels so the hot path never blocks on delivery;
// a full channel drops the alert with a log line.
type Dispatcher struct {
	notifiers []Notifier
	signals   chan *model.Signal
	events    chan tracker.Event
	timeout   time.Duration
}

// NewDispatcher creates a dispatcher over the given backends.
func NewDispatcher(notifiers []Notifier, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		notifiers: notifiers,
		signals:   make(chan *model.Signal, buffer),
		events:    make(chan tracker.Event, buffer),
		timeout:   15 * time.Second,
	}
}

// Signal queues an admitted signal for delivery. Never blocks.
func (d *Dispatcher) Signal(sig *model.Signal) {
	select {
	case d.signals <- sig:
	default:
		log.Printf("[dispatch] signal channel full, dropping %s %s", sig.Symbol, sig.Timeframe)
	}
}

// Event queues a trade lifecycle event for delivery. Never blocks, so it
// is safe as a tracker OnEvent hook.
func (d *Dispatcher) Event(ev tracker.Event) {
	select {
	case d.events <- ev:
	default:
		log.Printf("[dispatch] event channel full, dropping %s %s", ev.Type, ev.Symbol)
	}
}

// Run consumes queued alerts and delivers them in order.
// Blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-d.signals:
			d.deliver(ctx, FormatSignal(sig))
		case ev := <-d.events:
			d.deliver(ctx, FormatEvent(ev))
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, alert Alert) {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	for _, n := range d.notifiers {
		if err := n.Send(sendCtx, alert); err != nil {
			log.Printf("[dispatch] delivery failed: %v", err)
		}
	}
}
