package scanner

import (
	"context"
	"log"
	"time"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
	"github.com/predeshen/telegramscalperbot-sub000/pkg/marketfeed"
)

// drainInterval bounds how long a tick can sit in the ring while the
// consumer is idle.
const drainInterval = 5 * time.Millisecond

// startStream connects the websocket tick stream when one is configured.
// Ticks land in the SPSC ring from the read goroutine and are drained into
// the tracker by drainTicks, keeping the socket reader free of lifecycle
// work. Without a stream URL the workers fall back to REST quote polling.
func (svc *Service) startStream(ctx context.Context) {
	cfg := svc.cfg
	if cfg.Feed.StreamURL == "" {
		log.Println("[scanner] no stream URL configured, polling quotes over REST")
		return
	}

	if err := svc.client.Login(ctx); err != nil {
		log.Printf("[scanner] WARNING: feed login failed: %v (falling back to REST polling)", err)
		return
	}

	stream, err := marketfeed.NewStream(cfg.Feed.StreamURL, cfg.Feed.APIKey, svc.client.FeedToken(), cfg.Scanner.Symbols)
	if err != nil {
		log.Printf("[scanner] WARNING: stream setup failed: %v (falling back to REST polling)", err)
		return
	}
	stream.OnTick = func(t model.Tick) {
		if !svc.ring.Push(t) {
			svc.prom.TickRingOverflow.Inc()
		}
	}

	svc.streaming = true
	svc.health.SetStreamConnected(true)

	go func() {
		if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[scanner] stream terminated: %v", err)
		}
		svc.health.SetStreamConnected(false)
	}()
	go svc.drainTicks(ctx)
}

// drainTicks is the single consumer of the tick ring. Each tick updates
// every open trade on its symbol with the worker's latest oscillator
// context.
func (svc *Service) drainTicks(ctx context.Context) {
	timer := time.NewTicker(drainInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			for {
				t, ok := svc.ring.Pop()
				if !ok {
					break
				}
				svc.health.SetLastTickTime(t.TS)
				var tctx *model.TickContext
				if w := svc.workers[t.Symbol]; w != nil {
					tctx = w.context()
				}
				svc.tracker.UpdatePrice(t.Symbol, t.Price, t.TS, tctx)
			}
		}
	}
}
