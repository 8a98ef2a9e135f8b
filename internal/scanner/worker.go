package scanner

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/predeshen/telegramscalperbot-sub000/internal/feed"
	"github.com/predeshen/telegramscalperbot-sub000/internal/indicator"
	"github.com/predeshen/telegramscalperbot-sub000/internal/logger"
	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
	sqlitestore "github.com/predeshen/telegramscalperbot-sub000/internal/store/sqlite"
)

// Worker runs the scan cycle for a single symbol: fetch candles on every
// configured timeframe, compute indicators, detect candidates and hand them
// to the service. A worker owns all per-symbol mutable state, so the scan
// path itself never takes a lock.
type Worker struct {
	svc    *Service
	symbol string
	tfs    []model.Timeframe

	resampler     *feed.Resampler
	lastTS        map[model.Timeframe]time.Time
	lastResampled time.Time

	mu   sync.Mutex
	tctx *model.TickContext

	loggedClosed bool
}

func newWorker(svc *Service, symbol string) *Worker {
	w := &Worker{
		svc:    svc,
		symbol: symbol,
		tfs:    svc.cfg.Scanner.Timeframes,
		lastTS: make(map[model.Timeframe]time.Time),
	}
	if len(w.tfs) > 1 {
		w.resampler = feed.NewResampler(w.tfs[1:])
		w.resampler.OnCandle = func(symbol string, tf model.Timeframe, c model.Candle) {
			w.persistOne(tf, c)
		}
	}
	return w
}

// run polls until the context is cancelled. The first cycle fires
// immediately so a restart does not wait out a full poll interval.
func (w *Worker) run(ctx context.Context) {
	ticker := time.NewTicker(w.svc.cfg.Scanner.PollInterval)
	defer ticker.Stop()

	w.cycle(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.cycle(ctx, now)
		}
	}
}

func (w *Worker) cycle(ctx context.Context, now time.Time) {
	if !w.svc.schedule.IsOpen(now) {
		w.svc.prom.MarketState.Set(0)
		if !w.loggedClosed {
			log.Printf("[scanner] %s: market closed, next open %s",
				w.symbol, w.svc.schedule.NextOpen(now).Format(time.RFC3339))
			w.loggedClosed = true
		}
		return
	}
	w.loggedClosed = false
	w.svc.prom.MarketState.Set(1)

	w.scan(ctx, now)

	if !w.svc.streaming {
		w.pollPrice(ctx)
	}
}

// scan runs one detection pass over every configured timeframe.
func (w *Worker) scan(ctx context.Context, now time.Time) {
	ctx = logger.WithScanID(ctx, logger.GenerateScanID(w.symbol, now))
	start := time.Now()
	w.svc.prom.ScanCycles.Inc()

	base, err := w.fetch(ctx, w.tfs[0])
	if err != nil {
		w.svc.prom.ScanErrors.Inc()
		log.Printf("[scanner] %s/%s: fetch: %v", w.symbol, w.tfs[0], err)
		return
	}
	w.persist(w.tfs[0], base)
	w.deriveHigher(base)

	for i, tf := range w.tfs {
		series := base
		if i > 0 {
			series, err = w.fetch(ctx, tf)
			if err != nil {
				// The feed cannot serve this timeframe right now; derive it
				// from the base series so the pass still covers it.
				series, err = feed.Resample(base, tf)
				if err != nil {
					w.svc.prom.ScanErrors.Inc()
					log.Printf("[scanner] %s/%s: resample fallback: %v", w.symbol, tf, err)
					continue
				}
			} else {
				w.persist(tf, series)
			}
		}

		frames, err := indicator.Compute(series, w.svc.cfg.Indicators)
		if err != nil {
			w.svc.prom.ScanErrors.Inc()
			log.Printf("[scanner] %s/%s: indicators: %v", w.symbol, tf, err)
			continue
		}
		if i == 0 {
			w.updateTickContext(frames)
		}

		sig := w.svc.det.Scan(series, frames)
		if sig == nil {
			continue
		}
		w.svc.prom.SignalsDetected.WithLabelValues(sig.Strategy, string(sig.Timeframe)).Inc()
		w.svc.admit(ctx, sig, now)
	}

	w.svc.prom.ScanDur.Observe(time.Since(start).Seconds())
}

// fetch pulls candles from the live feed, falling back to the Redis candle
// streams and then the SQLite cache when the feed is unavailable.
func (w *Worker) fetch(ctx context.Context, tf model.Timeframe) (*model.Series, error) {
	limit := w.svc.cfg.Scanner.CandleLimit

	start := time.Now()
	s, err := w.svc.client.Candles(ctx, w.symbol, tf, limit)
	w.svc.prom.FeedFetchDur.Observe(time.Since(start).Seconds())
	if err == nil {
		return s, nil
	}
	w.svc.prom.FeedErrors.Inc()

	if w.svc.redisSrc != nil {
		streamed, serr := w.svc.redisSrc.Candles(ctx, w.symbol, tf, limit)
		if serr == nil {
			log.Printf("[scanner] %s/%s: feed unavailable (%v), serving %d candles from redis",
				w.symbol, tf, err, len(streamed.Candles))
			return streamed, nil
		}
	}
	if w.svc.cache != nil {
		cached, cerr := w.svc.cache.Candles(ctx, w.symbol, tf, limit)
		if cerr == nil {
			log.Printf("[scanner] %s/%s: feed unavailable (%v), serving %d cached candles",
				w.symbol, tf, err, len(cached.Candles))
			return cached, nil
		}
	}
	return nil, err
}

// persist forwards candles the cache has not seen yet. The write-behind
// channel is drained by the cache's batching loop; a full channel drops
// the write rather than stalling the scan.
func (w *Worker) persist(tf model.Timeframe, s *model.Series) {
	if w.svc.cache == nil {
		return
	}
	last := w.lastTS[tf]
	for _, c := range s.Candles {
		if !c.TS.After(last) {
			continue
		}
		w.persistOne(tf, c)
		last = c.TS
	}
	w.lastTS[tf] = last
}

func (w *Worker) persistOne(tf model.Timeframe, c model.Candle) {
	if w.svc.cache == nil {
		return
	}
	select {
	case w.svc.cacheCh <- sqlitestore.Cached{Symbol: w.symbol, Timeframe: tf, Candle: c}:
	default:
		log.Printf("[scanner] %s/%s: cache queue full, dropping candle write", w.symbol, tf)
	}
}

// deriveHigher feeds new base candles through the incremental resampler so
// higher-timeframe candles land in the cache even when the feed only ever
// serves the base timeframe.
func (w *Worker) deriveHigher(base *model.Series) {
	if w.resampler == nil || w.svc.cache == nil {
		return
	}
	last := w.lastResampled
	for _, c := range base.Candles {
		if !c.TS.After(last) {
			continue
		}
		w.resampler.Add(w.symbol, c)
		last = c.TS
	}
	w.lastResampled = last
}

// updateTickContext snapshots the latest base-timeframe oscillator state for
// the tracker's extension and reversal heuristics. Warm-up frames leave the
// previous context in place.
func (w *Worker) updateTickContext(frames []indicator.Frame) {
	n := len(frames)
	if n < 2 {
		return
	}
	last, prev := frames[n-1], frames[n-2]
	if math.IsNaN(last.RSI) || math.IsNaN(prev.RSI) {
		return
	}
	tctx := &model.TickContext{
		RSI:         last.RSI,
		PrevRSI:     prev.RSI,
		VolumeRatio: last.VolumeRatio,
	}
	if !math.IsNaN(last.ADX) {
		tctx.TrendStrength = last.ADX
	}
	if math.IsNaN(tctx.VolumeRatio) {
		tctx.VolumeRatio = 0
	}

	w.mu.Lock()
	w.tctx = tctx
	w.mu.Unlock()
}

// context returns the most recent tick context, or nil before warm-up.
func (w *Worker) context() *model.TickContext {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tctx
}

// pollPrice drives the tracker from the REST quote endpoint when no
// websocket stream is configured.
func (w *Worker) pollPrice(ctx context.Context) {
	t, err := w.svc.client.LastPrice(ctx, w.symbol)
	if err != nil {
		w.svc.prom.FeedErrors.Inc()
		log.Printf("[scanner] %s: quote poll: %v", w.symbol, err)
		return
	}
	w.svc.health.SetLastTickTime(t.TS)
	w.svc.tracker.UpdatePrice(t.Symbol, t.Price, t.TS, w.context())
}
