// Package scanner is the top-level orchestrator: it wires the market feed,
// candle cache, indicator pipeline, detector, filter, tracker, notifiers
// and Redis publishing together, and runs one polling worker per symbol.
package scanner

import (
	"context"
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/predeshen/telegramscalperbot-sub000/config"
	"github.com/predeshen/telegramscalperbot-sub000/internal/detector"
	"github.com/predeshen/telegramscalperbot-sub000/internal/filter"
	"github.com/predeshen/telegramscalperbot-sub000/internal/markethours"
	"github.com/predeshen/telegramscalperbot-sub000/internal/metrics"
	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
	"github.com/predeshen/telegramscalperbot-sub000/internal/notification"
	"github.com/predeshen/telegramscalperbot-sub000/internal/ringbuf"
	redisstore "github.com/predeshen/telegramscalperbot-sub000/internal/store/redis"
	sqlitestore "github.com/predeshen/telegramscalperbot-sub000/internal/store/sqlite"
	"github.com/predeshen/telegramscalperbot-sub000/internal/strategy"
	"github.com/predeshen/telegramscalperbot-sub000/internal/tracker"
	"github.com/predeshen/telegramscalperbot-sub000/pkg/marketfeed"
)

// Service wires all scanner subsystems, manages lifecycle, and
// coordinates goroutines. One Service scans every configured symbol.
type Service struct {
	cfg *config.Config

	client   *marketfeed.Client
	cache    *sqlitestore.Cache
	redisSrc *redisstore.Source
	pub      *redisstore.Publisher
	breaker  *redisstore.CircuitBreaker
	buffered *redisstore.BufferedPublisher

	det      *detector.Detector
	filter   *filter.Filter
	tracker  *tracker.Tracker
	dispatch *notification.Dispatcher
	schedule *markethours.Schedule

	prom   *metrics.Metrics
	health *metrics.HealthStatus
	msrv   *metrics.Server

	ring      *ringbuf.Ring
	streaming bool

	cacheCh chan sqlitestore.Cached
	evCh    chan tracker.Event

	workers map[string]*Worker
}

// New builds a Service from the given configuration. Redis and SQLite are
// optional at startup: a failed connection degrades to local-only operation
// with a logged warning rather than refusing to scan.
func New(cfg *config.Config) (*Service, error) {
	return newService(cfg, metrics.New())
}

func newService(cfg *config.Config, prom *metrics.Metrics) (*Service, error) {
	svc := &Service{
		cfg:     cfg,
		prom:    prom,
		health:  metrics.NewHealthStatus(cfg.Scanner.Symbols),
		client:  marketfeed.NewClient(cfg.Feed),
		ring:    ringbuf.New(cfg.Scanner.TickRingSize),
		cacheCh: make(chan sqlitestore.Cached, 4096),
		evCh:    make(chan tracker.Event, 256),
		workers: make(map[string]*Worker),
	}

	schedule, err := markethours.New(cfg.Market)
	if err != nil {
		return nil, err
	}
	svc.schedule = schedule

	// ---- Open SQLite candle cache ----
	os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755)
	svc.cache, err = sqlitestore.New(cfg.SQLite)
	if err != nil {
		log.Printf("[scanner] WARNING: sqlite cache init failed: %v (continuing without offline fallback)", err)
		svc.cache = nil
	}

	// ---- Connect to Redis ----
	svc.pub, err = redisstore.NewPublisher(cfg.Redis)
	if err != nil {
		log.Printf("[scanner] WARNING: redis connect failed: %v (continuing without stream publishing)", err)
		svc.pub = nil
	} else {
		svc.breaker = redisstore.NewCircuitBreaker(3, 30*time.Second)
		svc.breaker.OnStateChange = func(from, to redisstore.State) {
			svc.prom.RedisCircuitBreakerState.Set(stateGauge(to))
			if to == redisstore.StateOpen {
				svc.prom.RedisCircuitBreakerTrips.Inc()
			}
		}
		svc.buffered = redisstore.NewBufferedPublisher(context.Background(), svc.pub, svc.breaker, 0)
		svc.buffered.OnBuffer = func() { svc.prom.RedisBufferedPublishes.Inc() }
		svc.redisSrc = redisstore.NewSource(svc.pub)
	}

	// ---- Signal pipeline ----
	rules := strategy.DefaultRules(cfg.Strategies)
	svc.det = detector.New(rules, cfg.Detector)
	svc.filter = filter.New(cfg.Filter)
	svc.filter.OnSuppress = func(reason filter.Reason) {
		svc.prom.SignalsSuppressed.WithLabelValues(string(reason)).Inc()
	}
	svc.tracker = tracker.New(cfg.Tracker, svc.filter)
	svc.tracker.OnEvent = svc.onEvent

	// ---- Notifiers ----
	notifiers := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.Notify.TelegramBotToken != "" && cfg.Notify.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.Notify.TelegramBotToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.WebhookToken))
	}
	svc.dispatch = notification.NewDispatcher(notifiers, cfg.Notify.Buffer)

	svc.msrv = metrics.NewServer(cfg.MetricsAddr, svc.health)

	for _, sym := range cfg.Scanner.Symbols {
		svc.workers[sym] = newWorker(svc, sym)
	}
	return svc, nil
}

// Run starts all subsystems and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	cfg := svc.cfg
	log.Println("[scanner] starting signal scanner...")

	svc.msrv.Start()
	go svc.dispatch.Run(ctx)
	if svc.cache != nil {
		go svc.cache.Run(ctx, svc.cacheCh)
	}
	go svc.publishLoop(ctx)

	svc.startStream(ctx)
	svc.startLiveness(ctx)

	for _, w := range svc.workers {
		go w.run(ctx)
	}

	log.Println("[scanner] ╔═══════════════════════════════════════════════════╗")
	log.Println("[scanner] ║  Signal Scanner Active                            ║")
	log.Println("[scanner] ║                                                   ║")
	log.Println("[scanner] ║  [Feed] → [Indicators] → [Detector] → [Filter]    ║")
	log.Println("[scanner] ║         → [Tracker] → [Notify / Redis]            ║")
	log.Printf("[scanner] ║  Symbols: %-39v ║", cfg.Scanner.Symbols)
	log.Printf("[scanner] ║  TFs: %v, poll every %s", cfg.Scanner.Timeframes, cfg.Scanner.PollInterval)
	log.Println("[scanner] ╚═══════════════════════════════════════════════════╝")
	log.Println("[scanner] ✅ all systems running. Press Ctrl+C to stop.")

	<-ctx.Done()
	svc.shutdown()
	return nil
}

// onEvent fans a lifecycle event out to metrics, notifiers and the Redis
// publish loop. Called under the tracker's symbol lock, so the Redis write
// is handed off through a channel instead of performed inline.
func (svc *Service) onEvent(ev tracker.Event) {
	svc.prom.LifecycleEvents.WithLabelValues(string(ev.Type)).Inc()
	switch ev.Type {
	case tracker.EventOpened:
		svc.prom.TradesOpened.Inc()
		svc.prom.OpenTrades.Inc()
	case tracker.EventClosed:
		svc.prom.TradesClosed.WithLabelValues(string(ev.Outcome)).Inc()
		svc.prom.OpenTrades.Dec()
	}
	svc.dispatch.Event(ev)
	if svc.buffered != nil {
		select {
		case svc.evCh <- ev:
		default:
			log.Printf("[scanner] event publish queue full, dropping %s for %s", ev.Type, ev.Symbol)
		}
	}
}

// publishLoop drains lifecycle events to Redis through the circuit breaker.
func (svc *Service) publishLoop(ctx context.Context) {
	if svc.buffered == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-svc.evCh:
			if err := svc.buffered.PublishEvent(ev); err != nil {
				log.Printf("[scanner] event publish: %v", err)
			}
		}
	}
}

// admit runs a candidate through the filter and, when it survives, opens
// the trade and fans the signal out to every sink.
func (svc *Service) admit(ctx context.Context, sig *model.Signal, now time.Time) {
	ok, reason := svc.filter.Admit(sig)
	if !ok {
		if svc.pub != nil {
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			svc.pub.PublishSuppression(pctx, filter.Suppression{
				Symbol:    sig.Symbol,
				Timeframe: sig.Timeframe,
				Direction: sig.Direction,
				Entry:     sig.Entry,
				Reason:    reason,
				TS:        now,
			})
			cancel()
		}
		return
	}

	svc.prom.SignalsAdmitted.WithLabelValues(string(sig.Timeframe)).Inc()
	svc.tracker.Open(sig, now)
	svc.dispatch.Signal(sig)
	if svc.buffered != nil {
		if err := svc.buffered.PublishSignal(sig); err != nil {
			log.Printf("[scanner] signal publish: %v", err)
		}
	}
}

// startLiveness wires the health endpoint's periodic dependency probes.
// Unconfigured dependencies are skipped rather than reported unhealthy.
func (svc *Service) startLiveness(ctx context.Context) {
	var rdb *goredis.Client
	if svc.pub != nil {
		rdb = svc.pub.Client()
	}
	var db *sql.DB
	if svc.cache != nil {
		db = svc.cache.DB()
	}
	if rdb == nil && db == nil {
		return
	}
	svc.health.StartLivenessChecker(ctx, rdb, db, 15*time.Second)
}

func (svc *Service) shutdown() {
	log.Println("[scanner] shutdown signal received...")

	shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	svc.msrv.Stop(shutCtx)

	if svc.buffered != nil && svc.buffered.PendingCount() > 0 {
		log.Printf("[scanner] %d buffered publishes lost at shutdown", svc.buffered.PendingCount())
	}
	if svc.pub != nil {
		svc.pub.Close()
	}
	if svc.cache != nil {
		svc.cache.Close()
	}

	stats := svc.tracker.Stats()
	log.Printf("[scanner] session summary: %d closed, %.1f%% win rate, %.2f cumulative R",
		stats.Closed, stats.WinRatePct, stats.CumulativeRR)
	log.Println("[scanner] shutdown complete.")
}

// Tracker exposes the lifecycle tracker for status surfaces.
func (svc *Service) Tracker() *tracker.Tracker { return svc.tracker }

// Audit exposes the filter's suppression audit log.
func (svc *Service) Audit() *filter.AuditLog { return svc.filter.Audit() }

func stateGauge(s redisstore.State) float64 {
	switch s {
	case redisstore.StateOpen:
		return 1
	case redisstore.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
