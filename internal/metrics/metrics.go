// Package metrics exposes Prometheus metrics and a health endpoint for
// the scanner.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the scanner.
type Metrics struct {
	ScanCycles prometheus.Counter
	ScanDur    prometheus.Histogram
	ScanErrors prometheus.Counter

	SignalsDetected   *prometheus.CounterVec // labels: strategy, timeframe
	SignalsSuppressed *prometheus.CounterVec // labels: reason
	SignalsAdmitted   *prometheus.CounterVec // labels: timeframe

	TradesOpened    prometheus.Counter
	TradesClosed    *prometheus.CounterVec // labels: outcome
	LifecycleEvents *prometheus.CounterVec // labels: type
	OpenTrades      prometheus.Gauge

	FeedFetchDur prometheus.Histogram
	FeedErrors   prometheus.Counter

	TickRingOverflow prometheus.Counter

	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisBufferedPublishes   prometheus.Counter
	SQLiteCommitDur          prometheus.Histogram

	MarketState prometheus.Gauge // 0=closed, 1=open
}

// New registers all scanner metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers all scanner metrics on reg. Tests pass a fresh
// registry so repeated construction never collides.
func NewWith(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScanCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_scan_cycles_total",
			Help: "Total completed scan cycles across all symbols",
		}),
		ScanDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_scan_duration_seconds",
			Help:    "Scan cycle latency per symbol",
			Buckets: prometheus.DefBuckets,
		}),
		ScanErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_scan_errors_total",
			Help: "Scan cycles aborted by fetch or compute errors",
		}),

		SignalsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_signals_detected_total",
			Help: "Signals emitted by the detector (by strategy and timeframe)",
		}, []string{"strategy", "timeframe"}),
		SignalsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_signals_suppressed_total",
			Help: "Signals rejected by the cross-timeframe filter (by reason)",
		}, []string{"reason"}),
		SignalsAdmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_signals_admitted_total",
			Help: "Signals that passed the filter (by timeframe)",
		}, []string{"timeframe"}),

		TradesOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_trades_opened_total",
			Help: "Trades opened from admitted signals",
		}),
		TradesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_trades_closed_total",
			Help: "Trades closed (by outcome)",
		}, []string{"outcome"}),
		LifecycleEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_lifecycle_events_total",
			Help: "Trade lifecycle events emitted (by type)",
		}, []string{"type"}),
		OpenTrades: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_open_trades",
			Help: "Currently open trades",
		}),

		FeedFetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_feed_fetch_duration_seconds",
			Help:    "Candle fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		FeedErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_feed_errors_total",
			Help: "Feed fetch failures",
		}),

		TickRingOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_tick_ring_overflow_total",
			Help: "Tick ring buffer push overflows (dropped ticks)",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisBufferedPublishes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_redis_buffered_publishes_total",
			Help: "Publishes buffered locally while the circuit breaker was open",
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),

		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_market_state",
			Help: "Market session state (0=closed, 1=open)",
		}),
	}

	reg.MustRegister(
		m.ScanCycles,
		m.ScanDur,
		m.ScanErrors,
		m.SignalsDetected,
		m.SignalsSuppressed,
		m.SignalsAdmitted,
		m.TradesOpened,
		m.TradesClosed,
		m.LifecycleEvents,
		m.OpenTrades,
		m.FeedFetchDur,
		m.FeedErrors,
		m.TickRingOverflow,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisBufferedPublishes,
		m.SQLiteCommitDur,
		m.MarketState,
	)

	return m
}

// HealthStatus represents the scanner's dependency health.
type HealthStatus struct {
	mu sync.RWMutex

	StreamConnected bool      `json:"stream_connected"`
	LastTickTime    time.Time `json:"last_tick_time"`
	RedisConnected  bool      `json:"redis_connected"`
	SQLiteOK        bool      `json:"sqlite_ok"`
	Symbols         []string  `json:"symbols"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status. Dependencies start out
// healthy so an unconfigured one never pins /healthz at degraded; the first
// probe corrects the flag for dependencies that are actually wired.
func NewHealthStatus(symbols []string) *HealthStatus {
	return &HealthStatus{
		StartedAt:      time.Now(),
		Symbols:        symbols,
		RedisConnected: true,
		SQLiteOK:       true,
	}
}

func (h *HealthStatus) SetStreamConnected(v bool) {
	h.mu.Lock()
	h.StreamConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the candle cache and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string   `json:"status"`
		Uptime          string   `json:"uptime"`
		StreamConnected bool     `json:"stream_connected"`
		LastTickTime    string   `json:"last_tick_time"`
		TickAge         string   `json:"tick_age"`
		RedisConnected  bool     `json:"redis_connected"`
		RedisLatencyMs  float64  `json:"redis_latency_ms"`
		SQLiteOK        bool     `json:"sqlite_ok"`
		SQLiteLatencyMs float64  `json:"sqlite_latency_ms"`
		Symbols         []string `json:"symbols"`
		LastCheckAt     string   `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		StreamConnected: h.StreamConnected,
		LastTickTime:    h.LastTickTime.Format(time.RFC3339),
		TickAge:         tickAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		Symbols:         h.Symbols,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
