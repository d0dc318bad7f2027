package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the decision engine.
type Metrics struct {
	TicksTotal    *prometheus.CounterVec // labels: result=accepted|rejected
	DroppedTicks  prometheus.Counter
	Spread        prometheus.Gauge
	FeedReconnect prometheus.Counter

	CandlesTotal   prometheus.Counter
	CandlesEvicted prometheus.Counter

	IndicatorDur      *prometheus.HistogramVec // labels: indicator
	IndicatorFailures *prometheus.CounterVec   // labels: indicator
	EvaluationDur     prometheus.Histogram

	SignalsTotal     *prometheus.CounterVec // labels: trend
	SignalDowngrades *prometheus.CounterVec // labels: trend

	OrdersOpened *prometheus.CounterVec // labels: side
	OrdersClosed *prometheus.CounterVec // labels: status
	OpenSkipped  *prometheus.CounterVec // labels: reason
	OpenOrders   prometheus.Gauge
	Balance      prometheus.Gauge

	SinkErrors     *prometheus.CounterVec // labels: sink
	SQLiteWriteDur prometheus.Histogram
	RedisWriteDur  prometheus.Histogram

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter

	CycleDur prometheus.Histogram
}

// New creates all metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxengine_ticks_total",
			Help: "Quotes submitted, by result",
		}, []string{"result"}),
		DroppedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxengine_dropped_ticks_total",
			Help: "Ticks dropped by the candle aggregator (older bucket)",
		}),
		Spread: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fxengine_spread_points",
			Help: "Spread of the current tick in points",
		}),
		FeedReconnect: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxengine_feed_reconnects_total",
			Help: "Quote feed reconnection attempts",
		}),

		CandlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxengine_candles_closed_total",
			Help: "Candles frozen into history",
		}),
		CandlesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxengine_candles_evicted_total",
			Help: "Closed candles evicted from the history window",
		}),

		IndicatorDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fxengine_indicator_duration_seconds",
			Help:    "Per-indicator vote latency",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"indicator"}),
		IndicatorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxengine_indicator_failures_total",
			Help: "Indicator tasks that failed or timed out",
		}, []string{"indicator"}),
		EvaluationDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fxengine_evaluation_duration_seconds",
			Help:    "Fan-out/fan-in latency of a full indicator evaluation",
			Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),

		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxengine_signals_total",
			Help: "Consensus signals emitted, by trend",
		}, []string{"trend"}),
		SignalDowngrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxengine_signal_downgrades_total",
			Help: "Signals downgraded to NEUTRAL by the performance gate, by original trend",
		}, []string{"trend"}),

		OrdersOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxengine_orders_opened_total",
			Help: "Orders opened, by side",
		}, []string{"side"}),
		OrdersClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxengine_orders_closed_total",
			Help: "Orders closed, by terminal status",
		}, []string{"status"}),
		OpenSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxengine_open_skipped_total",
			Help: "Cycles that did not open an order, by gate",
		}, []string{"reason"}),
		OpenOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fxengine_open_orders",
			Help: "Currently OPEN orders",
		}),
		Balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fxengine_balance_points",
			Help: "Reconciled account balance in points",
		}),

		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxengine_sink_errors_total",
			Help: "Failed sink writes, by sink",
		}, []string{"sink"}),
		SQLiteWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fxengine_sqlite_write_duration_seconds",
			Help:    "SQLite journal transaction latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fxengine_redis_write_duration_seconds",
			Help:    "Redis publish latency",
			Buckets: prometheus.DefBuckets,
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fxengine_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxengine_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),

		CycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fxengine_cycle_duration_seconds",
			Help:    "SubmitTick latency, tick to ledger",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.DroppedTicks,
		m.Spread,
		m.FeedReconnect,
		m.CandlesTotal,
		m.CandlesEvicted,
		m.IndicatorDur,
		m.IndicatorFailures,
		m.EvaluationDur,
		m.SignalsTotal,
		m.SignalDowngrades,
		m.OrdersOpened,
		m.OrdersClosed,
		m.OpenSkipped,
		m.OpenOrders,
		m.Balance,
		m.SinkErrors,
		m.SQLiteWriteDur,
		m.RedisWriteDur,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.CycleDur,
	)

	return m
}

// HealthStatus represents the engine health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected  bool      `json:"feed_connected"`
	LastTickTime   time.Time `json:"last_tick_time"`
	LastSignalTime time.Time `json:"last_signal_time"`
	IndicatorOK    bool      `json:"indicator_ok"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt:   time.Now(),
		IndicatorOK: true,
	}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastSignalTime(t time.Time) {
	h.mu.Lock()
	h.LastSignalTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetIndicatorOK(v bool) {
	h.mu.Lock()
	h.IndicatorOK = v
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

// CheckSQLite pings the journal database and records latency + health.
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

// StartLivenessChecker runs periodic dependency checks. Nil dependencies
// are skipped.
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

// ServeHTTP handles the /healthz endpoint. Redis and SQLite only count
// when enabled.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.ServeWith(false, false)(w, r)
}

// ServeWith returns a /healthz handler that also requires the given stores.
func (h *HealthStatus) ServeWith(needRedis, needSQLite bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.RLock()
		defer h.mu.RUnlock()

		overallStatus := "healthy"
		httpCode := http.StatusOK
		if !h.IndicatorOK || (needRedis && !h.RedisConnected) || (needSQLite && !h.SQLiteOK) {
			overallStatus = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		tickAge := ""
		if !h.LastTickTime.IsZero() {
			tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
		}

		status := struct {
			Status          string  `json:"status"`
			Uptime          string  `json:"uptime"`
			FeedConnected   bool    `json:"feed_connected"`
			LastTickTime    string  `json:"last_tick_time"`
			TickAge         string  `json:"tick_age"`
			LastSignalTime  string  `json:"last_signal_time"`
			IndicatorOK     bool    `json:"indicator_ok"`
			RedisConnected  bool    `json:"redis_connected"`
			RedisLatencyMs  float64 `json:"redis_latency_ms"`
			SQLiteOK        bool    `json:"sqlite_ok"`
			SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
			LastCheckAt     string  `json:"last_check_at"`
		}{
			Status:          overallStatus,
			Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
			FeedConnected:   h.FeedConnected,
			LastTickTime:    h.LastTickTime.Format(time.RFC3339),
			TickAge:         tickAge,
			LastSignalTime:  h.LastSignalTime.Format(time.RFC3339),
			IndicatorOK:     h.IndicatorOK,
			RedisConnected:  h.RedisConnected,
			RedisLatencyMs:  h.RedisLatencyMs,
			SQLiteOK:        h.SQLiteOK,
			SQLiteLatencyMs: h.SQLiteLatencyMs,
			LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")
		if httpCode != http.StatusOK {
			w.WriteHeader(httpCode)
		}
		json.NewEncoder(w).Encode(status)
	}
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
	log  *slog.Logger
}

// NewServer creates a metrics and health server. gatherer is usually the
// registry the Metrics were registered on.
func NewServer(addr string, gatherer prometheus.Gatherer, health http.Handler, log *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		log:  log,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
