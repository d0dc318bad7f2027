package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"fxengine/config"
	"fxengine/internal/indicator"
	"fxengine/internal/logger"
	"fxengine/internal/metrics"
	"fxengine/internal/model"
	"fxengine/internal/notification"
	"fxengine/internal/pipeline"
	"fxengine/internal/portfolio"
	redisstore "fxengine/internal/store/redis"
	sqlitestore "fxengine/internal/store/sqlite"
	"fxengine/internal/strategy"
)

// app is the fully wired engine shared by the run and replay commands.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	pipe    *pipeline.Pipeline
	engine  *portfolio.Engine
	metrics *metrics.Metrics
	health  *metrics.HealthStatus
	server  *metrics.Server

	rdb     *goredis.Client
	db      *sql.DB
	closers []func() error
}

func newApp(service string) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	level, _ := logger.ParseLevel(cfg.Log.Level)
	log := logger.Init(service, level)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	health := metrics.NewHealthStatus()

	a := &app{cfg: cfg, log: log, metrics: m, health: health}

	runner := indicator.NewRunner(cfg.Indicators.Timeout)
	for _, name := range cfg.Indicators.Enabled {
		ind, err := indicator.New(name, cfg.IndicatorParams())
		if err != nil {
			return nil, err
		}
		if err := runner.Register(ind); err != nil {
			return nil, err
		}
	}

	perf := portfolio.NewPerformance(cfg.Performance.SideMin)
	signals := strategy.NewAggregator(perf, cfg.RunInterval())
	a.engine = portfolio.New(cfg.Rules(), perf, cfg.InitialBalance)

	sinks, err := a.openSinks()
	if err != nil {
		a.close()
		return nil, err
	}

	a.pipe = pipeline.New(pipeline.Config{
		Symbol:    cfg.Symbol,
		Digits:    cfg.Chart.Digits,
		Timeframe: cfg.Timeframe,
		History:   cfg.Chart.History,
		Location:  cfg.Location,
	}, runner, signals, a.engine, sinks, log)
	a.pipe.Instrument(m, health)

	a.server = metrics.NewServer(cfg.Metrics.Addr, reg, health.ServeWith(a.rdb != nil, a.db != nil), log)

	log.Info("engine ready",
		"symbol", cfg.Symbol,
		"timeframe", cfg.Timeframe.String(),
		"location", cfg.Location.String(),
		"indicators", runner.Names(),
		"lookback", runner.Lookback(),
		"run_interval", cfg.RunInterval())
	return a, nil
}

func (a *app) openSinks() (pipeline.Sinks, error) {
	var sinks pipeline.Sinks
	cfg := a.cfg

	if cfg.SQLite.Path != "" {
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return sinks, fmt.Errorf("sqlite dir: %w", err)
			}
		}
		j, err := sqlitestore.Open(cfg.SQLite.Path, a.log)
		if err != nil {
			return sinks, err
		}
		j.OnWrite = func(took time.Duration) { a.metrics.SQLiteWriteDur.Observe(took.Seconds()) }
		a.db = j.DB()
		a.closers = append(a.closers, j.Close)
		if err := a.restorePerformance(j); err != nil {
			return sinks, err
		}
		sinks.Signals = append(sinks.Signals, j)
		sinks.Orders = append(sinks.Orders, j)
		a.health.CheckSQLite(context.Background(), a.db)
	}

	if cfg.Redis.Enabled {
		p, err := redisstore.New(redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, a.log)
		if err != nil {
			a.log.Warn("redis init failed, continuing without redis", "error", err)
		} else {
			p.OnWrite = func(took time.Duration) { a.metrics.RedisWriteDur.Observe(took.Seconds()) }
			p.Breaker().OnStateChange = func(from, to redisstore.State) {
				a.metrics.RedisCircuitBreakerState.Set(float64(to))
				if to == redisstore.StateOpen {
					a.metrics.RedisCircuitBreakerTrips.Inc()
				}
				a.log.Warn("redis circuit breaker", "from", from.String(), "to", to.String())
			}
			a.rdb = p.Client()
			a.closers = append(a.closers, p.Close)
			sinks.Signals = append(sinks.Signals, p)
			sinks.Orders = append(sinks.Orders, p)
			sinks.Ledger = append(sinks.Ledger, p)
			a.health.CheckRedis(context.Background(), a.rdb)
		}
	}

	var n notification.Notifier = notification.NewLogNotifier(a.log)
	if cfg.Webhook.URL != "" {
		n = notification.NewWebhookNotifier(cfg.Webhook.URL, cfg.Webhook.PerMinute, a.log)
	}
	sinks.Orders = append(sinks.Orders, notification.OrderAlerts{N: n})
	return sinks, nil
}

// restorePerformance replays journaled closes into the trading statistics
// so the performance gates survive a restart.
func (a *app) restorePerformance(j *sqlitestore.Journal) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	orders, err := j.RecordedOrders(ctx, a.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("restore performance: %w", err)
	}
	perf := a.engine.Performance()
	for _, o := range orders {
		perf.Record(o)
	}
	a.log.Info("performance restored", "orders", len(orders), "stats", perf.Snapshot())
	return nil
}

// start launches the metrics server and dependency liveness checks.
func (a *app) start(ctx context.Context) {
	a.server.Start()
	if a.rdb != nil || a.db != nil {
		a.health.StartLivenessChecker(ctx, a.rdb, a.db, 15*time.Second)
	}
}

func (a *app) submit(ctx context.Context, q model.Quote) (bool, error) {
	res, err := a.pipe.SubmitTick(ctx, q)
	return res.Accepted, err
}

func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Stop(ctx); err != nil {
		a.log.Warn("metrics server shutdown", "error", err)
	}
	a.close()

	l := a.engine.Ledger()
	a.log.Info("stopped",
		"balance", l.Balance.String(),
		"open_orders", l.OpenOrders,
		"stats", a.engine.Performance().Snapshot())
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close", "error", err)
		}
	}
	a.closers = nil
}
