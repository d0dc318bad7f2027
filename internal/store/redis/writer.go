package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"fxengine/internal/model"
)

const (
	defaultStreamMaxLen = 10000
	defaultLatestTTL    = 24 * time.Hour
)

// Config configures the Redis publisher.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int

	StreamMaxLen int64         // approximate cap for signal/order streams
	MaxFailures  int           // consecutive failures before the breaker opens
	ResetTimeout time.Duration // breaker cool-down before a probe
}

// Publisher mirrors engine output into Redis for downstream consumers:
//
//	signals:{symbol}        stream of consensus signals
//	signal:latest:{symbol}  most recent signal (JSON)
//	pub:signal:{symbol}     pub/sub fan-out of each signal
//	orders:{symbol}         stream of closed orders
//	ledger:{symbol}         hash with the current ledger
//
// Every write goes through a circuit breaker. It implements
// model.SignalSink, model.OrderSink and model.LedgerSink.
type Publisher struct {
	client  *goredis.Client
	breaker *CircuitBreaker
	maxLen  int64
	log     *slog.Logger

	// OnWrite is called after every successful pipeline exec (optional).
	OnWrite func(took time.Duration)
}

// New connects to Redis and pings it.
func New(cfg Config, log *slog.Logger) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}

	p := newPublisher(client, cfg, log)
	p.log.Info("connected", "addr", cfg.Addr)
	return p, nil
}

func newPublisher(client *goredis.Client, cfg Config, log *slog.Logger) *Publisher {
	if cfg.StreamMaxLen <= 0 {
		cfg.StreamMaxLen = defaultStreamMaxLen
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 10 * time.Second
	}
	return &Publisher{
		client:  client,
		breaker: NewCircuitBreaker(cfg.MaxFailures, cfg.ResetTimeout),
		maxLen:  cfg.StreamMaxLen,
		log:     log.With("component", "redis"),
	}
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker exposes the circuit breaker for state-change hooks.
func (p *Publisher) Breaker() *CircuitBreaker { return p.breaker }

// Name identifies the sink in logs and metrics.
func (p *Publisher) Name() string { return "redis" }

// PublishSignal appends the signal to the stream, stores it as latest and
// publishes it, in one round trip.
func (p *Publisher) PublishSignal(ctx context.Context, symbol string, sig model.Signal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("redis: marshal signal: %w", err)
	}
	payload := string(data)

	return p.exec(ctx, "signal", func(pipe goredis.Pipeliner) {
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: SignalStreamKey(symbol),
			MaxLen: p.maxLen,
			Approx: true,
			Values: map[string]interface{}{"data": payload},
		})
		pipe.Set(ctx, LatestSignalKey(symbol), payload, defaultLatestTTL)
		pipe.Publish(ctx, SignalChannel(symbol), payload)
	})
}

// RecordClosed appends each closed order to the order stream.
func (p *Publisher) RecordClosed(ctx context.Context, symbol string, orders []model.Order, balance decimal.Decimal) error {
	if len(orders) == 0 {
		return nil
	}
	payloads := make([]string, 0, len(orders))
	for i := range orders {
		data, err := json.Marshal(orders[i])
		if err != nil {
			return fmt.Errorf("redis: marshal order %s: %w", orders[i].ID, err)
		}
		payloads = append(payloads, string(data))
	}

	return p.exec(ctx, "orders", func(pipe goredis.Pipeliner) {
		for _, payload := range payloads {
			pipe.XAdd(ctx, &goredis.XAddArgs{
				Stream: OrderStreamKey(symbol),
				MaxLen: p.maxLen,
				Approx: true,
				Values: map[string]interface{}{"data": payload, "balance": balance.String()},
			})
		}
	})
}

// PublishLedger overwrites the ledger hash.
func (p *Publisher) PublishLedger(ctx context.Context, symbol string, l model.Ledger) error {
	return p.exec(ctx, "ledger", func(pipe goredis.Pipeliner) {
		pipe.HSet(ctx, LedgerKey(symbol), LedgerFields(l))
	})
}

func (p *Publisher) exec(ctx context.Context, what string, fill func(goredis.Pipeliner)) error {
	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		start := time.Now()
		pipe := p.client.Pipeline()
		fill(pipe)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		if p.OnWrite != nil {
			p.OnWrite(time.Since(start))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: %s: %w", what, err)
	}
	return nil
}

// Close closes the client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

func SignalStreamKey(symbol string) string { return "signals:" + symbol }
func LatestSignalKey(symbol string) string { return "signal:latest:" + symbol }
func SignalChannel(symbol string) string   { return "pub:signal:" + symbol }
func OrderStreamKey(symbol string) string  { return "orders:" + symbol }
func LedgerKey(symbol string) string       { return "ledger:" + symbol }

// LedgerFields flattens a ledger into hash fields.
func LedgerFields(l model.Ledger) map[string]interface{} {
	fields := map[string]interface{}{
		"ts":              l.TS.UnixMilli(),
		"balance":         l.Balance.String(),
		"open_unrealized": l.OpenUnrealized.String(),
		"open_orders":     strconv.Itoa(l.OpenOrders),
		"last_signal_ts":  int64(0),
	}
	if !l.LastSignalOpenTS.IsZero() {
		fields["last_signal_ts"] = l.LastSignalOpenTS.UnixMilli()
	}
	return fields
}
