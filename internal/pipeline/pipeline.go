// Package pipeline walks each submitted quote through the full decision
// chain: tick holder → candle aggregator → indicator runner → consensus
// → order engine → sinks. Calls are serialized; only the indicator
// fan-out runs in parallel.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fxengine/internal/indicator"
	"fxengine/internal/logger"
	"fxengine/internal/marketdata/agg"
	"fxengine/internal/marketdata/ticker"
	"fxengine/internal/marketdata/timeframe"
	"fxengine/internal/model"
	"fxengine/internal/portfolio"
	"fxengine/internal/strategy"
)

// Config describes the instrument and chart.
type Config struct {
	Symbol    string
	Digits    int32
	Timeframe timeframe.Timeframe
	History   int // minimum closed candles kept; raised to the indicators' look-back

	// Location is the broker server time zone. Candle buckets, trading
	// windows and swap days are read in it. Nil means UTC.
	Location *time.Location
}

// Sinks receive pipeline output. All are optional. Sink errors are
// logged and counted, never returned.
type Sinks struct {
	Signals []model.SignalSink
	Orders  []model.OrderSink
	Ledger  []model.LedgerSink
}

// Result is the outcome of one SubmitTick call.
type Result struct {
	Accepted     bool
	Tick         model.Tick
	CandleClosed bool
	Signal       model.Signal // signal in effect after this tick
	NewSignal    bool
	Traded       bool // order engine ran
	Cycle        portfolio.Cycle
}

// Pipeline owns the tick holder and aggregator and drives the injected
// runner, consensus aggregator and order engine.
type Pipeline struct {
	mu sync.Mutex

	cfg     Config
	ticks   *ticker.Holder
	candles *agg.Aggregator
	runner  *indicator.Runner
	signals *strategy.Aggregator
	orders  *portfolio.Engine
	sinks   Sinks
	log     *slog.Logger

	windowClosed bool

	// Hooks (optional, set externally)
	OnCycle     func(r Result, took time.Duration) // every accepted tick
	OnEvaluated func(took time.Duration)
	OnEvalError func(err error)
	OnSinkError func(sink string, err error)
}

// New wires a pipeline. The history window holds at least two candles.
func New(cfg Config, runner *indicator.Runner, signals *strategy.Aggregator, orders *portfolio.Engine, sinks Sinks, log *slog.Logger) *Pipeline {
	capacity := cfg.History
	if lb := runner.Lookback(); lb > capacity {
		capacity = lb
	}
	if capacity < 2 {
		capacity = 2
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Pipeline{
		cfg:     cfg,
		ticks:   ticker.New(cfg.Digits),
		candles: agg.New(cfg.Timeframe, capacity),
		runner:  runner,
		signals: signals,
		orders:  orders,
		sinks:   sinks,
		log:     log.With("symbol", cfg.Symbol, "tf", cfg.Timeframe.String()),
	}
}

// SubmitTick processes one quote to completion. A quote whose timestamp
// does not advance is rejected with Accepted=false and no state change.
// An indicator failure aborts the cycle: no new signal, no order pass;
// the previous signal stays in effect and the next tick retries.
func (p *Pipeline) SubmitTick(ctx context.Context, q model.Quote) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	q.TS = q.TS.In(p.cfg.Location)
	tick, ok := p.ticks.Submit(q)
	if !ok {
		return Result{Tick: tick, Signal: p.signals.Last()}, nil
	}

	res := Result{Accepted: true, Tick: tick}
	defer func() {
		if p.OnCycle != nil {
			p.OnCycle(res, time.Since(start))
		}
	}()
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(p.cfg.Symbol, tick.TS))

	if !tick.Ready() {
		res.Signal = p.signals.Last()
		return res, nil
	}

	res.CandleClosed = p.candles.Add(tick)
	if res.CandleClosed {
		next, _ := p.candles.NextClose()
		p.log.Debug("candle closed", append(logger.LogWithTrace(ctx), "next_close", next)...)
	}
	// Runs on every tick until the last closed candle has a signal, so a
	// failed evaluation is retried within the same bucket.
	if p.candles.Ready() {
		sig, emitted, err := p.evaluate(ctx)
		if err != nil {
			res.Signal = p.signals.Last()
			if p.OnEvalError != nil {
				p.OnEvalError(err)
			}
			p.log.Error("indicator evaluation failed", append(logger.LogWithTrace(ctx), "error", err)...)
			return res, fmt.Errorf("pipeline: evaluate: %w", err)
		}
		if emitted {
			res.NewSignal = true
			p.publishSignal(ctx, sig)
		}
	}

	res.Signal = p.signals.Last()
	res.Cycle = p.orders.Process(tick, res.Signal)
	res.Traded = true
	p.trackWindow(ctx, tick.TS, res.Cycle.Skip)
	p.publishCycle(ctx, res.Cycle)
	return res, nil
}

// evaluate runs the indicators over the frozen history and emits a
// signal tagged with the last closed candle, if one is due.
func (p *Pipeline) evaluate(ctx context.Context) (model.Signal, bool, error) {
	last, ok := p.candles.LastClosed()
	if !ok || !p.signals.Due(last.BucketStart) {
		return model.Signal{}, false, nil
	}

	start := time.Now()
	votes, err := p.runner.Evaluate(ctx, p.candles.History())
	if p.OnEvaluated != nil {
		p.OnEvaluated(time.Since(start))
	}
	if err != nil {
		return model.Signal{}, false, err
	}

	sig, emitted := p.signals.Emit(last.BucketStart, votes)
	if emitted {
		p.log.Info("signal",
			append(logger.LogWithTrace(ctx),
				"ts", sig.TS, "trend", sig.Trend.String(), "votes", sig.Votes)...)
	}
	return sig, emitted, nil
}

// trackWindow logs the trading window status when it closes or reopens.
func (p *Pipeline) trackWindow(ctx context.Context, ts time.Time, skip portfolio.Reason) {
	closed := skip == portfolio.SkipWindow
	if closed == p.windowClosed {
		return
	}
	p.windowClosed = closed
	p.log.Info(p.orders.WindowStatus(ts), logger.LogWithTrace(ctx)...)
}

func (p *Pipeline) publishSignal(ctx context.Context, sig model.Signal) {
	for _, s := range p.sinks.Signals {
		if err := s.PublishSignal(ctx, p.cfg.Symbol, sig); err != nil {
			p.sinkFailed(ctx, s, err)
		}
	}
}

func (p *Pipeline) publishCycle(ctx context.Context, c portfolio.Cycle) {
	if c.Opened != nil {
		o := c.Opened
		p.log.Info("order opened", append(logger.LogWithTrace(ctx),
			"id", o.ID, "side", o.Side.String(), "price", o.OpenPrice.String(),
			"signal_ts", o.SignalTS, "trend", o.SignalTrend.String())...)
	}
	for _, o := range c.Closed {
		p.log.Info("order closed", append(logger.LogWithTrace(ctx),
			"id", o.ID, "status", o.Status.String(), "profit", o.CurrentProfit,
			"swap", o.Swap.String(), "elapsed", o.Elapsed.String())...)
	}

	if len(c.Closed) > 0 {
		for _, s := range p.sinks.Orders {
			if err := s.RecordClosed(ctx, p.cfg.Symbol, c.Closed, c.Ledger.Balance); err != nil {
				p.sinkFailed(ctx, s, err)
			}
		}
	}
	for _, s := range p.sinks.Ledger {
		if err := s.PublishLedger(ctx, p.cfg.Symbol, c.Ledger); err != nil {
			p.sinkFailed(ctx, s, err)
		}
	}
}

func (p *Pipeline) sinkFailed(ctx context.Context, sink any, err error) {
	name := sinkName(sink)
	p.log.Warn("sink write failed", append(logger.LogWithTrace(ctx), "sink", name, "error", err)...)
	if p.OnSinkError != nil {
		p.OnSinkError(name, err)
	}
}

func sinkName(s any) string {
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}

// Ticks exposes the tick holder for hook wiring.
func (p *Pipeline) Ticks() *ticker.Holder { return p.ticks }

// Candles exposes the aggregator for hook wiring and read access.
func (p *Pipeline) Candles() *agg.Aggregator { return p.candles }

// Ledger returns the order engine's current ledger.
func (p *Pipeline) Ledger() model.Ledger { return p.orders.Ledger() }

// Signal returns the most recent consensus signal.
func (p *Pipeline) Signal() model.Signal { return p.signals.Last() }
