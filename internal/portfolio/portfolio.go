// Package portfolio is the simulated order engine. It owns the order set
// and the account ledger, both mutated only through Engine.Process.
//
// Each Process call runs three passes in order: update every OPEN order
// against the tick, decide whether the signal opens a new order, then
// reconcile the balance. Orders that reached CLOSE_TP/CLOSE_SL are
// reported in the returned Cycle and evicted.
package portfolio

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fxengine/internal/markethours"
	"fxengine/internal/model"
)

// Rules are the order engine's configurable limits.
type Rules struct {
	OnlyStrong     bool
	MaxOpen        int
	MaxSpread      int // points
	MinTradingDiff int
	TakeProfit     int // points
	StopLoss       int // points, positive
	SwapLong       decimal.Decimal
	SwapShort      decimal.Decimal
	TripleSwap     time.Weekday
	Schedule       *markethours.Schedule
}

// DefaultRules returns the stock EURUSD settings.
func DefaultRules() Rules {
	return Rules{
		MaxOpen:        999,
		MaxSpread:      12,
		MinTradingDiff: -1,
		TakeProfit:     150,
		StopLoss:       100,
		SwapLong:       decimal.RequireFromString("-5.46"),
		SwapShort:      decimal.RequireFromString("0.61"),
		TripleSwap:     time.Wednesday,
		Schedule:       markethours.AlwaysOpen(),
	}
}

// Cycle is the outcome of one Process call.
type Cycle struct {
	Ledger model.Ledger
	Opened *model.Order  // nil when nothing opened
	Skip   Reason        // why nothing opened, empty when an order opened
	Closed []model.Order // orders that reached a terminal state this cycle
}

// Engine is the single writer of the order set and ledger.
type Engine struct {
	mu    sync.Mutex
	rules Rules
	perf  *Performance

	orders             []model.Order
	balance            decimal.Decimal
	lastOpenUnrealized decimal.Decimal
	lastSignalOpen     time.Time
	lastTick           time.Time

	newID func() string

	// Hooks (optional, set externally). Called without the lock held.
	OnOpened func(o model.Order)
	OnClosed func(o model.Order)
}

// New creates an Engine starting at initialBalance (points). perf may be
// nil, in which case trading statistics are not tracked.
func New(rules Rules, perf *Performance, initialBalance decimal.Decimal) *Engine {
	if rules.Schedule == nil {
		rules.Schedule = markethours.AlwaysOpen()
	}
	if perf == nil {
		perf = NewPerformance(DefaultSideMin)
	}
	return &Engine{
		rules:   rules,
		perf:    perf,
		balance: initialBalance,
		newID:   uuid.NewString,
	}
}

// WindowStatus describes the trading window at t.
func (e *Engine) WindowStatus(t time.Time) string {
	return e.rules.Schedule.StatusString(t)
}

// Process runs one full cycle for tick against the latest signal.
func (e *Engine) Process(tick model.Tick, sig model.Signal) Cycle {
	diff := e.perf.Diff()

	e.mu.Lock()

	for i := range e.orders {
		if e.orders[i].Status == model.StatusOpen {
			e.orders[i] = e.updateOrder(e.orders[i], tick)
		}
	}

	var opened *model.Order
	reason := e.canOpen(tick, sig, diff)
	if reason == "" {
		side, _ := model.SideOf(sig.Trend, e.rules.OnlyStrong)
		o := e.openOrder(tick, sig, side, diff)
		e.orders = append(e.orders, o)
		e.lastSignalOpen = sig.TS
		opened = &o
	}

	e.reconcile()
	e.lastTick = tick.TS

	var closed []model.Order
	kept := e.orders[:0]
	for _, o := range e.orders {
		if o.Status.Terminal() {
			closed = append(closed, o)
			continue
		}
		kept = append(kept, o)
	}
	for i := len(kept); i < len(e.orders); i++ {
		e.orders[i] = model.Order{}
	}
	e.orders = kept

	cycle := Cycle{
		Ledger: e.ledger(),
		Opened: opened,
		Skip:   reason,
		Closed: closed,
	}
	e.mu.Unlock()

	for _, o := range closed {
		e.perf.Record(o)
	}
	if opened != nil && e.OnOpened != nil {
		e.OnOpened(*opened)
	}
	if e.OnClosed != nil {
		for _, o := range closed {
			e.OnClosed(o)
		}
	}
	return cycle
}

// Orders returns a copy of the active (OPEN) orders.
func (e *Engine) Orders() []model.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Order, len(e.orders))
	copy(out, e.orders)
	return out
}

// Ledger returns the account state after the last cycle.
func (e *Engine) Ledger() model.Ledger {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger()
}

// Performance exposes the trading statistics the engine feeds.
func (e *Engine) Performance() *Performance { return e.perf }

func (e *Engine) ledger() model.Ledger {
	return model.Ledger{
		TS:               e.lastTick,
		Balance:          e.balance,
		OpenUnrealized:   e.lastOpenUnrealized,
		OpenOrders:       len(e.orders),
		LastSignalOpenTS: e.lastSignalOpen,
	}
}

func (e *Engine) openOrder(tick model.Tick, sig model.Signal, side model.Side, diff int) model.Order {
	openPx, closePx := tick.Ask, tick.Bid
	if side == model.SideSell {
		openPx, closePx = tick.Bid, tick.Ask
	}
	entry := -tick.Spread
	return model.Order{
		ID:              e.newID(),
		OpenTS:          tick.TS,
		SignalTS:        sig.TS,
		SignalTrend:     sig.Trend,
		LastUpdate:      tick.TS,
		Status:          model.StatusOpen,
		Side:            side,
		PerformanceDiff: diff,
		OpenPrice:       openPx,
		ClosePrice:      closePx,
		HighProfit:      entry,
		LowProfit:       entry,
		CurrentProfit:   entry,
		Swap:            decimal.Zero,
	}
}
