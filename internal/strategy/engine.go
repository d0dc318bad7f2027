// Package strategy reduces indicator votes into one consensus signal.
//
// The reduction is a signed sum: BUY=+1, SELL=−1, NEUTRAL=0 over N
// indicators. +N is STRONG_BUY, −N is STRONG_SELL, 0 is NEUTRAL, and any
// other positive or negative sum is BUY or SELL.
package strategy

import (
	"sync"
	"time"

	"fxengine/internal/model"
)

// PerformanceGate decides whether a non-neutral trend agrees with recent
// trading performance. Incompatible trends are downgraded to NEUTRAL.
type PerformanceGate interface {
	IsCompatible(t model.SignalTrend) bool
}

// AllowAll is a PerformanceGate that accepts every trend.
type AllowAll struct{}

func (AllowAll) IsCompatible(model.SignalTrend) bool { return true }

// Reduce applies the signed-sum rule. No votes is NEUTRAL.
func Reduce(votes map[string]model.IndicatorTrend) model.SignalTrend {
	n := len(votes)
	if n == 0 {
		return model.SignalNeutral
	}

	sum := 0
	for _, v := range votes {
		sum += v.Weight()
	}

	switch {
	case sum == n:
		return model.SignalStrongBuy
	case sum == -n:
		return model.SignalStrongSell
	case sum == 0:
		return model.SignalNeutral
	case sum > 0:
		return model.SignalBuy
	default:
		return model.SignalSell
	}
}

// Aggregator holds the most recent signal. A new signal is emitted only
// for a timestamp strictly after the previous one and at least interval
// later in candle time.
type Aggregator struct {
	mu       sync.Mutex
	gate     PerformanceGate
	interval time.Duration
	last     model.Signal

	// Metrics hooks (optional, set externally)
	OnEmit      func(sig model.Signal)
	OnDowngrade func(from model.SignalTrend)
}

// NewAggregator creates an Aggregator. A nil gate accepts everything.
func NewAggregator(gate PerformanceGate, interval time.Duration) *Aggregator {
	if gate == nil {
		gate = AllowAll{}
	}
	return &Aggregator{gate: gate, interval: interval}
}

// Due reports whether a signal tagged ts would be accepted.
func (a *Aggregator) Due(ts time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.due(ts)
}

func (a *Aggregator) due(ts time.Time) bool {
	if a.last.IsZero() {
		return true
	}
	return ts.After(a.last.TS) && ts.Sub(a.last.TS) >= a.interval
}

// Emit reduces votes into a signal tagged ts and stores it as the latest.
// It returns false, leaving the previous signal in place, when ts is not due.
func (a *Aggregator) Emit(ts time.Time, votes map[string]model.IndicatorTrend) (model.Signal, bool) {
	if !a.Due(ts) {
		return a.Last(), false
	}

	trend := Reduce(votes)
	if trend != model.SignalNeutral && !a.gate.IsCompatible(trend) {
		if a.OnDowngrade != nil {
			a.OnDowngrade(trend)
		}
		trend = model.SignalNeutral
	}

	breakdown := make(map[string]model.IndicatorTrend, len(votes))
	for k, v := range votes {
		breakdown[k] = v
	}
	sig := model.Signal{TS: ts, Trend: trend, Votes: breakdown}

	a.mu.Lock()
	if !a.due(ts) {
		prev := a.last
		a.mu.Unlock()
		return prev, false
	}
	a.last = sig
	a.mu.Unlock()

	if a.OnEmit != nil {
		a.OnEmit(sig)
	}
	return sig, true
}

// Last returns the most recent signal (zero before the first emission).
func (a *Aggregator) Last() model.Signal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}
