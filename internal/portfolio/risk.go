package portfolio

import "fxengine/internal/model"

// Reason names the gate that blocked an opening. Values are stable and
// used as metric labels.
type Reason string

const (
	SkipWindow      Reason = "window_closed"
	SkipConsumed    Reason = "signal_consumed"
	SkipSpread      Reason = "spread"
	SkipMaxOpen     Reason = "max_open"
	SkipPerformance Reason = "performance"
	SkipTrend       Reason = "trend"
)

// canOpen checks the opening gates in order and returns the first that
// fails, or "" when an order may open. Caller holds e.mu.
func (e *Engine) canOpen(tick model.Tick, sig model.Signal, diff int) Reason {
	if !e.rules.Schedule.IsOpen(tick.TS) {
		return SkipWindow
	}
	if diff < e.rules.MinTradingDiff {
		return SkipPerformance
	}
	if !sig.TS.After(e.lastSignalOpen) {
		return SkipConsumed
	}
	if tick.Spread > e.rules.MaxSpread {
		return SkipSpread
	}
	if e.openCount() >= e.rules.MaxOpen {
		return SkipMaxOpen
	}
	if _, ok := model.SideOf(sig.Trend, e.rules.OnlyStrong); !ok {
		return SkipTrend
	}
	return ""
}

func (e *Engine) openCount() int {
	n := 0
	for i := range e.orders {
		if e.orders[i].Status == model.StatusOpen {
			n++
		}
	}
	return n
}
