package portfolio

import (
	"time"

	"github.com/shopspring/decimal"

	"fxengine/internal/model"
)

var three = decimal.NewFromInt(3)

// updateOrder marks o to tick: swap, close price, profit, water marks
// and status. o must be OPEN.
func (e *Engine) updateOrder(o model.Order, tick model.Tick) model.Order {
	o.Swap = o.Swap.Add(e.swapDue(o, tick.TS))

	if o.Side == model.SideBuy {
		o.ClosePrice = tick.Bid
		o.CurrentProfit = model.Points(o.ClosePrice, tick.Digits) - model.Points(o.OpenPrice, tick.Digits)
	} else {
		o.ClosePrice = tick.Ask
		o.CurrentProfit = model.Points(o.OpenPrice, tick.Digits) - model.Points(o.ClosePrice, tick.Digits)
	}

	if o.CurrentProfit > o.HighProfit {
		o.HighProfit = o.CurrentProfit
	}
	if o.CurrentProfit < o.LowProfit {
		o.LowProfit = o.CurrentProfit
	}

	switch {
	case o.CurrentProfit >= e.rules.TakeProfit:
		o.Status = model.StatusCloseTP
	case o.CurrentProfit <= -e.rules.StopLoss:
		o.Status = model.StatusCloseSL
	}

	o.LastUpdate = tick.TS
	o.Elapsed = tick.TS.Sub(o.OpenTS)
	return o
}

// swapDue returns the rollover owed when ts falls on a later calendar day
// than the order's last update. Rolling over from the triple-swap weekday
// books three days.
func (e *Engine) swapDue(o model.Order, ts time.Time) decimal.Decimal {
	if sameDay(o.LastUpdate, ts) {
		return decimal.Zero
	}
	rate := e.rules.SwapShort
	if o.Side == model.SideBuy {
		rate = e.rules.SwapLong
	}
	if o.LastUpdate.Weekday() == e.rules.TripleSwap {
		return rate.Mul(three)
	}
	return rate
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// reconcile books the change in open profit since the previous cycle
// plus the full result of orders closed this cycle:
//
//	balance += (Σ open − lastOpenUnrealized) + Σ closed
func (e *Engine) reconcile() {
	openSum, closedSum := decimal.Zero, decimal.Zero
	for i := range e.orders {
		p := e.orders[i].Profit()
		if e.orders[i].Status.Terminal() {
			closedSum = closedSum.Add(p)
		} else {
			openSum = openSum.Add(p)
		}
	}
	e.balance = e.balance.Add(openSum.Sub(e.lastOpenUnrealized)).Add(closedSum)
	e.lastOpenUnrealized = openSum
}
