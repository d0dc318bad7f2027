package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a simulated order. CLOSE_TP and
// CLOSE_SL are terminal.
type OrderStatus int

const (
	StatusOpen OrderStatus = iota
	StatusCloseTP
	StatusCloseSL
)

func (s OrderStatus) String() string {
	switch s {
	case StatusOpen:
		return "OPEN"
	case StatusCloseTP:
		return "CLOSE_TP"
	case StatusCloseSL:
		return "CLOSE_SL"
	}
	return fmt.Sprintf("OrderStatus(%d)", int(s))
}

func (s OrderStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, st := range []OrderStatus{StatusOpen, StatusCloseTP, StatusCloseSL} {
		if st.String() == s {
			return st, nil
		}
	}
	return StatusOpen, fmt.Errorf("model: unknown order status %q", s)
}

// Terminal reports whether the order has left the OPEN state.
func (s OrderStatus) Terminal() bool {
	return s != StatusOpen
}

// Order is a simulated position held by the order engine.
// Profit values are in points; Swap is in (possibly fractional) points.
type Order struct {
	ID              string          `json:"id"`
	OpenTS          time.Time       `json:"open_ts"`
	SignalTS        time.Time       `json:"signal_ts"`
	SignalTrend     SignalTrend     `json:"signal_trend"`
	LastUpdate      time.Time       `json:"last_update"`
	Elapsed         time.Duration   `json:"elapsed"`
	Status          OrderStatus     `json:"status"`
	Side            Side            `json:"side"`
	PerformanceDiff int             `json:"performance_diff"` // trading stats diff when opened
	OpenPrice       decimal.Decimal `json:"open_price"`
	ClosePrice      decimal.Decimal `json:"close_price"`
	HighProfit      int             `json:"high_profit"`
	LowProfit       int             `json:"low_profit"`
	CurrentProfit   int             `json:"current_profit"`
	Swap            decimal.Decimal `json:"swap"`
}

// Profit returns the order's total result in points: swap plus price profit.
func (o *Order) Profit() decimal.Decimal {
	return o.Swap.Add(decimal.NewFromInt(int64(o.CurrentProfit)))
}
