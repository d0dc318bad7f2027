package model

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ── Output ports ──
// These interfaces decouple the pipeline from concrete sinks (Redis,
// SQLite, webhooks). Every sink is optional.

// Ledger is the account state after one order-engine cycle.
type Ledger struct {
	TS               time.Time       `json:"ts"`
	Balance          decimal.Decimal `json:"balance"`
	OpenUnrealized   decimal.Decimal `json:"open_unrealized"`
	OpenOrders       int             `json:"open_orders"`
	LastSignalOpenTS time.Time       `json:"last_signal_open_ts"`
}

// SignalSink receives every emitted consensus signal.
type SignalSink interface {
	PublishSignal(ctx context.Context, symbol string, sig Signal) error
}

// OrderSink receives orders that reached a terminal state in a cycle,
// together with the balance after reconciliation.
type OrderSink interface {
	RecordClosed(ctx context.Context, symbol string, orders []Order, balance decimal.Decimal) error
}

// LedgerSink receives the ledger after every cycle.
type LedgerSink interface {
	PublishLedger(ctx context.Context, symbol string, l Ledger) error
}
