package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fxengine/internal/model"
)

// ClosedOrder is a row of the closed_orders table.
type ClosedOrder struct {
	ID              string          `json:"id"`
	Symbol          string          `json:"symbol"`
	Side            string          `json:"side"`
	Status          string          `json:"status"`
	SignalTS        time.Time       `json:"signal_ts"`
	SignalTrend     string          `json:"signal_trend"`
	OpenTS          time.Time       `json:"open_ts"`
	CloseTS         time.Time       `json:"close_ts"`
	Elapsed         time.Duration   `json:"elapsed"`
	OpenPrice       decimal.Decimal `json:"open_price"`
	ClosePrice      decimal.Decimal `json:"close_price"`
	HighProfit      int             `json:"high_profit"`
	LowProfit       int             `json:"low_profit"`
	Profit          int             `json:"profit"`
	Swap            decimal.Decimal `json:"swap"`
	PerformanceDiff int             `json:"performance_diff"`
	Balance         decimal.Decimal `json:"balance"`
}

// ClosedOrders returns the last limit closed orders for symbol, newest
// first. A limit of zero or less returns all of them.
func (j *Journal) ClosedOrders(ctx context.Context, symbol string, limit int) ([]ClosedOrder, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, symbol, side, status, signal_ts, signal_trend, open_ts, close_ts, elapsed_ms,
			open_price, close_price, high_profit, low_profit, profit, swap, performance_diff, balance
		FROM closed_orders
		WHERE symbol = ?
		ORDER BY close_ts DESC, rowid DESC
		LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query closed_orders: %w", err)
	}
	defer rows.Close()

	var out []ClosedOrder
	for rows.Next() {
		var (
			o                         ClosedOrder
			signalTS, openTS, closeTS int64
			elapsed                   int64
			openPx, closePx           string
			swap, balance             string
		)
		if err := rows.Scan(&o.ID, &o.Symbol, &o.Side, &o.Status, &signalTS, &o.SignalTrend,
			&openTS, &closeTS, &elapsed, &openPx, &closePx, &o.HighProfit, &o.LowProfit,
			&o.Profit, &swap, &o.PerformanceDiff, &balance); err != nil {
			return nil, fmt.Errorf("sqlite: scan closed_orders: %w", err)
		}
		o.SignalTS = time.UnixMilli(signalTS).UTC()
		o.OpenTS = time.UnixMilli(openTS).UTC()
		o.CloseTS = time.UnixMilli(closeTS).UTC()
		o.Elapsed = time.Duration(elapsed) * time.Millisecond
		if o.OpenPrice, err = decimal.NewFromString(openPx); err != nil {
			return nil, fmt.Errorf("sqlite: open_price %q: %w", openPx, err)
		}
		if o.ClosePrice, err = decimal.NewFromString(closePx); err != nil {
			return nil, fmt.Errorf("sqlite: close_price %q: %w", closePx, err)
		}
		if o.Swap, err = decimal.NewFromString(swap); err != nil {
			return nil, fmt.Errorf("sqlite: swap %q: %w", swap, err)
		}
		if o.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("sqlite: balance %q: %w", balance, err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Order converts the row back into an order.
func (o ClosedOrder) Order() (model.Order, error) {
	side, err := model.ParseSide(o.Side)
	if err != nil {
		return model.Order{}, fmt.Errorf("sqlite: order %s: %w", o.ID, err)
	}
	status, err := model.ParseOrderStatus(o.Status)
	if err != nil {
		return model.Order{}, fmt.Errorf("sqlite: order %s: %w", o.ID, err)
	}
	trend, err := model.ParseSignalTrend(o.SignalTrend)
	if err != nil {
		return model.Order{}, fmt.Errorf("sqlite: order %s: %w", o.ID, err)
	}
	return model.Order{
		ID:              o.ID,
		OpenTS:          o.OpenTS,
		SignalTS:        o.SignalTS,
		SignalTrend:     trend,
		LastUpdate:      o.CloseTS,
		Elapsed:         o.Elapsed,
		Status:          status,
		Side:            side,
		PerformanceDiff: o.PerformanceDiff,
		OpenPrice:       o.OpenPrice,
		ClosePrice:      o.ClosePrice,
		HighProfit:      o.HighProfit,
		LowProfit:       o.LowProfit,
		CurrentProfit:   o.Profit,
		Swap:            o.Swap,
	}, nil
}

// RecordedOrders returns every journaled order for symbol, oldest first.
func (j *Journal) RecordedOrders(ctx context.Context, symbol string) ([]model.Order, error) {
	rows, err := j.ClosedOrders(ctx, symbol, 0)
	if err != nil {
		return nil, err
	}
	out := make([]model.Order, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		o, err := rows[i].Order()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// Signals returns the journaled signals for symbol with ts after the
// given time, oldest first.
func (j *Journal) Signals(ctx context.Context, symbol string, after time.Time) ([]model.Signal, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT ts, trend, votes FROM signals
		WHERE symbol = ? AND ts > ?
		ORDER BY ts ASC
	`, symbol, after.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("sqlite: query signals: %w", err)
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var (
			ts           int64
			trend, votes string
			sig          model.Signal
		)
		if err := rows.Scan(&ts, &trend, &votes); err != nil {
			return nil, fmt.Errorf("sqlite: scan signals: %w", err)
		}
		sig.TS = time.UnixMilli(ts).UTC()
		if sig.Trend, err = model.ParseSignalTrend(trend); err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		if err := json.Unmarshal([]byte(votes), &sig.Votes); err != nil {
			return nil, fmt.Errorf("sqlite: votes: %w", err)
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}
