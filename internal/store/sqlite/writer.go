package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"fxengine/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Journal persists closed orders and emitted signals for audit and
// offline analysis. It implements model.OrderSink and model.SignalSink.
type Journal struct {
	db  *sql.DB
	log *slog.Logger

	// OnWrite is called after every committed write (optional).
	OnWrite func(took time.Duration)
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// Name identifies the sink in logs and metrics.
func (j *Journal) Name() string { return "sqlite" }

// Open creates or opens the journal database in WAL mode and applies the schema.
func Open(path string, log *slog.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}

	log = log.With("component", "sqlite")
	log.Info("journal opened", "path", path)
	return &Journal{db: db, log: log}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS closed_orders (
			id               TEXT    PRIMARY KEY,
			symbol           TEXT    NOT NULL,
			side             TEXT    NOT NULL,
			status           TEXT    NOT NULL,
			signal_ts        INTEGER NOT NULL,
			signal_trend     TEXT    NOT NULL,
			open_ts          INTEGER NOT NULL,
			close_ts         INTEGER NOT NULL,
			elapsed_ms       INTEGER NOT NULL,
			open_price       TEXT    NOT NULL,
			close_price      TEXT    NOT NULL,
			high_profit      INTEGER NOT NULL,
			low_profit       INTEGER NOT NULL,
			profit           INTEGER NOT NULL,
			swap             TEXT    NOT NULL,
			performance_diff INTEGER NOT NULL,
			balance          TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_closed_orders_symbol ON closed_orders(symbol, close_ts);

		CREATE TABLE IF NOT EXISTS signals (
			symbol     TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			trend      TEXT    NOT NULL,
			votes      TEXT    NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
			PRIMARY KEY (symbol, ts)
		);
	`)
	return err
}

// RecordClosed writes every terminal order of one cycle in a single
// transaction. balance is the ledger balance after the cycle.
func (j *Journal) RecordClosed(ctx context.Context, symbol string, orders []model.Order, balance decimal.Decimal) error {
	if len(orders) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO closed_orders (id, symbol, side, status, signal_ts, signal_trend,
			open_ts, close_ts, elapsed_ms, open_price, close_price, high_profit, low_profit,
			profit, swap, performance_diff, balance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite: prepare closed_orders: %w", err)
	}
	defer stmt.Close()

	for _, o := range orders {
		_, err := stmt.ExecContext(ctx,
			o.ID, symbol, o.Side.String(), o.Status.String(),
			o.SignalTS.UnixMilli(), o.SignalTrend.String(),
			o.OpenTS.UnixMilli(), o.LastUpdate.UnixMilli(), o.Elapsed.Milliseconds(),
			o.OpenPrice.String(), o.ClosePrice.String(),
			o.HighProfit, o.LowProfit, o.CurrentProfit,
			o.Swap.String(), o.PerformanceDiff, balance.String(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite: insert order %s: %w", o.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	j.observe(start)
	j.log.Debug("closed orders committed", "count", len(orders), "took", time.Since(start))
	return nil
}

// PublishSignal journals one consensus signal. Re-publishing the same
// timestamp replaces the row.
func (j *Journal) PublishSignal(ctx context.Context, symbol string, sig model.Signal) error {
	start := time.Now()
	votes, err := json.Marshal(sig.Votes)
	if err != nil {
		return fmt.Errorf("sqlite: marshal votes: %w", err)
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO signals (symbol, ts, trend, votes) VALUES (?, ?, ?, ?)`,
		symbol, sig.TS.UnixMilli(), sig.Trend.String(), string(votes))
	if err != nil {
		return fmt.Errorf("sqlite: insert signal: %w", err)
	}
	j.observe(start)
	return nil
}

func (j *Journal) observe(start time.Time) {
	if j.OnWrite != nil {
		j.OnWrite(time.Since(start))
	}
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
