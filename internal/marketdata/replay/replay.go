// Package replay feeds recorded ticks through the engine. It reads the
// tab-separated tick export produced by MetaTrader 5:
//
//	<DATE>      <TIME>        <BID>    <ASK>    <LAST> <VOLUME> <FLAGS>
//	2024.03.13  09:00:00.125  1.10000  1.10010                  6
//
// Empty BID or ASK cells mean that side did not change. Timestamps are
// read as UTC.
package replay

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fxengine/internal/model"
)

const (
	colDate = "<DATE>"
	colTime = "<TIME>"
	colBid  = "<BID>"
	colAsk  = "<ASK>"

	maxGap = 5 * time.Second
)

var timeLayouts = []string{"2006.01.02 15:04:05.000", "2006.01.02 15:04:05"}

// Reader decodes quotes from an MT5 tick export.
type Reader struct {
	csv  *csv.Reader
	cols map[string]int
	loc  *time.Location
	line int
}

// NewReader reads the header row and locates the required columns.
// Timestamps in the export are wall-clock times in loc (nil means UTC).
func NewReader(r io.Reader, loc *time.Location) (*Reader, error) {
	if loc == nil {
		loc = time.UTC
	}
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("replay: header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))] = i
	}
	for _, c := range []string{colDate, colTime, colBid, colAsk} {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("replay: header missing column %s", c)
		}
	}
	return &Reader{csv: cr, cols: cols, loc: loc, line: 1}, nil
}

// Next returns the next quote, or io.EOF at the end of the file.
func (r *Reader) Next() (model.Quote, error) {
	rec, err := r.csv.Read()
	if err != nil {
		return model.Quote{}, err
	}
	r.line++

	field := func(name string) string {
		if i := r.cols[name]; i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	ts, err := parseTime(field(colDate)+" "+field(colTime), r.loc)
	if err != nil {
		return model.Quote{}, fmt.Errorf("replay: line %d: %w", r.line, err)
	}
	q := model.Quote{TS: ts}
	if q.Bid, err = parsePrice(field(colBid)); err != nil {
		return model.Quote{}, fmt.Errorf("replay: line %d: bid: %w", r.line, err)
	}
	if q.Ask, err = parsePrice(field(colAsk)); err != nil {
		return model.Quote{}, fmt.Errorf("replay: line %d: ask: %w", r.line, err)
	}
	return q, nil
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
}

func parsePrice(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.Replace(s, ",", ".", 1))
}

// Stats summarizes a replay run.
type Stats struct {
	Read     int
	Rejected int // not accepted by the handler (e.g. non-increasing timestamp)
	Errors   int // handler errors (e.g. indicator failures)
}

// Handler consumes one quote. accepted=false counts the quote as rejected;
// a non-nil error is counted and the replay continues.
type Handler func(ctx context.Context, q model.Quote) (accepted bool, err error)

// Replayer paces quotes from a Reader into a Handler.
type Replayer struct {
	speed float64
	sleep func(ctx context.Context, d time.Duration) error
	log   *slog.Logger
}

// New creates a Replayer. speed scales the recorded gaps between quotes:
// 1 is real time, 10 is ten times faster, 0 is as fast as possible. Gaps
// are capped at five seconds of wall time.
func New(speed float64, log *slog.Logger) *Replayer {
	return &Replayer{speed: speed, sleep: sleepCtx, log: log.With("component", "replay")}
}

// Run replays every quote in r. It stops at EOF, on a decode error, or
// when ctx is cancelled.
func (p *Replayer) Run(ctx context.Context, r *Reader, h Handler) (Stats, error) {
	var (
		st   Stats
		prev time.Time
	)
	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		q, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return st, err
		}
		st.Read++

		if p.speed > 0 && !prev.IsZero() {
			if gap := q.TS.Sub(prev); gap > 0 {
				d := time.Duration(float64(gap) / p.speed)
				if d > maxGap {
					d = maxGap
				}
				if err := p.sleep(ctx, d); err != nil {
					return st, err
				}
			}
		}
		prev = q.TS

		accepted, err := h(ctx, q)
		if err != nil {
			st.Errors++
			p.log.Warn("quote failed", "ts", q.TS, "error", err)
		}
		if !accepted {
			st.Rejected++
		}
	}

	p.log.Info("replay completed", "read", st.Read, "rejected", st.Rejected, "errors", st.Errors, "took", time.Since(start))
	return st, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
