// Package agg builds timeframe candles from ticks and keeps a bounded
// history of closed candles.
package agg

import (
	"sync"
	"time"

	"fxengine/internal/marketdata/timeframe"
	"fxengine/internal/model"
	"fxengine/internal/ringbuf"
)

// Aggregator folds ticks into the current candle and freezes it into
// history when a tick lands in a different bucket. History is ordered
// oldest → newest.
type Aggregator struct {
	mu      sync.Mutex
	tf      timeframe.Timeframe
	history *ringbuf.Window
	current model.Candle
	open    bool // current holds an in-progress candle
	frozen  uint64

	// Metrics hooks (optional, set externally). Called without the lock held.
	OnClosed      func(c model.Candle)
	OnDroppedTick func(t model.Tick)
}

// New creates an Aggregator for tf keeping at most capacity closed candles.
func New(tf timeframe.Timeframe, capacity int) *Aggregator {
	return &Aggregator{
		tf:      tf,
		history: ringbuf.New(capacity),
	}
}

// Timeframe returns the bucket width.
func (a *Aggregator) Timeframe() timeframe.Timeframe { return a.tf }

// Add incorporates one tick. It returns true when the tick rolled the
// previous candle into history.
func (a *Aggregator) Add(tick model.Tick) bool {
	price := tick.ChartPrice()
	bucket := a.tf.BucketStart(tick.TS)

	a.mu.Lock()

	if a.open && bucket.Before(a.current.BucketStart) {
		// Late tick from an older bucket, drop it
		a.mu.Unlock()
		if a.OnDroppedTick != nil {
			a.OnDroppedTick(tick)
		}
		return false
	}

	if a.open && bucket.Equal(a.current.BucketStart) {
		c := &a.current
		if price.GreaterThan(c.High) {
			c.High = price
		}
		if price.LessThan(c.Low) {
			c.Low = price
		}
		c.Close = price
		c.RealClose = tick.TS
		a.mu.Unlock()
		return false
	}

	var (
		closed    model.Candle
		didFreeze bool
	)
	if a.open {
		closed = a.current
		a.history.Push(closed)
		a.frozen++
		didFreeze = true
	}
	a.current = model.Candle{
		BucketStart: bucket,
		RealClose:   tick.TS,
		Open:        price,
		High:        price,
		Low:         price,
		Close:       price,
		Digits:      tick.Digits,
	}
	a.open = true
	a.mu.Unlock()

	if didFreeze && a.OnClosed != nil {
		a.OnClosed(closed)
	}
	return didFreeze
}

// Ready reports whether the history holds at least one candle that spans
// a complete bucket. The first frozen candle may have started mid-bucket,
// so two freezes are required.
func (a *Aggregator) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Len() > 0 && a.frozen >= 2
}

// LastClosed returns the most recently frozen candle.
func (a *Aggregator) LastClosed() (model.Candle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Newest()
}

// ClosedAt returns the i-th oldest candle in the history window (0 = oldest).
func (a *Aggregator) ClosedAt(i int) (model.Candle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.At(i)
}

// History returns a copy of the closed candles, oldest first.
func (a *Aggregator) History() []model.Candle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Slice()
}

// Current returns the in-progress candle, if any.
func (a *Aggregator) Current() (model.Candle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current, a.open
}

// Len returns the number of closed candles held.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Len()
}

// Evicted returns how many closed candles fell out of the window.
func (a *Aggregator) Evicted() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Evicted()
}

// NextClose returns the time the current candle's bucket ends.
func (a *Aggregator) NextClose() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.open {
		return time.Time{}, false
	}
	return a.current.BucketStart.Add(a.tf.Duration()), true
}
