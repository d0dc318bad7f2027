// Package ringbuf provides a bounded FIFO window of closed candles.
// Pushing into a full window evicts the oldest entry. Not safe for
// concurrent use; the owning aggregator serializes access.
package ringbuf

import "fxengine/internal/model"

// Window keeps the most recent Cap() candles in insertion order.
type Window struct {
	buf  []model.Candle
	head int // index of the oldest entry
	size int

	evicted uint64
}

// New creates a window holding exactly capacity candles. Minimum capacity is 1.
func New(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]model.Candle, capacity)}
}

// Push appends c as the newest entry. It returns the evicted candle and
// true when the window was already full.
func (w *Window) Push(c model.Candle) (model.Candle, bool) {
	if w.size < len(w.buf) {
		w.buf[(w.head+w.size)%len(w.buf)] = c
		w.size++
		return model.Candle{}, false
	}

	old := w.buf[w.head]
	w.buf[w.head] = c
	w.head = (w.head + 1) % len(w.buf)
	w.evicted++
	return old, true
}

// At returns the i-th oldest candle (0 = oldest).
func (w *Window) At(i int) (model.Candle, bool) {
	if i < 0 || i >= w.size {
		return model.Candle{}, false
	}
	return w.buf[(w.head+i)%len(w.buf)], true
}

// Newest returns the most recently pushed candle.
func (w *Window) Newest() (model.Candle, bool) {
	return w.At(w.size - 1)
}

// Slice copies the window contents, oldest first.
func (w *Window) Slice() []model.Candle {
	out := make([]model.Candle, w.size)
	for i := range out {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

// Len returns the current number of candles.
func (w *Window) Len() int { return w.size }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Full reports whether the next Push will evict.
func (w *Window) Full() bool { return w.size == len(w.buf) }

// Evicted returns the total number of candles dropped on overflow.
func (w *Window) Evicted() uint64 { return w.evicted }
