// Package ticker holds the instrument's current bid/ask snapshot.
package ticker

import (
	"sync"

	"fxengine/internal/model"
)

// Holder owns the current tick. Updates replace the snapshot wholesale;
// readers always receive a consistent copy.
type Holder struct {
	mu      sync.Mutex
	digits  int32
	current model.Tick
	seen    bool

	// OnRejected is called for quotes whose timestamp does not advance (optional).
	OnRejected func(q model.Quote)
}

// New creates a Holder for an instrument quoted with the given digits.
func New(digits int32) *Holder {
	return &Holder{
		digits:  digits,
		current: model.Tick{Digits: digits},
	}
}

// Submit folds a quote into the current tick. Quotes whose timestamp is not
// strictly after the held tick are rejected without any state change.
// A non-positive side keeps the previous price for that side.
func (h *Holder) Submit(q model.Quote) (model.Tick, bool) {
	h.mu.Lock()
	if h.seen && !q.TS.After(h.current.TS) {
		cur := h.current
		rejected := h.OnRejected
		h.mu.Unlock()
		if rejected != nil {
			rejected(q)
		}
		return cur, false
	}

	next := h.current
	next.TS = q.TS
	if q.Bid.IsPositive() {
		next.Bid = q.Bid.Truncate(h.digits)
	}
	if q.Ask.IsPositive() {
		next.Ask = q.Ask.Truncate(h.digits)
	}
	next.Spread = model.Points(next.Ask.Sub(next.Bid), h.digits)

	h.current = next
	h.seen = true
	h.mu.Unlock()
	return next, true
}

// Current returns a copy of the held tick.
func (h *Holder) Current() model.Tick {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Ready reports whether both sides have been quoted with a positive price.
func (h *Holder) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current.Ready()
}
