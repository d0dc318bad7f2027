package indicator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fxengine/internal/model"
)

var (
	// ErrNoIndicators is returned by Evaluate when nothing is registered.
	ErrNoIndicators = errors.New("indicator: no indicators registered")

	// ErrIndicatorTimeout marks a task that exceeded the per-indicator timeout.
	ErrIndicatorTimeout = errors.New("indicator: timed out")
)

// Runner owns the indicator registry and evaluates every indicator in
// parallel against the same history. Evaluation is all-or-nothing: the
// first failure cancels the remaining tasks and fails the call.
type Runner struct {
	mu         sync.RWMutex
	indicators []Indicator
	names      map[string]struct{}
	timeout    time.Duration

	// OnEvaluate is called after each indicator task (optional).
	OnEvaluate func(name string, took time.Duration, err error)
}

// NewRunner creates a Runner. A zero timeout disables the per-task bound.
func NewRunner(timeout time.Duration) *Runner {
	return &Runner{
		names:   make(map[string]struct{}),
		timeout: timeout,
	}
}

// Register adds an indicator. Names must be unique.
func (r *Runner) Register(ind Indicator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := ind.Name()
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("indicator: %s already registered", name)
	}
	r.names[name] = struct{}{}
	r.indicators = append(r.indicators, ind)
	return nil
}

// Names returns registered names in registration order.
func (r *Runner) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.indicators))
	for i, ind := range r.indicators {
		out[i] = ind.Name()
	}
	return out
}

// Len returns the number of registered indicators.
func (r *Runner) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.indicators)
}

// Lookback returns the largest history requirement among registered indicators.
func (r *Runner) Lookback() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, ind := range r.indicators {
		if lb := ind.Lookback(); lb > n {
			n = lb
		}
	}
	return n
}

// Evaluate runs one task per registered indicator and blocks until all
// have finished. history must not be modified until Evaluate returns.
func (r *Runner) Evaluate(ctx context.Context, history []model.Candle) (map[string]model.IndicatorTrend, error) {
	r.mu.RLock()
	inds := make([]Indicator, len(r.indicators))
	copy(inds, r.indicators)
	r.mu.RUnlock()

	if len(inds) == 0 {
		return nil, ErrNoIndicators
	}

	// one slot per task, no shared writes
	votes := make([]model.IndicatorTrend, len(inds))

	g, gctx := errgroup.WithContext(ctx)
	for i, ind := range inds {
		i, ind := i, ind
		g.Go(func() error {
			start := time.Now()
			v, err := r.run(gctx, ind, history)
			if r.OnEvaluate != nil {
				r.OnEvaluate(ind.Name(), time.Since(start), err)
			}
			if err != nil {
				return fmt.Errorf("indicator %s: %w", ind.Name(), err)
			}
			votes[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]model.IndicatorTrend, len(inds))
	for i, ind := range inds {
		out[ind.Name()] = votes[i]
	}
	return out, nil
}

type outcome struct {
	trend model.IndicatorTrend
	err   error
}

// run calls ind.Vote, bounding it by the runner timeout. An indicator that
// ignores its context is abandoned once the deadline passes.
func (r *Runner) run(ctx context.Context, ind Indicator, history []model.Candle) (model.IndicatorTrend, error) {
	if r.timeout <= 0 {
		return ind.Vote(ctx, history)
	}

	tctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		v, err := ind.Vote(tctx, history)
		done <- outcome{v, err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return model.IndicatorNeutral, ErrIndicatorTimeout
		}
		return res.trend, res.err
	case <-tctx.Done():
		if ctx.Err() != nil {
			return model.IndicatorNeutral, ctx.Err()
		}
		return model.IndicatorNeutral, ErrIndicatorTimeout
	}
}
