package indicator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxengine/internal/model"
)

type fake struct {
	name  string
	trend model.IndicatorTrend
	err   error
	delay time.Duration
	block bool // ignore context entirely

	calls   atomic.Int32
	stopped atomic.Bool
}

func (f *fake) Name() string  { return f.name }
func (f *fake) Lookback() int { return 3 }

func (f *fake) Vote(ctx context.Context, _ []model.Candle) (model.IndicatorTrend, error) {
	f.calls.Add(1)
	if f.block {
		time.Sleep(f.delay)
		return f.trend, nil
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			f.stopped.Store(true)
			return model.IndicatorNeutral, ctx.Err()
		}
	}
	return f.trend, f.err
}

func TestRunner_CollectsAllVotes(t *testing.T) {
	r := NewRunner(time.Second)
	require.NoError(t, r.Register(&fake{name: "A", trend: model.IndicatorBuy}))
	require.NoError(t, r.Register(&fake{name: "B", trend: model.IndicatorSell, delay: 20 * time.Millisecond}))
	require.NoError(t, r.Register(&fake{name: "C"}))

	votes, err := r.Evaluate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]model.IndicatorTrend{
		"A": model.IndicatorBuy,
		"B": model.IndicatorSell,
		"C": model.IndicatorNeutral,
	}, votes)
	assert.Equal(t, []string{"A", "B", "C"}, r.Names())
}

func TestRunner_RunsInParallel(t *testing.T) {
	r := NewRunner(0)
	for _, n := range []string{"A", "B", "C", "D"} {
		require.NoError(t, r.Register(&fake{name: n, delay: 100 * time.Millisecond}))
	}

	start := time.Now()
	_, err := r.Evaluate(context.Background(), nil)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 350*time.Millisecond)
}

func TestRunner_FailFast(t *testing.T) {
	boom := errors.New("boom")
	slow := &fake{name: "slow", delay: 5 * time.Second}

	r := NewRunner(0)
	require.NoError(t, r.Register(&fake{name: "bad", err: boom}))
	require.NoError(t, r.Register(slow))
	require.NoError(t, r.Register(&fake{name: "ok", trend: model.IndicatorBuy}))

	start := time.Now()
	votes, err := r.Evaluate(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "indicator bad")
	assert.Nil(t, votes, "no partial consensus")
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, slow.stopped.Load(), "remaining tasks cancelled")
}

func TestRunner_Timeout(t *testing.T) {
	r := NewRunner(50 * time.Millisecond)
	require.NoError(t, r.Register(&fake{name: "stuck", delay: 2 * time.Second, block: true}))
	require.NoError(t, r.Register(&fake{name: "ok"}))

	start := time.Now()
	_, err := r.Evaluate(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndicatorTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRunner_ParentCancelIsNotTimeout(t *testing.T) {
	r := NewRunner(time.Second)
	require.NoError(t, r.Register(&fake{name: "slow", delay: time.Second}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Evaluate(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrIndicatorTimeout)
}

func TestRunner_NoIndicators(t *testing.T) {
	_, err := NewRunner(0).Evaluate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoIndicators)
}

func TestRunner_DuplicateName(t *testing.T) {
	r := NewRunner(0)
	require.NoError(t, r.Register(&fake{name: "RSI"}))
	assert.Error(t, r.Register(&fake{name: "RSI"}))
	assert.Equal(t, 1, r.Len())
}

func TestRunner_LookbackAndHook(t *testing.T) {
	r := NewRunner(0)
	require.NoError(t, r.Register(NewRSI(14)))
	require.NoError(t, r.Register(NewMACD(12, 26, 9)))
	assert.Equal(t, 36, r.Lookback())

	var seen atomic.Int32
	r.OnEvaluate = func(string, time.Duration, error) { seen.Add(1) }
	_, err := r.Evaluate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), seen.Load())
}
