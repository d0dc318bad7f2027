package ticker

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxengine/internal/model"
)

var t0 = time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)

func quote(sec int, bid, ask string) model.Quote {
	q := model.Quote{TS: t0.Add(time.Duration(sec) * time.Second)}
	if bid != "" {
		q.Bid = decimal.RequireFromString(bid)
	}
	if ask != "" {
		q.Ask = decimal.RequireFromString(ask)
	}
	return q
}

func TestHolder_ReadyNeedsBothSides(t *testing.T) {
	h := New(5)
	assert.False(t, h.Ready())

	_, ok := h.Submit(quote(1, "1.10000", ""))
	require.True(t, ok)
	assert.False(t, h.Ready(), "ask never quoted")

	tick, ok := h.Submit(quote(2, "", "1.10012"))
	require.True(t, ok)
	assert.True(t, h.Ready())
	assert.Equal(t, "1.1", tick.Bid.String(), "bid kept from previous quote")
	assert.Equal(t, 12, tick.Spread)
}

func TestHolder_RejectsNonIncreasingTimestamp(t *testing.T) {
	h := New(5)
	var rejected int
	h.OnRejected = func(model.Quote) { rejected++ }

	_, ok := h.Submit(quote(10, "1.10000", "1.10010"))
	require.True(t, ok)

	before := h.Current()
	_, ok = h.Submit(quote(10, "1.20000", "1.20010"))
	assert.False(t, ok, "equal timestamp")
	_, ok = h.Submit(quote(9, "1.20000", "1.20010"))
	assert.False(t, ok, "older timestamp")

	assert.Equal(t, before, h.Current())
	assert.Equal(t, 2, rejected)
}

func TestHolder_NonPositiveSideIgnored(t *testing.T) {
	h := New(5)
	h.Submit(quote(1, "1.10000", "1.10010"))

	tick, ok := h.Submit(quote(2, "-1", "0"))
	require.True(t, ok)
	assert.True(t, tick.Bid.Equal(decimal.RequireFromString("1.1")))
	assert.True(t, tick.Ask.Equal(decimal.RequireFromString("1.1001")))
	assert.Equal(t, t0.Add(2*time.Second), tick.TS)
}

func TestHolder_TruncatesToDigits(t *testing.T) {
	h := New(5)
	tick, _ := h.Submit(quote(1, "1.1000099", "1.1001299"))
	assert.Equal(t, "1.1", tick.Bid.String())
	assert.Equal(t, "1.10012", tick.Ask.String())
	assert.Equal(t, 12, tick.Spread)
	assert.Equal(t, int32(5), tick.Digits)
}
