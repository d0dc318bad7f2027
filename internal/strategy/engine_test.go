package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxengine/internal/model"
)

const (
	buy     = model.IndicatorBuy
	sell    = model.IndicatorSell
	neutral = model.IndicatorNeutral
)

func votes(ts ...model.IndicatorTrend) map[string]model.IndicatorTrend {
	names := []string{"ADX", "AC", "MACD", "RSI", "CCI", "ENVELOPES"}
	m := make(map[string]model.IndicatorTrend, len(ts))
	for i, t := range ts {
		m[names[i]] = t
	}
	return m
}

func TestReduce(t *testing.T) {
	tests := []struct {
		name  string
		votes map[string]model.IndicatorTrend
		want  model.SignalTrend
	}{
		{"unanimous buy", votes(buy, buy, buy, buy, buy), model.SignalStrongBuy},
		{"unanimous sell", votes(sell, sell, sell, sell, sell), model.SignalStrongSell},
		{"majority buy", votes(buy, buy, sell, neutral, neutral), model.SignalBuy},
		{"majority sell", votes(sell, sell, buy, neutral, neutral), model.SignalSell},
		{"all neutral", votes(neutral, neutral, neutral, neutral, neutral), model.SignalNeutral},
		{"balanced", votes(buy, sell, buy, sell, neutral), model.SignalNeutral},
		{"buy with abstentions", votes(buy, neutral, neutral), model.SignalBuy},
		{"single buy", votes(buy), model.SignalStrongBuy},
		{"empty", votes(), model.SignalNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reduce(tt.votes))
		})
	}
}

type denyGate struct {
	asked []model.SignalTrend
}

func (g *denyGate) IsCompatible(t model.SignalTrend) bool {
	g.asked = append(g.asked, t)
	return false
}

var t0 = time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)

func TestAggregator_GateDowngrades(t *testing.T) {
	gate := &denyGate{}
	a := NewAggregator(gate, 0)

	var downgraded []model.SignalTrend
	a.OnDowngrade = func(from model.SignalTrend) { downgraded = append(downgraded, from) }

	sig, ok := a.Emit(t0, votes(buy, buy, buy, buy, buy))
	require.True(t, ok)
	assert.Equal(t, model.SignalNeutral, sig.Trend)
	assert.Equal(t, []model.SignalTrend{model.SignalStrongBuy}, downgraded)
	assert.Len(t, sig.Votes, 5)

	_, ok = a.Emit(t0.Add(15*time.Minute), votes(neutral, neutral))
	require.True(t, ok)
	assert.Len(t, gate.asked, 1, "NEUTRAL never consults the gate")
}

func TestAggregator_StrictlyIncreasingTimestamps(t *testing.T) {
	a := NewAggregator(nil, 0)

	first, ok := a.Emit(t0, votes(buy, buy))
	require.True(t, ok)
	assert.Equal(t, model.SignalStrongBuy, first.Trend)

	again, ok := a.Emit(t0, votes(sell, sell))
	assert.False(t, ok, "same candle is not reprocessed")
	assert.Equal(t, first.TS, again.TS)
	assert.Equal(t, model.SignalStrongBuy, a.Last().Trend)

	_, ok = a.Emit(t0.Add(-time.Minute), votes(sell))
	assert.False(t, ok)

	next, ok := a.Emit(t0.Add(15*time.Minute), votes(sell, sell))
	require.True(t, ok)
	assert.Equal(t, model.SignalStrongSell, next.Trend)
}

func TestAggregator_RunInterval(t *testing.T) {
	a := NewAggregator(nil, 30*time.Minute)

	_, ok := a.Emit(t0, votes(buy))
	require.True(t, ok)

	assert.False(t, a.Due(t0.Add(15*time.Minute)))
	_, ok = a.Emit(t0.Add(15*time.Minute), votes(sell))
	assert.False(t, ok)

	assert.True(t, a.Due(t0.Add(30*time.Minute)))
	sig, ok := a.Emit(t0.Add(30*time.Minute), votes(sell))
	require.True(t, ok)
	assert.Equal(t, t0.Add(30*time.Minute), sig.TS)
}

func TestAggregator_VotesAreCopied(t *testing.T) {
	a := NewAggregator(nil, 0)
	v := votes(buy, sell)
	sig, _ := a.Emit(t0, v)

	v["ADX"] = sell
	assert.Equal(t, buy, sig.Votes["ADX"])
	assert.True(t, a.Last().TS.Equal(t0))
}
