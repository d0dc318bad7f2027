package pipeline

import (
	"time"

	"fxengine/internal/metrics"
	"fxengine/internal/model"
)

// Instrument connects component hooks to Prometheus metrics and the
// health status. Call before the first SubmitTick. h may be nil.
func (p *Pipeline) Instrument(m *metrics.Metrics, h *metrics.HealthStatus) {
	p.ticks.OnRejected = func(model.Quote) {
		m.TicksTotal.WithLabelValues("rejected").Inc()
	}
	p.candles.OnClosed = func(model.Candle) {
		m.CandlesTotal.Inc()
	}
	p.candles.OnDroppedTick = func(model.Tick) {
		m.DroppedTicks.Inc()
	}
	p.runner.OnEvaluate = func(name string, took time.Duration, err error) {
		m.IndicatorDur.WithLabelValues(name).Observe(took.Seconds())
		if err != nil {
			m.IndicatorFailures.WithLabelValues(name).Inc()
		}
	}
	p.signals.OnEmit = func(sig model.Signal) {
		m.SignalsTotal.WithLabelValues(sig.Trend.String()).Inc()
		if h != nil {
			h.SetLastSignalTime(sig.TS)
		}
	}
	p.signals.OnDowngrade = func(from model.SignalTrend) {
		m.SignalDowngrades.WithLabelValues(from.String()).Inc()
	}
	p.orders.OnOpened = func(o model.Order) {
		m.OrdersOpened.WithLabelValues(o.Side.String()).Inc()
	}
	p.orders.OnClosed = func(o model.Order) {
		m.OrdersClosed.WithLabelValues(o.Status.String()).Inc()
	}
	p.OnEvaluated = func(took time.Duration) {
		m.EvaluationDur.Observe(took.Seconds())
	}
	p.OnEvalError = func(error) {
		if h != nil {
			h.SetIndicatorOK(false)
		}
	}
	p.OnSinkError = func(sink string, _ error) {
		m.SinkErrors.WithLabelValues(sink).Inc()
	}

	var evicted uint64
	p.OnCycle = func(r Result, took time.Duration) {
		m.CycleDur.Observe(took.Seconds())
		m.TicksTotal.WithLabelValues("accepted").Inc()
		m.Spread.Set(float64(r.Tick.Spread))
		if r.Traded {
			m.Balance.Set(r.Cycle.Ledger.Balance.InexactFloat64())
			m.OpenOrders.Set(float64(r.Cycle.Ledger.OpenOrders))
			if r.Cycle.Skip != "" {
				m.OpenSkipped.WithLabelValues(string(r.Cycle.Skip)).Inc()
			}
		}
		if n := p.candles.Evicted(); n > evicted {
			m.CandlesEvicted.Add(float64(n - evicted))
			evicted = n
		}
		if h != nil {
			h.SetLastTickTime(r.Tick.TS)
			if r.NewSignal {
				h.SetIndicatorOK(true)
			}
		}
	}
}
