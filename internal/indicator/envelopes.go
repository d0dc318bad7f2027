package indicator

import (
	"context"

	"github.com/markcheno/go-talib"

	"fxengine/internal/model"
)

// Envelopes brackets a simple moving average by ±deviation percent and
// votes against closes that break out of the band.
type Envelopes struct {
	period    int
	deviation float64
}

func NewEnvelopes(period int, deviation float64) *Envelopes {
	return &Envelopes{period: period, deviation: deviation}
}

func (e *Envelopes) Name() string { return "ENVELOPES" }

func (e *Envelopes) Lookback() int { return e.period + 1 }

func (e *Envelopes) Vote(ctx context.Context, history []model.Candle) (model.IndicatorTrend, error) {
	if err := ctx.Err(); err != nil {
		return model.IndicatorNeutral, err
	}
	if len(history) < e.Lookback() {
		return model.IndicatorNeutral, nil
	}

	s := model.SeriesOf(history)
	ma := last(talib.Sma(s.Close, e.period))
	closePrice := last(s.Close)
	if !finite(ma, closePrice) {
		return model.IndicatorNeutral, nil
	}

	upper := ma * (1 + e.deviation/100)
	lower := ma * (1 - e.deviation/100)
	switch {
	case closePrice > upper:
		return model.IndicatorSell, nil
	case closePrice < lower:
		return model.IndicatorBuy, nil
	}
	return model.IndicatorNeutral, nil
}
