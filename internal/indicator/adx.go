package indicator

import (
	"context"

	"github.com/markcheno/go-talib"

	"fxengine/internal/model"
)

// ADX votes only when a trend is strong enough; the direction comes from
// the directional indicators.
type ADX struct {
	period    int
	threshold float64
}

// NewADX creates an ADX indicator. threshold is the minimum ADX value
// (typically 25) for a non-neutral vote.
func NewADX(period int, threshold float64) *ADX {
	return &ADX{period: period, threshold: threshold}
}

func (a *ADX) Name() string { return "ADX" }

func (a *ADX) Lookback() int { return 3 * a.period }

func (a *ADX) Vote(ctx context.Context, history []model.Candle) (model.IndicatorTrend, error) {
	if err := ctx.Err(); err != nil {
		return model.IndicatorNeutral, err
	}
	if len(history) < a.Lookback() {
		return model.IndicatorNeutral, nil
	}

	s := model.SeriesOf(history)
	adx := last(talib.Adx(s.High, s.Low, s.Close, a.period))
	plus := last(talib.PlusDI(s.High, s.Low, s.Close, a.period))
	minus := last(talib.MinusDI(s.High, s.Low, s.Close, a.period))
	if !finite(adx, plus, minus) || adx < a.threshold {
		return model.IndicatorNeutral, nil
	}
	if plus > minus {
		return model.IndicatorBuy, nil
	}
	return model.IndicatorSell, nil
}
