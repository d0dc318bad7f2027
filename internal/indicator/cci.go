package indicator

import (
	"context"

	"github.com/markcheno/go-talib"

	"fxengine/internal/model"
)

// CCI votes on the commodity channel index leaving the ±100 band.
type CCI struct {
	period int
}

func NewCCI(period int) *CCI {
	return &CCI{period: period}
}

func (c *CCI) Name() string { return "CCI" }

func (c *CCI) Lookback() int { return c.period + 1 }

func (c *CCI) Vote(ctx context.Context, history []model.Candle) (model.IndicatorTrend, error) {
	if err := ctx.Err(); err != nil {
		return model.IndicatorNeutral, err
	}
	if len(history) < c.Lookback() {
		return model.IndicatorNeutral, nil
	}

	s := model.SeriesOf(history)
	v := last(talib.Cci(s.High, s.Low, s.Close, c.period))
	switch {
	case !finite(v):
		return model.IndicatorNeutral, nil
	case v < -100:
		return model.IndicatorBuy, nil
	case v > 100:
		return model.IndicatorSell, nil
	}
	return model.IndicatorNeutral, nil
}
