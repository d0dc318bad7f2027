package indicator

import (
	"context"

	"github.com/markcheno/go-talib"

	"fxengine/internal/model"
)

// RSI votes on overbought/oversold closes: ≥70 SELL, ≤30 BUY.
type RSI struct {
	period int
}

// NewRSI creates an RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string { return "RSI" }

// Lookback leaves one extra period for Wilder smoothing to settle.
func (r *RSI) Lookback() int { return 2*r.period + 1 }

func (r *RSI) Vote(ctx context.Context, history []model.Candle) (model.IndicatorTrend, error) {
	if err := ctx.Err(); err != nil {
		return model.IndicatorNeutral, err
	}
	if len(history) < r.Lookback() {
		return model.IndicatorNeutral, nil
	}

	s := model.SeriesOf(history)
	v := last(talib.Rsi(s.Close, r.period))
	switch {
	case !finite(v):
		return model.IndicatorNeutral, nil
	case v >= 70:
		return model.IndicatorSell, nil
	case v <= 30:
		return model.IndicatorBuy, nil
	}
	return model.IndicatorNeutral, nil
}
