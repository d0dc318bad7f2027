package indicator

import (
	"context"

	"github.com/markcheno/go-talib"

	"fxengine/internal/model"
)

// MACD votes on signal-line position below/above the zero line.
type MACD struct {
	fast, slow, signal int
}

// NewMACD creates a MACD indicator (typically 12, 26, 9).
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{fast: fast, slow: slow, signal: signal}
}

func (m *MACD) Name() string { return "MACD" }

func (m *MACD) Lookback() int { return m.slow + m.signal + 1 }

func (m *MACD) Vote(ctx context.Context, history []model.Candle) (model.IndicatorTrend, error) {
	if err := ctx.Err(); err != nil {
		return model.IndicatorNeutral, err
	}
	if len(history) < m.Lookback() {
		return model.IndicatorNeutral, nil
	}

	s := model.SeriesOf(history)
	macd, signal, _ := talib.Macd(s.Close, m.fast, m.slow, m.signal)
	mv, sv := last(macd), last(signal)
	switch {
	case !finite(mv, sv):
		return model.IndicatorNeutral, nil
	case mv > sv && mv < 0:
		return model.IndicatorBuy, nil
	case mv < sv && mv > 0:
		return model.IndicatorSell, nil
	}
	return model.IndicatorNeutral, nil
}
