package indicator

import (
	"context"

	"github.com/markcheno/go-talib"

	"fxengine/internal/model"
)

// Bill Williams' periods.
const (
	aoFast = 5
	aoSlow = 34
	acAvg  = 5
)

// AC is the Accelerator Oscillator: AO minus its 5-period average, where
// AO = SMA5(median) − SMA34(median). Two consecutive rising bars above
// zero vote BUY; two falling bars below zero vote SELL.
type AC struct{}

func NewAC() *AC { return &AC{} }

func (a *AC) Name() string { return "AC" }

// Lookback covers AO warm-up, the AC average and three AC bars.
func (a *AC) Lookback() int { return aoSlow + acAvg + 1 }

func (a *AC) Vote(ctx context.Context, history []model.Candle) (model.IndicatorTrend, error) {
	if err := ctx.Err(); err != nil {
		return model.IndicatorNeutral, err
	}
	if len(history) < a.Lookback() {
		return model.IndicatorNeutral, nil
	}

	ac := accelerator(model.SeriesOf(history))
	if len(ac) < 3 {
		return model.IndicatorNeutral, nil
	}
	a0, a1, a2 := ac[len(ac)-3], ac[len(ac)-2], ac[len(ac)-1]
	switch {
	case !finite(a0, a1, a2):
		return model.IndicatorNeutral, nil
	case a2 > a1 && a1 > a0 && a2 > 0:
		return model.IndicatorBuy, nil
	case a2 < a1 && a1 < a0 && a2 < 0:
		return model.IndicatorSell, nil
	}
	return model.IndicatorNeutral, nil
}

// accelerator returns only the fully warmed-up AC values.
func accelerator(s model.Series) []float64 {
	med := talib.MedPrice(s.High, s.Low)
	fast := talib.Sma(med, aoFast)
	slow := talib.Sma(med, aoSlow)
	if len(med) < aoSlow {
		return nil
	}

	ao := make([]float64, 0, len(med)-aoSlow+1)
	for i := aoSlow - 1; i < len(med); i++ {
		ao = append(ao, fast[i]-slow[i])
	}
	if len(ao) < acAvg {
		return nil
	}

	avg := talib.Sma(ao, acAvg)
	out := make([]float64, 0, len(ao)-acAvg+1)
	for i := acAvg - 1; i < len(ao); i++ {
		out = append(out, ao[i]-avg[i])
	}
	return out
}
