package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is the OHLC summary of every tick inside one timeframe bucket.
// It is mutated only while it is the aggregator's current candle.
type Candle struct {
	BucketStart time.Time       `json:"bucket_start"` // canonical bucket timestamp
	RealClose   time.Time       `json:"real_close"`   // timestamp of the last tick folded in
	Open        decimal.Decimal `json:"open"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Close       decimal.Decimal `json:"close"`
	Digits      int32           `json:"digits"`
}

// Series holds float64 columns of a candle history for indicator math.
type Series struct {
	Open  []float64
	High  []float64
	Low   []float64
	Close []float64
}

// SeriesOf flattens candles (oldest first) into float64 columns.
func SeriesOf(candles []Candle) Series {
	s := Series{
		Open:  make([]float64, len(candles)),
		High:  make([]float64, len(candles)),
		Low:   make([]float64, len(candles)),
		Close: make([]float64, len(candles)),
	}
	for i, c := range candles {
		s.Open[i] = c.Open.InexactFloat64()
		s.High[i] = c.High.InexactFloat64()
		s.Low[i] = c.Low.InexactFloat64()
		s.Close[i] = c.Close.InexactFloat64()
	}
	return s
}
