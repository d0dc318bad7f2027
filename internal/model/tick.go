package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a raw bid/ask update from a price feed. A side that is zero or
// negative is absent and leaves the held price for that side unchanged.
type Quote struct {
	TS  time.Time       `json:"ts"`
	Bid decimal.Decimal `json:"bid"`
	Ask decimal.Decimal `json:"ask"`
}

// Tick is the current bid/ask snapshot of the instrument. It is replaced
// wholesale on every accepted quote and never mutated in place.
type Tick struct {
	TS     time.Time       `json:"ts"`
	Bid    decimal.Decimal `json:"bid"`    // truncated to Digits
	Ask    decimal.Decimal `json:"ask"`    // truncated to Digits
	Spread int             `json:"spread"` // points
	Digits int32           `json:"digits"`
}

// Ready reports whether both sides carry a positive price.
func (t Tick) Ready() bool {
	return t.Bid.IsPositive() && t.Ask.IsPositive()
}

// ChartPrice is the price a tick contributes to candles. Charts are bid based.
func (t Tick) ChartPrice() decimal.Decimal {
	return t.Bid
}
