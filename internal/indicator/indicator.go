// Package indicator runs technical indicators over closed candle history
// and collects their trend votes.
//
// Every indicator implements the Indicator interface: it receives the
// frozen history (oldest first) and returns BUY, SELL or NEUTRAL.
// Indicators must not mutate the history slice; the Runner hands the
// same slice to all of them concurrently.
package indicator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"fxengine/internal/model"
)

// Indicator is the interface for all trend indicators.
type Indicator interface {
	// Name returns the registry name (e.g., "RSI", "MACD").
	Name() string

	// Lookback is the number of closed candles needed for a meaningful
	// vote. With less history the indicator votes NEUTRAL.
	Lookback() int

	// Vote computes the indicator over history and returns its trend.
	Vote(ctx context.Context, history []model.Candle) (model.IndicatorTrend, error)
}

// ErrUnknownIndicator is returned by New for names not in the registry.
var ErrUnknownIndicator = errors.New("indicator: unknown indicator")

// Params carries tunables for the built-in indicators.
type Params struct {
	RSIPeriod int

	MACDFast   int
	MACDSlow   int
	MACDSignal int

	ADXPeriod    int
	ADXThreshold float64

	CCIPeriod int

	EnvelopesPeriod    int
	EnvelopesDeviation float64 // percent
}

// DefaultParams returns the classic textbook settings.
func DefaultParams() Params {
	return Params{
		RSIPeriod:          14,
		MACDFast:           12,
		MACDSlow:           26,
		MACDSignal:         9,
		ADXPeriod:          14,
		ADXThreshold:       25,
		CCIPeriod:          14,
		EnvelopesPeriod:    14,
		EnvelopesDeviation: 0.1,
	}
}

// Validate rejects settings talib cannot compute with. Periods below two
// leave talib with empty output buffers.
func (p Params) Validate() error {
	periods := []struct {
		name string
		v    int
	}{
		{"rsi.period", p.RSIPeriod},
		{"macd.fast", p.MACDFast},
		{"macd.slow", p.MACDSlow},
		{"adx.period", p.ADXPeriod},
		{"cci.period", p.CCIPeriod},
		{"envelopes.period", p.EnvelopesPeriod},
	}
	for _, pp := range periods {
		if pp.v < 2 {
			return fmt.Errorf("indicator: %s: %d must be at least 2", pp.name, pp.v)
		}
	}
	if p.MACDSignal < 1 {
		return fmt.Errorf("indicator: macd.signal: %d must be at least 1", p.MACDSignal)
	}
	if p.MACDFast >= p.MACDSlow {
		return fmt.Errorf("indicator: macd.fast (%d) must be below macd.slow (%d)", p.MACDFast, p.MACDSlow)
	}
	if !finite(p.ADXThreshold, p.EnvelopesDeviation) || p.ADXThreshold < 0 || p.EnvelopesDeviation < 0 {
		return fmt.Errorf("indicator: adx.threshold (%g) and envelopes.deviation (%g) must be non-negative",
			p.ADXThreshold, p.EnvelopesDeviation)
	}
	return nil
}

type factory func(Params) Indicator

var registry = map[string]factory{
	"AC":        func(Params) Indicator { return NewAC() },
	"ADX":       func(p Params) Indicator { return NewADX(p.ADXPeriod, p.ADXThreshold) },
	"CCI":       func(p Params) Indicator { return NewCCI(p.CCIPeriod) },
	"ENVELOPES": func(p Params) Indicator { return NewEnvelopes(p.EnvelopesPeriod, p.EnvelopesDeviation) },
	"MACD":      func(p Params) Indicator { return NewMACD(p.MACDFast, p.MACDSlow, p.MACDSignal) },
	"RSI":       func(p Params) Indicator { return NewRSI(p.RSIPeriod) },
}

// New builds a built-in indicator by name (case-insensitive).
func New(name string, p Params) (Indicator, error) {
	f, ok := registry[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIndicator, name)
	}
	return f(p), nil
}

// Known lists the built-in indicator names in sorted order.
func Known() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// last returns the final element of a talib output, or NaN when empty.
func last(v []float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	return v[len(v)-1]
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
