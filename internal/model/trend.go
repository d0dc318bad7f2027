package model

import "fmt"

// IndicatorTrend is the vote of a single indicator.
type IndicatorTrend int

const (
	IndicatorNeutral IndicatorTrend = iota
	IndicatorBuy
	IndicatorSell
)

func (t IndicatorTrend) String() string {
	switch t {
	case IndicatorBuy:
		return "BUY"
	case IndicatorSell:
		return "SELL"
	case IndicatorNeutral:
		return "NEUTRAL"
	}
	return fmt.Sprintf("IndicatorTrend(%d)", int(t))
}

// Weight maps a vote onto the signed-sum scale.
func (t IndicatorTrend) Weight() int {
	switch t {
	case IndicatorBuy:
		return 1
	case IndicatorSell:
		return -1
	case IndicatorNeutral:
		return 0
	}
	panic(fmt.Sprintf("model: unknown indicator trend %d", int(t)))
}

// SignalTrend is the consensus trend of all indicators for one candle.
type SignalTrend int

const (
	SignalNeutral SignalTrend = iota
	SignalStrongBuy
	SignalBuy
	SignalSell
	SignalStrongSell
)

func (t SignalTrend) String() string {
	switch t {
	case SignalStrongBuy:
		return "STRONG_BUY"
	case SignalBuy:
		return "BUY"
	case SignalNeutral:
		return "NEUTRAL"
	case SignalSell:
		return "SELL"
	case SignalStrongSell:
		return "STRONG_SELL"
	}
	return fmt.Sprintf("SignalTrend(%d)", int(t))
}

// ParseSignalTrend is the inverse of SignalTrend.String.
func ParseSignalTrend(s string) (SignalTrend, error) {
	for _, t := range []SignalTrend{SignalStrongBuy, SignalBuy, SignalNeutral, SignalSell, SignalStrongSell} {
		if t.String() == s {
			return t, nil
		}
	}
	return SignalNeutral, fmt.Errorf("model: unknown signal trend %q", s)
}

// Strong reports whether the trend is unanimous.
func (t SignalTrend) Strong() bool {
	return t == SignalStrongBuy || t == SignalStrongSell
}

func (t IndicatorTrend) MarshalText() ([]byte, error) { return []byte(t.String()), nil }
func (t SignalTrend) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *SignalTrend) UnmarshalText(b []byte) error {
	v, err := ParseSignalTrend(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseIndicatorTrend is the inverse of IndicatorTrend.String.
func ParseIndicatorTrend(s string) (IndicatorTrend, error) {
	for _, t := range []IndicatorTrend{IndicatorBuy, IndicatorSell, IndicatorNeutral} {
		if t.String() == s {
			return t, nil
		}
	}
	return IndicatorNeutral, fmt.Errorf("model: unknown indicator trend %q", s)
}

func (t *IndicatorTrend) UnmarshalText(b []byte) error {
	v, err := ParseIndicatorTrend(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
