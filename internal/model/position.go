package model

import "fmt"

// Side is the direction of an order.
type Side int

const (
	SideBuy Side = iota + 1
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func ParseSide(s string) (Side, error) {
	switch s {
	case "BUY":
		return SideBuy, nil
	case "SELL":
		return SideSell, nil
	}
	return 0, fmt.Errorf("model: unknown side %q", s)
}

// SideOf maps a consensus trend to the side it would open. ok is false for
// NEUTRAL and for weak trends when strongOnly is set.
func SideOf(t SignalTrend, strongOnly bool) (side Side, ok bool) {
	switch t {
	case SignalStrongBuy:
		return SideBuy, true
	case SignalStrongSell:
		return SideSell, true
	case SignalBuy:
		return SideBuy, !strongOnly
	case SignalSell:
		return SideSell, !strongOnly
	case SignalNeutral:
		return 0, false
	}
	return 0, false
}
