package model

import "time"

// Signal is the consensus decision for one closed candle.
type Signal struct {
	TS    time.Time                 `json:"ts"` // bucket start of the closed candle
	Trend SignalTrend               `json:"trend"`
	Votes map[string]IndicatorTrend `json:"votes,omitempty"`
}

// IsZero reports whether no signal has been produced yet.
func (s Signal) IsZero() bool {
	return s.TS.IsZero()
}
