package portfolio

import (
	"sync"

	"fxengine/internal/model"
)

// DefaultSideMin effectively disables the per-side compatibility floor.
const DefaultSideMin = -1000

// Performance tracks closed-order results. A take-profit counts as a win
// and a stop-loss as a loss.
type Performance struct {
	mu      sync.RWMutex
	wins    map[model.Side]int
	losses  map[model.Side]int
	sideMin int
}

// Stats is a point-in-time copy of Performance.
type Stats struct {
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`
	BuyWins    int `json:"buy_wins"`
	BuyLosses  int `json:"buy_losses"`
	SellWins   int `json:"sell_wins"`
	SellLosses int `json:"sell_losses"`
}

// NewPerformance creates a tracker. Trends whose side has a wins − losses
// difference below sideMin are reported incompatible.
func NewPerformance(sideMin int) *Performance {
	return &Performance{
		wins:    make(map[model.Side]int, 2),
		losses:  make(map[model.Side]int, 2),
		sideMin: sideMin,
	}
}

// Record counts a terminal order. OPEN orders are ignored.
func (p *Performance) Record(o model.Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch o.Status {
	case model.StatusCloseTP:
		p.wins[o.Side]++
	case model.StatusCloseSL:
		p.losses[o.Side]++
	case model.StatusOpen:
	}
}

// Diff returns total wins minus total losses.
func (p *Performance) Diff() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.wins[model.SideBuy] + p.wins[model.SideSell] -
		p.losses[model.SideBuy] - p.losses[model.SideSell]
}

// SideDiff returns wins minus losses for one side.
func (p *Performance) SideDiff(s model.Side) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.wins[s] - p.losses[s]
}

// IsCompatible reports whether trend's side has performed at or above
// the floor. NEUTRAL is always compatible.
func (p *Performance) IsCompatible(t model.SignalTrend) bool {
	side, ok := model.SideOf(t, false)
	if !ok {
		return true
	}
	return p.SideDiff(side) >= p.sideMin
}

// Snapshot returns the current counters.
func (p *Performance) Snapshot() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := Stats{
		BuyWins:    p.wins[model.SideBuy],
		BuyLosses:  p.losses[model.SideBuy],
		SellWins:   p.wins[model.SideSell],
		SellLosses: p.losses[model.SideSell],
	}
	s.Wins = s.BuyWins + s.SellWins
	s.Losses = s.BuyLosses + s.SellLosses
	return s
}
