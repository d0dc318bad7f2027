// Package markethours decides when new positions may be opened.
// Each weekday Monday–Friday has its own inclusive window; weekends and
// configured holidays are always closed. Times are read in the tick's
// own location.
package markethours

import (
	"fmt"
	"strings"
	"time"
)

// Clock is a time of day as an offset from midnight. Configured clocks
// have second resolution; clocks taken from ticks keep their nanoseconds.
type Clock time.Duration

// EndOfDay is 23:59:59.
const EndOfDay = Clock(24*time.Hour - time.Second)

// ParseClock accepts "15:04:05" or "15:04".
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Clock(time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second), nil
		}
	}
	return 0, fmt.Errorf("markethours: invalid time of day %q", s)
}

func (c Clock) String() string {
	d := time.Duration(c)
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

func clockOf(t time.Time) Clock {
	return Clock(time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond()))
}

// Window is an inclusive [Start, End] range within one day.
type Window struct {
	Start Clock
	End   Clock
}

// FullDay is open from 00:00:00 through 23:59:59.
var FullDay = Window{Start: 0, End: EndOfDay}

func (w Window) contains(c Clock) bool {
	return c >= w.Start && c <= w.End
}

// ParseWeekday parses an English weekday name ("WEDNESDAY", "wed").
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) == 3 && s == name[:3]) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("markethours: invalid weekday %q", s)
}

// IsWeekday returns true if t is Mon–Fri.
func IsWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// Schedule holds the per-weekday opening windows and holiday list.
type Schedule struct {
	windows  map[time.Weekday]Window
	holidays map[string]bool
}

// NewSchedule validates windows (Mon–Fri only, Start ≤ End) and holidays
// (YYYY-MM-DD). A weekday without a window is closed.
func NewSchedule(windows map[time.Weekday]Window, holidays []string) (*Schedule, error) {
	s := &Schedule{
		windows:  make(map[time.Weekday]Window, len(windows)),
		holidays: make(map[string]bool, len(holidays)),
	}
	for wd, w := range windows {
		if wd == time.Saturday || wd == time.Sunday {
			return nil, fmt.Errorf("markethours: %s cannot have a trading window", wd)
		}
		if w.Start > w.End {
			return nil, fmt.Errorf("markethours: %s window starts after it ends (%s > %s)", wd, w.Start, w.End)
		}
		if w.End > EndOfDay {
			return nil, fmt.Errorf("markethours: %s window ends past midnight", wd)
		}
		s.windows[wd] = w
	}
	for _, h := range holidays {
		d, err := time.Parse(time.DateOnly, strings.TrimSpace(h))
		if err != nil {
			return nil, fmt.Errorf("markethours: holiday %q: %w", h, err)
		}
		s.holidays[d.Format(time.DateOnly)] = true
	}
	return s, nil
}

// AlwaysOpen returns a schedule open all day Monday–Friday.
func AlwaysOpen() *Schedule {
	s, _ := NewSchedule(map[time.Weekday]Window{
		time.Monday:    FullDay,
		time.Tuesday:   FullDay,
		time.Wednesday: FullDay,
		time.Thursday:  FullDay,
		time.Friday:    FullDay,
	}, nil)
	return s
}

// IsOpen reports whether a position may be opened at t.
func (s *Schedule) IsOpen(t time.Time) bool {
	if !s.IsTradingDay(t) {
		return false
	}
	w, ok := s.windows[t.Weekday()]
	return ok && w.contains(clockOf(t))
}

// IsHoliday returns true if t's calendar date is a configured holiday.
func (s *Schedule) IsHoliday(t time.Time) bool {
	return s.holidays[t.Format(time.DateOnly)]
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func (s *Schedule) IsTradingDay(t time.Time) bool {
	return IsWeekday(t) && !s.IsHoliday(t)
}

// Window returns the configured window for a weekday.
func (s *Schedule) Window(wd time.Weekday) (Window, bool) {
	w, ok := s.windows[wd]
	return w, ok
}

// NextOpen returns the next instant at or after t when IsOpen holds.
// The zero time is returned when no window opens within two weeks.
func (s *Schedule) NextOpen(t time.Time) time.Time {
	if s.IsOpen(t) {
		return t
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	for i := 0; i < 14; i++ {
		d := day.AddDate(0, 0, i)
		w, ok := s.windows[d.Weekday()]
		if !ok || !s.IsTradingDay(d) {
			continue
		}
		open := d.Add(time.Duration(w.Start))
		if !open.Before(t) {
			return open
		}
	}
	return time.Time{}
}

// StatusString returns a human-readable window status.
func (s *Schedule) StatusString(t time.Time) string {
	if s.IsOpen(t) {
		w := s.windows[t.Weekday()]
		return fmt.Sprintf("Window open until %s", w.End)
	}
	next := s.NextOpen(t)
	if next.IsZero() {
		return "Window closed"
	}
	return fmt.Sprintf("Window closed, opens %s %s (%s)",
		next.Weekday().String()[:3], next.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
