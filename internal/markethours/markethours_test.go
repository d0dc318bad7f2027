package markethours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-03-11 is a Monday.
func at(day, hh, mm, ss int) time.Time {
	return time.Date(2024, 3, day, hh, mm, ss, 0, time.UTC)
}

func mustClock(t *testing.T, s string) Clock {
	t.Helper()
	c, err := ParseClock(s)
	require.NoError(t, err)
	return c
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:30:15")
	require.NoError(t, err)
	assert.Equal(t, Clock(9*time.Hour+30*time.Minute+15*time.Second), c)
	assert.Equal(t, "09:30:15", c.String())

	c, err = ParseClock("17:05")
	require.NoError(t, err)
	assert.Equal(t, "17:05:00", c.String())

	for _, bad := range []string{"", "25:00", "9h30", "12:61:00"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseWeekday(t *testing.T) {
	d, err := ParseWeekday("WEDNESDAY")
	require.NoError(t, err)
	assert.Equal(t, time.Wednesday, d)

	d, err = ParseWeekday("fri")
	require.NoError(t, err)
	assert.Equal(t, time.Friday, d)

	_, err = ParseWeekday("someday")
	assert.Error(t, err)
}

func TestSchedule_WeekendNeverOpen(t *testing.T) {
	s := AlwaysOpen()
	assert.False(t, s.IsOpen(at(16, 10, 0, 0)), "Saturday 10:00")
	assert.False(t, s.IsOpen(at(17, 10, 0, 0)), "Sunday 10:00")
	assert.True(t, s.IsOpen(at(15, 10, 0, 0)), "Friday 10:00")

	_, err := NewSchedule(map[time.Weekday]Window{time.Saturday: FullDay}, nil)
	assert.Error(t, err)
}

func TestSchedule_PerWeekdayInclusiveWindow(t *testing.T) {
	s, err := NewSchedule(map[time.Weekday]Window{
		time.Monday:  {Start: mustClock(t, "08:00:00"), End: mustClock(t, "17:00:00")},
		time.Tuesday: {Start: mustClock(t, "10:00"), End: mustClock(t, "12:00")},
	}, nil)
	require.NoError(t, err)

	assert.False(t, s.IsOpen(at(11, 7, 59, 59)))
	assert.True(t, s.IsOpen(at(11, 8, 0, 0)), "start inclusive")
	assert.True(t, s.IsOpen(at(11, 17, 0, 0)), "end inclusive")
	assert.False(t, s.IsOpen(at(11, 17, 0, 1)))
	assert.False(t, s.IsOpen(at(11, 17, 0, 0).Add(500*time.Millisecond)), "sub-second past end")

	assert.False(t, s.IsOpen(at(12, 9, 0, 0)))
	assert.True(t, s.IsOpen(at(12, 11, 0, 0)))

	assert.False(t, s.IsOpen(at(13, 11, 0, 0)), "no window configured for Wednesday")
}

func TestSchedule_FullDayEndsAtLastWholeSecond(t *testing.T) {
	s, err := NewSchedule(map[time.Weekday]Window{time.Monday: FullDay}, nil)
	require.NoError(t, err)
	assert.True(t, s.IsOpen(at(11, 23, 59, 59)))
	assert.False(t, s.IsOpen(at(11, 23, 59, 59).Add(500*time.Millisecond)))
}

func TestSchedule_Holidays(t *testing.T) {
	s, err := NewSchedule(map[time.Weekday]Window{time.Monday: FullDay}, []string{"2024-03-11"})
	require.NoError(t, err)
	assert.True(t, s.IsHoliday(at(11, 12, 0, 0)))
	assert.False(t, s.IsOpen(at(11, 12, 0, 0)))
	assert.True(t, s.IsOpen(at(18, 12, 0, 0)), "next Monday")

	_, err = NewSchedule(nil, []string{"11/03/2024"})
	assert.Error(t, err)
}

func TestSchedule_InvalidWindow(t *testing.T) {
	_, err := NewSchedule(map[time.Weekday]Window{
		time.Monday: {Start: mustClock(t, "18:00"), End: mustClock(t, "09:00")},
	}, nil)
	assert.Error(t, err)
}

func TestSchedule_NextOpen(t *testing.T) {
	s, err := NewSchedule(map[time.Weekday]Window{
		time.Monday: {Start: mustClock(t, "08:00"), End: mustClock(t, "17:00")},
		time.Friday: {Start: mustClock(t, "08:00"), End: mustClock(t, "17:00")},
	}, nil)
	require.NoError(t, err)

	now := at(11, 9, 0, 0)
	assert.Equal(t, now, s.NextOpen(now))
	assert.Equal(t, at(15, 8, 0, 0), s.NextOpen(at(11, 18, 0, 0)))
	assert.Equal(t, at(18, 8, 0, 0), s.NextOpen(at(16, 10, 0, 0)))
	assert.Contains(t, s.StatusString(at(16, 10, 0, 0)), "opens Mon 08:00")
	assert.Contains(t, s.StatusString(now), "open until 17:00:00")
}
