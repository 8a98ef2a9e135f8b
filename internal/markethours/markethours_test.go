package markethours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nseSchedule(t *testing.T) *Schedule {
	s, err := New(Config{
		Timezone: "Asia/Kolkata",
		Sessions: []Session{{Open: "09:15", Close: "15:30"}},
		Holidays: []string{"2026-10-20"},
	})
	require.NoError(t, err)
	return s
}

func TestAlwaysOpenDefault(t *testing.T) {
	s := AlwaysOpen()
	now := time.Now()
	assert.True(t, s.IsOpen(now))
	assert.Equal(t, now, s.NextOpen(now))
}

func TestSessionBoundaries(t *testing.T) {
	s := nseSchedule(t)
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// Tuesday 2026-09-01.
	assert.False(t, s.IsOpen(time.Date(2026, 9, 1, 9, 14, 0, 0, ist)))
	assert.True(t, s.IsOpen(time.Date(2026, 9, 1, 9, 15, 0, 0, ist)))
	assert.True(t, s.IsOpen(time.Date(2026, 9, 1, 15, 29, 0, 0, ist)))
	assert.False(t, s.IsOpen(time.Date(2026, 9, 1, 15, 30, 0, 0, ist)))
}

func TestClosedOnWeekendsAndHolidays(t *testing.T) {
	s := nseSchedule(t)
	ist, _ := time.LoadLocation("Asia/Kolkata")

	// Saturday and Sunday.
	assert.False(t, s.IsOpen(time.Date(2026, 9, 5, 11, 0, 0, 0, ist)))
	assert.False(t, s.IsOpen(time.Date(2026, 9, 6, 11, 0, 0, 0, ist)))
	// Configured holiday (a Tuesday).
	assert.False(t, s.IsOpen(time.Date(2026, 10, 20, 11, 0, 0, 0, ist)))
}

func TestNextOpenSkipsWeekend(t *testing.T) {
	s := nseSchedule(t)
	ist, _ := time.LoadLocation("Asia/Kolkata")

	// Friday after close rolls to Monday's open.
	friEvening := time.Date(2026, 9, 4, 16, 0, 0, 0, ist)
	next := s.NextOpen(friEvening)
	assert.Equal(t, time.Date(2026, 9, 7, 9, 15, 0, 0, ist), next)

	// During a session, NextOpen is now.
	during := time.Date(2026, 9, 1, 11, 0, 0, 0, ist)
	assert.Equal(t, during, s.NextOpen(during))
}

func TestRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Sessions: []Session{{Open: "15:30", Close: "09:15"}}})
	assert.Error(t, err)
	_, err = New(Config{Timezone: "Mars/Olympus"})
	assert.Error(t, err)
	_, err = New(Config{Sessions: []Session{{Open: "25:00", Close: "26:00"}}})
	assert.Error(t, err)
}
