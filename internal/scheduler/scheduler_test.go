package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/courtbook/internal/domain/reservation"
)

func saturdayConfig() reservation.Config {
	return reservation.Config{
		ID:          "cfg-sat",
		Name:        "sat tennis",
		FacilityURL: "https://rec.example.org/facility/12",
		Sport:       "Tennis",
		PartySize:   2,
		Enabled:     true,
		Schedule: map[time.Weekday][]reservation.TimeOfDay{
			time.Saturday: {18 * 60},
		},
	}
}

// dateIn builds a date at noon in the facility timezone so DST shifts around
// midnight cannot skew the truncation.
func dateIn(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, Location())
}

func TestShouldRunFiresPriorDaysBeforeWeekday(t *testing.T) {
	cfg := saturdayConfig()

	// 2026-09-05 is a Saturday; prior=2 puts the run on Thursday the 3rd.
	thursday := dateIn(2026, time.September, 3)
	assert.True(t, ShouldRun(cfg, thursday, 2))

	wednesday := dateIn(2026, time.September, 2)
	assert.False(t, ShouldRun(cfg, wednesday, 2))

	friday := dateIn(2026, time.September, 4)
	assert.False(t, ShouldRun(cfg, friday, 2))

	// On the Saturday itself the next occurrence is that same day, and the
	// derived run date is two days in the past.
	saturday := dateIn(2026, time.September, 5)
	assert.False(t, ShouldRun(cfg, saturday, 2))
}

func TestShouldRunExactlyOnceInLookahead(t *testing.T) {
	cfg := saturdayConfig()
	start := dateIn(2026, time.September, 3)

	hits := 0
	for i := 0; i < 7; i++ {
		if ShouldRun(cfg, start.AddDate(0, 0, i), 2) {
			hits++
		}
	}
	// One autorun per week for a single-weekday config.
	assert.Equal(t, 1, hits)
}

func TestShouldRunMultipleWeekdays(t *testing.T) {
	cfg := saturdayConfig()
	cfg.Schedule[time.Tuesday] = []reservation.TimeOfDay{7 * 60}

	// Tuesday 2026-09-08, prior=2 -> Sunday the 6th.
	sunday := dateIn(2026, time.September, 6)
	assert.True(t, ShouldRun(cfg, sunday, 2))

	thursday := dateIn(2026, time.September, 3)
	assert.True(t, ShouldRun(cfg, thursday, 2))
}

func TestNextRunDate(t *testing.T) {
	cfg := saturdayConfig()
	monday := dateIn(2026, time.August, 31)

	next, ok := NextRunDate(cfg, monday, 2)
	require.True(t, ok)
	assert.Equal(t, DateOf(dateIn(2026, time.September, 3)), next)

	// Idempotent on an unchanged config and day.
	again, ok := NextRunDate(cfg, monday, 2)
	require.True(t, ok)
	assert.True(t, next.Equal(again))
}

func TestNextRunDateSkipsPastRunDates(t *testing.T) {
	cfg := saturdayConfig()

	// On Friday the run date derived from tomorrow's Saturday already passed,
	// so the next autorun belongs to the following week.
	friday := dateIn(2026, time.September, 4)
	next, ok := NextRunDate(cfg, friday, 2)
	require.True(t, ok)
	assert.Equal(t, DateOf(dateIn(2026, time.September, 10)), next)
}

func TestNextRunDateNoScheduleFallsBackToToday(t *testing.T) {
	cfg := saturdayConfig()
	cfg.Schedule = nil

	today := dateIn(2026, time.September, 3)
	next, ok := NextRunDate(cfg, today, 2)
	assert.False(t, ok)
	assert.Equal(t, DateOf(today), next)
}

func TestValidatePriorDays(t *testing.T) {
	require.NoError(t, ValidatePriorDays(1))
	require.NoError(t, ValidatePriorDays(2))
	assert.Error(t, ValidatePriorDays(0))
	assert.Error(t, ValidatePriorDays(-3))
}

func TestRunInstant(t *testing.T) {
	cutoff, err := reservation.ParseTimeOfDay("07:00")
	require.NoError(t, err)

	at := RunInstant(dateIn(2026, time.September, 3), cutoff)
	assert.Equal(t, 7, at.Hour())
	assert.Equal(t, 0, at.Minute())
	assert.Equal(t, Location().String(), at.Location().String())
}

func TestWaitUntilPastTargetReturnsImmediately(t *testing.T) {
	start := time.Now()
	err := WaitUntil(context.Background(), time.Now().Add(-time.Hour), nil)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitUntilObservesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitUntil(ctx, time.Now().Add(time.Hour), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitUntilReportsProgress(t *testing.T) {
	var calls int
	err := WaitUntil(context.Background(), time.Now().Add(50*time.Millisecond), func(remaining time.Duration) {
		calls++
		assert.Greater(t, remaining, time.Duration(0))
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls, 1)
}
