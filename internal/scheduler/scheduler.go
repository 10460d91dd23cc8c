// Package scheduler decides when a reservation config's autorun must fire.
// Booking windows open priorDays calendar days before the reserved weekday,
// so the autorun for a Saturday slot with priorDays=2 fires on Thursday.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/example/courtbook/internal/domain/reservation"
)

// DefaultPriorDays is how many days before the reservation weekday the
// booking window opens at the facility.
const DefaultPriorDays = 2

// lookahead bounds the weekday search to handle wrap-around.
const lookaheadDays = 5 * 7

// waitStep bounds each sleep so callers can observe remaining time and
// cancellation is noticed promptly.
const waitStep = time.Second

// ValidatePriorDays rejects non-positive priorDays at the caller boundary.
func ValidatePriorDays(priorDays int) error {
	if priorDays < 1 {
		return fmt.Errorf("prior days must be a positive integer, got %d", priorDays)
	}
	return nil
}

// Location returns the canonical facility timezone. All autorun date math
// uses it regardless of the host timezone.
func Location() *time.Location {
	loc, err := time.LoadLocation(reservation.FacilityTimezone)
	if err != nil {
		// The IANA name is a compile-time constant; a failed load means a
		// broken tzdata install, which cannot be handled meaningfully here.
		panic(fmt.Sprintf("load facility timezone: %v", err))
	}
	return loc
}

// DateOf truncates t to midnight in the facility timezone.
func DateOf(t time.Time) time.Time {
	loc := Location()
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ShouldRun reports whether cfg's autorun fires on today. For each weekday
// carrying a slot, the run date is the next occurrence of that weekday on or
// after today minus priorDays days.
func ShouldRun(cfg reservation.Config, today time.Time, priorDays int) bool {
	today = DateOf(today)
	for _, day := range cfg.Weekdays() {
		occ, ok := nextOccurrence(day, today)
		if !ok {
			continue
		}
		if occ.AddDate(0, 0, -priorDays).Equal(today) {
			return true
		}
	}
	return false
}

// NextRunDate returns the earliest upcoming autorun date (today or later)
// across all of cfg's scheduled weekdays. ok is false when the config has no
// runnable weekday; the returned date is then today, a documented fallback
// rather than a real schedule.
func NextRunDate(cfg reservation.Config, today time.Time, priorDays int) (next time.Time, ok bool) {
	today = DateOf(today)
	for _, day := range cfg.Weekdays() {
		// Walk occurrences until the derived run date lands on or after
		// today; priorDays pushes the first candidate into the past when the
		// weekday is close.
		for offset := 0; offset < lookaheadDays; offset += 7 {
			occ, found := nextOccurrence(day, today.AddDate(0, 0, offset))
			if !found {
				break
			}
			run := occ.AddDate(0, 0, -priorDays)
			if run.Before(today) {
				continue
			}
			if !ok || run.Before(next) {
				next, ok = run, true
			}
			break
		}
	}
	if !ok {
		return today, false
	}
	return next, true
}

// nextOccurrence finds the first date with the given weekday on or after
// from, searching up to five weeks ahead.
func nextOccurrence(day time.Weekday, from time.Time) (time.Time, bool) {
	for i := 0; i < lookaheadDays; i++ {
		d := from.AddDate(0, 0, i)
		if d.Weekday() == day {
			return d, true
		}
	}
	return time.Time{}, false
}

// RunInstant combines an autorun date with the facility's cutoff time-of-day
// into the instant the booking window opens.
func RunInstant(date time.Time, cutoff reservation.TimeOfDay) time.Time {
	loc := Location()
	y, m, d := date.In(loc).Date()
	return time.Date(y, m, d, cutoff.Hour(), cutoff.Minute(), 0, 0, loc)
}

// WaitUntil sleeps until target, in bounded increments so the remaining time
// can be reported and a cancellation is observed within one step. It returns
// immediately when target is already in the past. progress may be nil.
func WaitUntil(ctx context.Context, target time.Time, progress func(remaining time.Duration)) error {
	for {
		remaining := time.Until(target)
		if remaining <= 0 {
			return nil
		}
		if progress != nil {
			progress(remaining)
		}
		step := waitStep
		if remaining < step {
			step = remaining
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(step):
		}
	}
}
