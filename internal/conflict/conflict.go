// Package conflict flags overlapping reservation configs at edit time.
// Findings are advisory for the external editor; they never block a run.
package conflict

import (
	"fmt"
	"time"

	"github.com/example/courtbook/internal/domain/reservation"
)

// slotDuration is the nominal length of one booked slot, used to decide
// whether two times on the same day overlap.
const slotDuration = 60 // minutes

// Detect compares candidate against every existing enabled config sharing at
// least one weekday. The candidate itself (matching ID) is skipped so edits
// do not conflict with their own saved copy.
func Detect(candidate reservation.Config, existing []reservation.Config) []reservation.Conflict {
	var out []reservation.Conflict
	for _, other := range existing {
		if other.ID == candidate.ID || !other.Enabled {
			continue
		}
		out = append(out, compare(candidate, other)...)
	}
	return out
}

func compare(a, b reservation.Config) []reservation.Conflict {
	var out []reservation.Conflict
	for _, day := range a.Weekdays() {
		slotA, ok := a.SlotFor(day)
		if !ok {
			continue
		}
		slotB, ok := b.SlotFor(day)
		if !ok {
			continue
		}

		sameFacility := a.FacilityURL == b.FacilityURL
		sameTime := slotA == slotB

		switch {
		case sameFacility && a.Sport == b.Sport && overlaps(slotA, slotB):
			out = append(out, reservation.Conflict{
				Kind:     reservation.ConflictSameFacilityOverlap,
				Severity: reservation.SeverityCritical,
				Message:  fmt.Sprintf("%q already books the same facility at an overlapping time", b.Name),
				Details:  details(day, slotA, slotB, b),
			})
		case !sameFacility && sameTime:
			out = append(out, reservation.Conflict{
				Kind:     reservation.ConflictSameTimeOtherPlace,
				Severity: reservation.SeverityWarning,
				Message:  fmt.Sprintf("%q books a different facility at the same day and time; you cannot attend both", b.Name),
				Details:  details(day, slotA, slotB, b),
			})
		case sameFacility && a.Sport != b.Sport && overlaps(slotA, slotB):
			out = append(out, reservation.Conflict{
				Kind:     reservation.ConflictSameFacilityCrossed,
				Severity: reservation.SeverityInfo,
				Message:  fmt.Sprintf("%q books a different sport at the same facility at an overlapping time", b.Name),
				Details:  details(day, slotA, slotB, b),
			})
		}
	}
	return out
}

func overlaps(a, b reservation.TimeOfDay) bool {
	lo, hi := int(a), int(b)
	if lo > hi {
		lo, hi = hi, lo
	}
	return hi-lo < slotDuration
}

func details(day time.Weekday, slotA, slotB reservation.TimeOfDay, other reservation.Config) []string {
	return []string{
		fmt.Sprintf("day: %s", day),
		fmt.Sprintf("candidate slot: %s", slotA),
		fmt.Sprintf("existing slot: %s (%s, %s)", slotB, other.Sport, other.FacilityURL),
	}
}
