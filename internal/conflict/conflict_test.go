package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/courtbook/internal/domain/reservation"
)

func cfg(id, facility, sport string, day time.Weekday, slot string) reservation.Config {
	tod, err := reservation.ParseTimeOfDay(slot)
	if err != nil {
		panic(err)
	}
	return reservation.Config{
		ID:          id,
		Name:        id,
		FacilityURL: facility,
		Sport:       sport,
		PartySize:   2,
		Enabled:     true,
		Schedule: map[time.Weekday][]reservation.TimeOfDay{
			day: {tod},
		},
	}
}

func TestDetectSameFacilityOverlapIsCritical(t *testing.T) {
	candidate := cfg("a", "https://rec.example.org/f/1", "Tennis", time.Saturday, "18:00")
	existing := cfg("b", "https://rec.example.org/f/1", "Tennis", time.Saturday, "18:30")

	conflicts := Detect(candidate, []reservation.Config{existing})
	require.Len(t, conflicts, 1)
	assert.Equal(t, reservation.SeverityCritical, conflicts[0].Severity)
	assert.Equal(t, reservation.ConflictSameFacilityOverlap, conflicts[0].Kind)
	assert.NotEmpty(t, conflicts[0].Message)
	assert.NotEmpty(t, conflicts[0].Details)
}

func TestDetectSameTimeDifferentFacilityIsWarning(t *testing.T) {
	candidate := cfg("a", "https://rec.example.org/f/1", "Tennis", time.Saturday, "18:00")
	existing := cfg("b", "https://rec.example.org/f/2", "Badminton", time.Saturday, "18:00")

	conflicts := Detect(candidate, []reservation.Config{existing})
	require.Len(t, conflicts, 1)
	assert.Equal(t, reservation.SeverityWarning, conflicts[0].Severity)
	assert.Equal(t, reservation.ConflictSameTimeOtherPlace, conflicts[0].Kind)
}

func TestDetectSameFacilityDifferentSportIsInfo(t *testing.T) {
	candidate := cfg("a", "https://rec.example.org/f/1", "Tennis", time.Saturday, "18:00")
	existing := cfg("b", "https://rec.example.org/f/1", "Badminton", time.Saturday, "18:30")

	conflicts := Detect(candidate, []reservation.Config{existing})
	require.Len(t, conflicts, 1)
	assert.Equal(t, reservation.SeverityInfo, conflicts[0].Severity)
}

func TestDetectNonOverlappingProducesNothing(t *testing.T) {
	candidate := cfg("a", "https://rec.example.org/f/1", "Tennis", time.Saturday, "18:00")

	otherDay := cfg("b", "https://rec.example.org/f/1", "Tennis", time.Sunday, "18:00")
	farApart := cfg("c", "https://rec.example.org/f/1", "Tennis", time.Saturday, "20:00")

	assert.Empty(t, Detect(candidate, []reservation.Config{otherDay, farApart}))
}

func TestDetectSkipsDisabledAndSelf(t *testing.T) {
	candidate := cfg("a", "https://rec.example.org/f/1", "Tennis", time.Saturday, "18:00")

	disabled := cfg("b", "https://rec.example.org/f/1", "Tennis", time.Saturday, "18:00")
	disabled.Enabled = false

	self := cfg("a", "https://rec.example.org/f/1", "Tennis", time.Saturday, "18:00")

	assert.Empty(t, Detect(candidate, []reservation.Config{disabled, self}))
}
