package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("18:00")
	require.NoError(t, err)
	assert.Equal(t, 18, tod.Hour())
	assert.Equal(t, 0, tod.Minute())
	assert.Equal(t, "18:00", tod.String())

	tod, err = ParseTimeOfDay("09:15:00")
	require.NoError(t, err)
	assert.Equal(t, "09:15", tod.String())

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)

	_, err = ParseTimeOfDay("6pm")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Name:        "sat tennis",
		FacilityURL: "https://rec.example.org/facility/12",
		Sport:       "Tennis",
		PartySize:   2,
		Enabled:     true,
		Schedule: map[time.Weekday][]TimeOfDay{
			time.Saturday: {18 * 60},
		},
	}
	require.NoError(t, valid.Validate())

	noSlots := valid
	noSlots.Schedule = map[time.Weekday][]TimeOfDay{time.Monday: {}}
	assert.Error(t, noSlots.Validate())

	tooBig := valid
	tooBig.PartySize = MaxPartySize + 1
	assert.Error(t, tooBig.Validate())

	noURL := valid
	noURL.FacilityURL = ""
	assert.Error(t, noURL.Validate())
}

func TestEnsureID(t *testing.T) {
	c := Config{Name: "sat tennis", FacilityURL: "https://rec.example.org/facility/12", Sport: "Tennis"}
	c.EnsureID()
	require.NotEmpty(t, c.ID)

	id := c.ID
	c.EnsureID()
	assert.Equal(t, id, c.ID)

	// Same identity fields derive the same ID in a fresh struct.
	other := Config{Name: "sat tennis", FacilityURL: "https://rec.example.org/facility/12", Sport: "Tennis"}
	other.EnsureID()
	assert.Equal(t, id, other.ID)

	renamed := Config{Name: "sun tennis", FacilityURL: "https://rec.example.org/facility/12", Sport: "Tennis"}
	renamed.EnsureID()
	assert.NotEqual(t, id, renamed.ID)

	explicit := Config{ID: "given", Name: "sat tennis"}
	explicit.EnsureID()
	assert.Equal(t, "given", explicit.ID)
}

func TestParseSchedule(t *testing.T) {
	sched, err := ParseSchedule(map[string][]string{
		"saturday": {"18:00"},
		"Wed":      {"07:30", ""},
	})
	require.NoError(t, err)
	require.Len(t, sched, 2)
	assert.Equal(t, "18:00", sched[time.Saturday][0].String())
	assert.Equal(t, "07:30", sched[time.Wednesday][0].String())

	_, err = ParseSchedule(map[string][]string{"someday": {"18:00"}})
	assert.Error(t, err)
}

func TestRunStateTerminal(t *testing.T) {
	assert.False(t, StateIdle.Terminal())
	assert.False(t, StateRunning.Terminal())
	assert.True(t, StateSuccess.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateStopped.Terminal())
}
