package chromedriver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/courtbook/internal/domain/reservation"
)

func TestDisconnectKeepWindowLeavesBrowserRunning(t *testing.T) {
	var tabCancelled, allocCancelled bool
	d := &Driver{
		tab:         context.Background(),
		tabCancel:   func() { tabCancelled = true },
		allocCancel: func() { allocCancelled = true },
	}

	// Cancelling the tab context shuts the whole browser down, so keeping
	// the window open must skip both cancels.
	require.NoError(t, d.Disconnect(false))
	assert.False(t, tabCancelled)
	assert.False(t, allocCancelled)

	tabCancelled, allocCancelled = false, false
	d = &Driver{
		tab:         context.Background(),
		tabCancel:   func() { tabCancelled = true },
		allocCancel: func() { allocCancelled = true },
	}
	require.NoError(t, d.Disconnect(true))
	assert.True(t, tabCancelled)
	assert.True(t, allocCancelled)

	// Safe after a failed Connect.
	var empty Driver
	require.NoError(t, empty.Disconnect(true))
}

func TestSlotLabel(t *testing.T) {
	mustTOD := func(s string) reservation.TimeOfDay {
		tod, err := reservation.ParseTimeOfDay(s)
		if err != nil {
			t.Fatal(err)
		}
		return tod
	}

	assert.Equal(t, "Saturday 6:00 PM", slotLabel(time.Saturday, mustTOD("18:00")))
	assert.Equal(t, "Wednesday 7:30 AM", slotLabel(time.Wednesday, mustTOD("07:30")))
	assert.Equal(t, "Sunday 12:00 PM", slotLabel(time.Sunday, mustTOD("12:00")))
	assert.Equal(t, "Monday 12:15 AM", slotLabel(time.Monday, mustTOD("00:15")))
}

func TestLooksLikeSelector(t *testing.T) {
	assert.True(t, looksLikeSelector("#submit-btn"))
	assert.True(t, looksLikeSelector("button.primary"))
	assert.True(t, looksLikeSelector("input#code"))
	assert.False(t, looksLikeSelector("Tennis"))
	assert.False(t, looksLikeSelector("Confirm Reservation"))
}
