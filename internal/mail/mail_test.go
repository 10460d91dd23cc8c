package mail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/courtbook/internal/domain/reservation"
)

func TestExtractCode(t *testing.T) {
	code, ok := ExtractCode("Your verification code is 4821. It expires in 10 minutes.")
	require.True(t, ok)
	assert.Equal(t, "4821", code)

	_, ok = ExtractCode("Thanks for booking with us!")
	assert.False(t, ok)

	// Five digits is not a code.
	_, ok = ExtractCode("Reference 48213")
	assert.False(t, ok)
}

func TestCandidateCodesPrefersNewest(t *testing.T) {
	base := time.Date(2026, 8, 27, 18, 0, 0, 0, time.UTC)
	emails := []reservation.VerificationEmail{
		{Body: "code 1111", Received: base},
		{Body: "code 3333", Received: base.Add(2 * time.Minute)},
		{Body: "code 2222", Received: base.Add(time.Minute)},
	}

	codes := CandidateCodes(emails)
	require.Equal(t, []string{"3333", "2222", "1111"}, codes)
}

func TestCandidateCodesDeduplicatesAndSkipsCodeless(t *testing.T) {
	base := time.Date(2026, 8, 27, 18, 0, 0, 0, time.UTC)
	emails := []reservation.VerificationEmail{
		{Body: "code 1111", Received: base},
		{Body: "code 1111 again", Received: base.Add(time.Minute)},
		{Body: "no code here", Received: base.Add(2 * time.Minute)},
	}

	codes := CandidateCodes(emails)
	assert.Equal(t, []string{"1111"}, codes)
}

func TestCandidateCodesEmpty(t *testing.T) {
	assert.Empty(t, CandidateCodes(nil))
}
