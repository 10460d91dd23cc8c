package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() Settings {
	return Settings{
		Configs: []Entry{{
			Name:        "Saturday tennis",
			FacilityURL: "https://rec.example.org/facility/12",
			Sport:       "Tennis",
			PartySize:   2,
			Enabled:     true,
			Schedule:    map[string][]string{"saturday": {"18:00"}},
		}},
		Mail: Mail{
			Addr:     "imap.example.org:993",
			Username: "booker@example.org",
			Password: "hunter22",
			Sender:   "noreply@rec.example.org",
			Subject:  "Verification code",
		},
		Contact: Contact{Name: "Jo Booker", Email: "jo@example.org", Phone: "416-555-0101"},
	}
}

func TestTokenRoundTrip(t *testing.T) {
	in := validSettings()
	in.PriorDays = 3

	tok, err := EncodeToken(in)
	require.NoError(t, err)

	out, err := DecodeToken(tok)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	_, err := DecodeToken("not a token")
	assert.Error(t, err)
}

func TestSealedTokenRoundTrip(t *testing.T) {
	in := validSettings()

	sealed, err := SealToken(in, "correct horse")
	require.NoError(t, err)

	out, err := OpenSealedToken(sealed, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = OpenSealedToken(sealed, "wrong horse")
	assert.Error(t, err)
}

func TestDefaultsAndValidate(t *testing.T) {
	s := validSettings()
	s.applyDefaults()
	require.NoError(t, s.Validate())
	assert.Equal(t, 2, s.PriorDays)
	assert.Equal(t, DefaultCutoff, s.Cutoff)

	cutoff, err := s.CutoffTime()
	require.NoError(t, err)
	assert.Equal(t, 7, cutoff.Hour())
}

func TestValidateRejectsBadPriorDays(t *testing.T) {
	s := validSettings()
	s.PriorDays = -1
	s.Cutoff = DefaultCutoff
	assert.Error(t, s.Validate())
}

func TestValidateRequiresMailAndContact(t *testing.T) {
	s := validSettings()
	s.applyDefaults()
	s.Mail.Password = ""
	assert.Error(t, s.Validate())

	s = validSettings()
	s.applyDefaults()
	s.Contact.Phone = ""
	assert.Error(t, s.Validate())
}

func TestReservationsAssignsIDs(t *testing.T) {
	s := validSettings()
	configs, err := s.Reservations()
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.NotEmpty(t, configs[0].ID)

	slot, ok := configs[0].SlotFor(time.Saturday)
	require.True(t, ok)
	assert.Equal(t, "18:00", slot.String())
}

func TestReservationsAssignStableIDs(t *testing.T) {
	s := validSettings()

	first, err := s.Reservations()
	require.NoError(t, err)
	second, err := s.Reservations()
	require.NoError(t, err)

	// ID-less entries must map to the same ID on every load, or run records
	// written in one process could never be looked up by the next.
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestReservationsRejectsOversizedParty(t *testing.T) {
	s := validSettings()
	s.Configs[0].PartySize = 5
	_, err := s.Reservations()
	assert.Error(t, err)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "**", Mask("ab"))
	assert.Equal(t, "hu*******", Mask("hunter22x"))
}

func TestRedactedHidesCredentials(t *testing.T) {
	s := validSettings()
	s.applyDefaults()
	red := s.Redacted()
	assert.NotContains(t, red["mail_pass"], "hunter22")
	assert.Equal(t, "hu******", red["mail_pass"])
}
