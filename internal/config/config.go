package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/example/courtbook/internal/domain/reservation"
	"github.com/example/courtbook/internal/scheduler"
)

// DefaultCutoff is the facility-local time autoruns fire at. The facility
// releases slots at 07:00, so there is no point waking up earlier.
const DefaultCutoff = "07:00"

// Mail holds the IMAP credentials for the verification mailbox.
type Mail struct {
	Addr     string `json:"addr"`
	Username string `json:"username"`
	Password string `json:"password"`
	Sender   string `json:"sender"`
	Subject  string `json:"subject"`
}

// Contact is the booking contact typed into the facility's contact page.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Entry is one booking target in the settings token, with the schedule in
// its portable weekday-name form.
type Entry struct {
	ID          string              `json:"id,omitempty"`
	Name        string              `json:"name"`
	FacilityURL string              `json:"facility_url"`
	Sport       string              `json:"sport"`
	PartySize   int                 `json:"party_size"`
	Enabled     bool                `json:"enabled"`
	Schedule    map[string][]string `json:"schedule"`
}

// Settings is everything the CLI needs for a run. It round-trips through the
// settings token unchanged.
type Settings struct {
	Configs     []Entry `json:"configs"`
	Mail        Mail    `json:"mail"`
	Contact     Contact `json:"contact"`
	DatabaseURL string  `json:"database_url,omitempty"`
	PriorDays   int     `json:"prior_days,omitempty"`
	Cutoff      string  `json:"cutoff,omitempty"`
	LogLevel    string  `json:"log_level,omitempty"`
}

const (
	// EnvToken is the env var carrying the settings token.
	EnvToken = "COURTBOOK_SETTINGS"
	// EnvPassphrase, when set, marks the token as sealed.
	EnvPassphrase = "COURTBOOK_PASSPHRASE"
)

// Load reads settings from the environment. A .env file in the working
// directory is merged in first when present.
func Load() (Settings, error) {
	_ = godotenv.Load()

	tok := os.Getenv(EnvToken)
	if tok == "" {
		return Settings{}, fmt.Errorf("%s is not set", EnvToken)
	}

	var (
		s   Settings
		err error
	)
	if pass := os.Getenv(EnvPassphrase); pass != "" {
		s, err = OpenSealedToken(tok, pass)
	} else {
		s, err = DecodeToken(tok)
	}
	if err != nil {
		return Settings{}, err
	}

	// Individual env vars override token fields for local experimentation.
	if v := os.Getenv("DATABASE_URL"); v != "" {
		s.DatabaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		s.LogLevel = v
	}
	if v := os.Getenv("PRIOR_DAYS"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			return Settings{}, fmt.Errorf("invalid PRIOR_DAYS %q", v)
		}
		s.PriorDays = n
	}

	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) applyDefaults() {
	if s.PriorDays == 0 {
		s.PriorDays = scheduler.DefaultPriorDays
	}
	if s.Cutoff == "" {
		s.Cutoff = DefaultCutoff
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
}

func (s Settings) Validate() error {
	if err := scheduler.ValidatePriorDays(s.PriorDays); err != nil {
		return err
	}
	if _, err := reservation.ParseTimeOfDay(s.Cutoff); err != nil {
		return fmt.Errorf("cutoff: %w", err)
	}
	if len(s.Configs) == 0 {
		return fmt.Errorf("no booking configs defined")
	}
	if _, err := s.Reservations(); err != nil {
		return err
	}
	if s.Mail.Addr == "" || s.Mail.Username == "" || s.Mail.Password == "" {
		return fmt.Errorf("mail addr, username and password are required")
	}
	if s.Mail.Sender == "" || s.Mail.Subject == "" {
		return fmt.Errorf("mail sender and subject are required")
	}
	if s.Contact.Name == "" || s.Contact.Email == "" || s.Contact.Phone == "" {
		return fmt.Errorf("contact name, email and phone are required")
	}
	return nil
}

// CutoffTime parses the facility-local autorun cutoff.
func (s Settings) CutoffTime() (reservation.TimeOfDay, error) {
	return reservation.ParseTimeOfDay(s.Cutoff)
}

// Reservations converts the token entries into validated domain configs,
// assigning IDs to entries that carry none.
func (s Settings) Reservations() ([]reservation.Config, error) {
	out := make([]reservation.Config, 0, len(s.Configs))
	for i, e := range s.Configs {
		sched, err := reservation.ParseSchedule(e.Schedule)
		if err != nil {
			return nil, fmt.Errorf("config %q: %w", e.Name, err)
		}
		c := reservation.Config{
			ID:          e.ID,
			Name:        e.Name,
			FacilityURL: e.FacilityURL,
			Sport:       e.Sport,
			PartySize:   e.PartySize,
			Enabled:     e.Enabled,
			Schedule:    sched,
		}
		c.EnsureID()
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("config %d (%q): %w", i+1, e.Name, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Redacted returns a loggable view of the settings with credentials masked.
func (s Settings) Redacted() map[string]interface{} {
	return map[string]interface{}{
		"configs":      len(s.Configs),
		"mail_addr":    s.Mail.Addr,
		"mail_user":    Mask(s.Mail.Username),
		"mail_pass":    Mask(s.Mail.Password),
		"mail_sender":  s.Mail.Sender,
		"contact":      s.Contact.Name,
		"database_url": s.DatabaseURL != "",
		"prior_days":   s.PriorDays,
		"cutoff":       s.Cutoff,
		"log_level":    s.LogLevel,
	}
}

// Mask hides all but the first two characters of a credential.
func Mask(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 2 {
		return strings.Repeat("*", len(v))
	}
	return v[:2] + strings.Repeat("*", len(v)-2)
}
