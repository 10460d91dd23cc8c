package reservation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxPartySize is the largest group the facility's form accepts.
const MaxPartySize = 2

// FacilityTimezone is the canonical timezone for all autorun date math,
// independent of the host machine's local timezone.
const FacilityTimezone = "America/Toronto"

// TimeOfDay is a wall-clock slot time in minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" (or "HH:MM:SS", seconds ignored).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	if len(s) == 8 && strings.Count(s, ":") == 2 {
		s = s[:5]
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Config is one user-defined facility/sport/day/time/party-size booking
// target. It is owned by the external configuration store; the orchestration
// core borrows a read-only snapshot per run and never mutates it.
type Config struct {
	ID          string                       `json:"id"`
	Name        string                       `json:"name"`
	FacilityURL string                       `json:"facility_url"`
	Sport       string                       `json:"sport"`
	PartySize   int                          `json:"party_size"`
	Enabled     bool                         `json:"enabled"`
	Schedule    map[time.Weekday][]TimeOfDay `json:"schedule"`
}

// EnsureID assigns an identifier when the external store supplied none. The
// ID is derived from the config's identity fields, so the same entry gets
// the same ID on every load and run records written under it stay findable
// across processes.
func (c *Config) EnsureID() {
	if c.ID == "" {
		seed := c.FacilityURL + "|" + c.Sport + "|" + c.Name
		c.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String()
	}
}

// Weekdays returns the weekdays with at least one slot, in Sunday-first order.
func (c Config) Weekdays() []time.Weekday {
	var days []time.Weekday
	for d, slots := range c.Schedule {
		if len(slots) > 0 {
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

// SlotFor returns the first configured slot for the given weekday. In practice
// exactly one slot per weekday is supported.
func (c Config) SlotFor(day time.Weekday) (TimeOfDay, bool) {
	slots := c.Schedule[day]
	if len(slots) == 0 {
		return 0, false
	}
	return slots[0], true
}

func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name required")
	}
	if c.FacilityURL == "" {
		return fmt.Errorf("facility_url required")
	}
	if c.Sport == "" {
		return fmt.Errorf("sport required")
	}
	if c.PartySize < 1 || c.PartySize > MaxPartySize {
		return fmt.Errorf("party_size must be between 1 and %d", MaxPartySize)
	}
	if len(c.Weekdays()) == 0 {
		return fmt.Errorf("at least one weekday with a time slot required")
	}
	return nil
}

// ParseSchedule builds a schedule map from weekday-name -> "HH:MM" strings,
// the shape used by the settings export token.
func ParseSchedule(raw map[string][]string) (map[time.Weekday][]TimeOfDay, error) {
	out := make(map[time.Weekday][]TimeOfDay, len(raw))
	for name, times := range raw {
		day, err := parseWeekday(name)
		if err != nil {
			return nil, err
		}
		var slots []TimeOfDay
		for _, ts := range times {
			ts = strings.TrimSpace(ts)
			if ts == "" {
				continue
			}
			tod, err := ParseTimeOfDay(ts)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			slots = append(slots, tod)
		}
		if len(slots) > 0 {
			out[day] = slots
		}
	}
	return out, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sunday", "sun":
		return time.Sunday, nil
	case "monday", "mon":
		return time.Monday, nil
	case "tuesday", "tue":
		return time.Tuesday, nil
	case "wednesday", "wed":
		return time.Wednesday, nil
	case "thursday", "thu":
		return time.Thursday, nil
	case "friday", "fri":
		return time.Friday, nil
	case "saturday", "sat":
		return time.Saturday, nil
	}
	return 0, fmt.Errorf("invalid weekday %q", name)
}
