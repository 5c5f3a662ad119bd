package clinic

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock hour and minute. The zero value means "not set", so midnight
// stays distinguishable from a missing time.
type TimeOfDay struct {
	Hour   int
	Minute int
	set    bool
}

func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %02d:%02d", hour, minute)
	}
	return TimeOfDay{Hour: hour, Minute: minute, set: true}, nil
}

// MustTimeOfDay is for literals in tests and defaults.
func MustTimeOfDay(hour, minute int) TimeOfDay {
	t, err := NewTimeOfDay(hour, minute)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTimeOfDay reads "HH:MM".
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TimeOfDay{}, nil
	}
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q (expected HH:MM)", raw)
	}
	return NewTimeOfDay(t.Hour(), t.Minute())
}

func (t TimeOfDay) IsSet() bool { return t.set }

func (t TimeOfDay) String() string {
	if !t.set {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the instant at this time of day on the calendar date of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, day.Location())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
