// Package clock holds the timezone rules shared by the availability engine.
//
// Booking start instants are persisted as naive wall-clock values in a single
// business timezone. Every comparison happens after Localize has pinned such a
// value to that timezone; aware instants (like "now") are converted with In.
package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTimezone is the timezone all businesses operate in.
const DefaultTimezone = "America/Sao_Paulo"

// WallClockLayout is the storage layout for naive wall-clock instants.
const WallClockLayout = "2006-01-02 15:04:05"

// DateLayout is the YYYY-MM-DD layout used by APIs and configs.
const DateLayout = "2006-01-02"

// Clock provides the current instant.
type Clock interface {
	Now() time.Time
}

// System reads the process wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed always returns the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }

// LoadLocation loads a timezone, falling back to a fixed UTC-3 zone when the
// tz database is unavailable. Sao Paulo has not observed DST since 2019.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("-03", -3*60*60)
	}
	return loc
}

// Localize reinterprets the wall-clock fields of t in loc, ignoring t's own location.
func Localize(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// StartOfDay returns local midnight of the calendar date carried by date's wall clock.
func StartOfDay(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
}

// Today returns local midnight of the calendar day containing the instant now.
func Today(now time.Time, loc *time.Location) time.Time {
	return StartOfDay(now.In(loc), loc)
}

// At returns the instant h:m on the local calendar day of day.
func At(day time.Time, h, m int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
}

// ParseHM parses a "HH:MM" time of day.
func ParseHM(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time format: %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	if h == 24 && m != 0 {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	return h, m, nil
}

// ParseWallClock parses a stored naive instant and pins it to loc.
func ParseWallClock(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(WallClockLayout, s, loc)
}

// FormatWallClock renders t as a naive wall-clock string in loc.
func FormatWallClock(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(WallClockLayout)
}
