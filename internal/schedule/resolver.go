// Package schedule resolves a business's operating window for a calendar date.
package schedule

import (
	"strings"
	"time"

	"agendei/internal/clock"
	"agendei/internal/model"
)

const (
	DefaultOpeningTime = "09:00"
	DefaultClosingTime = "19:00"
)

// Window is the open range of a business on one date, in the business timezone.
type Window struct {
	Start    time.Time
	End      time.Time
	Excluded *model.Interval // lunch, when the schedule declares one
}

// Interval returns the window as a half-open interval.
func (w Window) Interval() model.Interval {
	return model.Interval{Start: w.Start, End: w.End}
}

// Resolver maps hours configurations and dates to operating windows.
// It is immutable after construction and safe for concurrent use.
type Resolver struct {
	loc     *time.Location
	presets map[string]model.Weekly
}

// NewResolver creates a resolver for loc. Extra presets override built-ins with the same name.
func NewResolver(loc *time.Location, extra map[string]model.Weekly) *Resolver {
	if loc == nil {
		loc = clock.LoadLocation(clock.DefaultTimezone)
	}
	presets := BuiltinPresets()
	for name, w := range extra {
		presets[strings.TrimSpace(name)] = w
	}
	return &Resolver{loc: loc, presets: presets}
}

// Location returns the business timezone.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Weekly returns the structured table in effect for hours. An explicit table
// wins, then an exact preset name, then phrase matching.
func (r *Resolver) Weekly(hours model.Hours) model.Weekly {
	if hours.Weekly != nil {
		return *hours.Weekly
	}
	if w, ok := r.presets[strings.TrimSpace(hours.WorkingDays)]; ok {
		return w
	}
	return fromDescriptor(hours.WorkingDays)
}

// Resolve returns the operating window for date, or false when closed.
// Only the calendar fields of date are used.
func (r *Resolver) Resolve(hours model.Hours, date time.Time) (Window, bool) {
	day := clock.StartOfDay(date, r.loc)
	if isHoliday(hours, day) {
		return Window{}, false
	}

	weekday := WeekdayIndex(day)
	d := r.Weekly(hours)[weekday]
	if d.Closed {
		return Window{}, false
	}

	openAt := firstNonEmpty(d.Open, hours.OpeningTime)
	closeAt := firstNonEmpty(d.Close, closingTime(hours, weekday))

	w, err := window(day, openAt, closeAt)
	if err != nil {
		w, _ = window(day, DefaultOpeningTime, DefaultClosingTime)
	}

	if d.HasLunch() {
		if lunch, err := window(day, d.LunchStart, d.LunchEnd); err == nil {
			excluded := lunch.Interval()
			w.Excluded = &excluded
		}
	}
	return w, true
}

// WeekdayIndex returns Monday=0 … Sunday=6.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func closingTime(hours model.Hours, weekday int) string {
	if weekday == saturday && hours.SaturdayClosingTime != "" {
		return hours.SaturdayClosingTime
	}
	return hours.ClosingTime
}

func window(day time.Time, from, to string) (Window, error) {
	fh, fm, err := clock.ParseHM(from)
	if err != nil {
		return Window{}, err
	}
	th, tm, err := clock.ParseHM(to)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: clock.At(day, fh, fm), End: clock.At(day, th, tm)}, nil
}

func isHoliday(hours model.Hours, day time.Time) bool {
	key := day.Format(clock.DateLayout)
	for _, h := range hours.Holidays {
		if strings.TrimSpace(h) == key {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
