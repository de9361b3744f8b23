// Package slots enumerates bookable start instants and detects booking conflicts.
package slots

import (
	"errors"
	"fmt"
	"time"

	"agendei/internal/clock"
	"agendei/internal/model"
	"agendei/internal/schedule"
)

var (
	ErrNoBusiness      = errors.New("business is required")
	ErrNoResource      = errors.New("resource is required")
	ErrForeignResource = errors.New("resource belongs to another business")
	ErrInvalidDuration = errors.New("duration must be positive")
)

// Reasons a grid slot is unavailable.
const (
	ReasonBooked    = "booked"
	ReasonExcluded  = "lunch"
	ReasonLookahead = "too_soon"
)

// Options tunes the slot grid.
type Options struct {
	Step             time.Duration // grid spacing from window start
	Lookahead        time.Duration // minimum lead time for same-day slots
	FallbackDuration time.Duration // occupied length of bookings with an unknown service
}

// DefaultOptions returns the public 30-minute grid with a 15-minute lookahead.
func DefaultOptions() Options {
	return Options{
		Step:             30 * time.Minute,
		Lookahead:        15 * time.Minute,
		FallbackDuration: 30 * time.Minute,
	}
}

// Slot is one grid position with its availability.
type Slot struct {
	StartTime time.Time
	EndTime   time.Time
	Available bool
	Reason    string
}

// SlotInfo is a simplified representation for API responses.
type SlotInfo struct {
	Start     string `json:"start"` // "10:00"
	End       string `json:"end"`   // "10:30"
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Query is the input of a slot computation. Bookings must already be scoped
// to the resource and the local calendar day.
type Query struct {
	Business        *model.Business
	Resource        *model.Resource
	Date            time.Time // calendar date; only Y/M/D are read
	DurationMinutes int
	Bookings        []model.Booking
	Now             time.Time
}

// Generator computes availability. It holds no per-call state.
type Generator struct {
	resolver *schedule.Resolver
	opts     Options
}

// NewGenerator creates a new slot generator.
func NewGenerator(resolver *schedule.Resolver, opts Options) *Generator {
	def := DefaultOptions()
	if opts.Step <= 0 {
		opts.Step = def.Step
	}
	if opts.Lookahead < 0 {
		opts.Lookahead = def.Lookahead
	}
	if opts.FallbackDuration <= 0 {
		opts.FallbackDuration = def.FallbackDuration
	}
	return &Generator{resolver: resolver, opts: opts}
}

// Resolver returns the operating-calendar resolver used by the generator.
func (g *Generator) Resolver() *schedule.Resolver {
	return g.resolver
}

// AvailableSlots returns the bookable start instants for q in ascending order.
func (g *Generator) AvailableSlots(q Query) ([]time.Time, error) {
	grid, err := g.Grid(q)
	if err != nil {
		return nil, err
	}
	var out []time.Time
	for _, s := range grid {
		if s.Available {
			out = append(out, s.StartTime)
		}
	}
	return out, nil
}

// Grid returns every candidate of the day's grid that fully fits before
// closing, each marked available or not. Past or closed days yield nil.
func (g *Generator) Grid(q Query) ([]Slot, error) {
	if err := validate(q.Business, q.Resource); err != nil {
		return nil, err
	}
	if q.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDuration, q.DurationMinutes)
	}

	loc := g.resolver.Location()
	day := clock.StartOfDay(q.Date, loc)
	today := clock.Today(q.Now, loc)
	if day.Before(today) {
		return nil, nil
	}

	w, open := g.resolver.Resolve(q.Business.Hours, day)
	if !open {
		return nil, nil
	}

	occupied := g.Occupied(q.Resource, q.Bookings)
	duration := time.Duration(q.DurationMinutes) * time.Minute
	earliest := q.Now.In(loc).Add(g.opts.Lookahead)
	sameDay := day.Equal(today)

	var slots []Slot
	for t := w.Start; !t.Add(duration).After(w.End); t = t.Add(g.opts.Step) {
		candidate := model.Interval{Start: t, End: t.Add(duration)}
		slot := Slot{StartTime: candidate.Start, EndTime: candidate.End, Available: true}

		switch {
		case sameDay && t.Before(earliest):
			slot.Available, slot.Reason = false, ReasonLookahead
		case w.Excluded != nil && candidate.Overlaps(*w.Excluded):
			slot.Available, slot.Reason = false, ReasonExcluded
		case overlapsAny(candidate, occupied):
			slot.Available, slot.Reason = false, ReasonBooked
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// Occupied returns the occupied intervals of the resource's bookings,
// localized to the business timezone. Bookings of other resources are skipped.
func (g *Generator) Occupied(resource *model.Resource, bookings []model.Booking) []model.Interval {
	loc := g.resolver.Location()
	out := make([]model.Interval, 0, len(bookings))
	for i := range bookings {
		b := &bookings[i]
		if b.ResourceID != resource.ID || b.BusinessID != resource.BusinessID {
			continue
		}
		out = append(out, g.interval(b, loc))
	}
	return out
}

func (g *Generator) interval(b *model.Booking, loc *time.Location) model.Interval {
	start := clock.Localize(b.Start, loc)
	length := g.opts.FallbackDuration
	if b.ServiceDuration > 0 {
		length = time.Duration(b.ServiceDuration) * time.Minute
	}
	return model.Interval{Start: start, End: start.Add(length)}
}

func validate(business *model.Business, resource *model.Resource) error {
	if business == nil {
		return ErrNoBusiness
	}
	if resource == nil {
		return ErrNoResource
	}
	if resource.BusinessID != business.ID {
		return fmt.Errorf("%w: resource %d, business %d", ErrForeignResource, resource.ID, business.ID)
	}
	return nil
}

func overlapsAny(candidate model.Interval, busy []model.Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

// ToSlotInfo converts slots to SlotInfo for UI.
func ToSlotInfo(slots []Slot) []SlotInfo {
	result := make([]SlotInfo, len(slots))
	for i, s := range slots {
		result[i] = SlotInfo{
			Start:     s.StartTime.Format("15:04"),
			End:       s.EndTime.Format("15:04"),
			Available: s.Available,
			Reason:    s.Reason,
		}
	}
	return result
}

// FormatDuration formats duration in minutes to a short Portuguese label.
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh%02d", hours, mins)
}
