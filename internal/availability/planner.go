// Package availability selects the availability rules that fit a business kind.
package availability

import (
	"errors"
	"time"

	"agendei/internal/model"
	"agendei/internal/schedule"
	"agendei/internal/slots"
)

var (
	ErrInvalidNights = errors.New("stay must last at least one night")
	ErrMinStay       = errors.New("stay is shorter than the minimum")
	ErrOccupancy     = errors.New("guest count out of range")
)

// Request describes one availability question against a resource.
// Slot businesses read DurationMinutes; stay businesses read Nights and Guests.
type Request struct {
	Resource        *model.Resource
	Date            time.Time // calendar date for Slots
	Start           time.Time // candidate start for Conflicts
	DurationMinutes int
	Nights          int
	Guests          int
	Bookings        []model.Booking
	Now             time.Time
	IgnoreBookingID int64
}

// Planner answers availability questions for one business.
type Planner interface {
	Business() *model.Business
	// Resolve returns the bookable window of date, or false when closed.
	Resolve(date time.Time) (schedule.Window, bool)
	// Slots returns the bookable start instants of the requested date.
	Slots(req Request) ([]time.Time, error)
	// Conflicts reports whether req.Start collides with an existing booking.
	Conflicts(req Request) (bool, error)
}

// ForBusiness returns the planner matching the business kind. Unknown kinds
// are treated as slot businesses.
func ForBusiness(b *model.Business, gen *slots.Generator) Planner {
	if b != nil && b.Kind == model.KindStay {
		return NewStayPlanner(b, gen.Resolver().Location())
	}
	return &SlotPlanner{business: b, gen: gen}
}

// SlotPlanner serves appointment businesses on the fixed minute grid.
type SlotPlanner struct {
	business *model.Business
	gen      *slots.Generator
}

func (p *SlotPlanner) Business() *model.Business { return p.business }

func (p *SlotPlanner) Resolve(date time.Time) (schedule.Window, bool) {
	if p.business == nil {
		return schedule.Window{}, false
	}
	return p.gen.Resolver().Resolve(p.business.Hours, date)
}

func (p *SlotPlanner) Slots(req Request) ([]time.Time, error) {
	return p.gen.AvailableSlots(slots.Query{
		Business:        p.business,
		Resource:        req.Resource,
		Date:            req.Date,
		DurationMinutes: req.DurationMinutes,
		Bookings:        req.Bookings,
		Now:             req.Now,
	})
}

func (p *SlotPlanner) Conflicts(req Request) (bool, error) {
	return p.gen.HasConflict(req.Resource, req.Start, req.DurationMinutes, req.Bookings, req.IgnoreBookingID)
}
