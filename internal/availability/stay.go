package availability

import (
	"fmt"
	"strings"
	"time"

	"agendei/internal/clock"
	"agendei/internal/model"
	"agendei/internal/schedule"
	"agendei/internal/slots"
)

const (
	DefaultCheckInTime  = "14:00"
	DefaultCheckOutTime = "12:00"
)

// StayPlanner serves lodging businesses with day granularity. A stay occupies
// the unit from check-in on the arrival day to check-out on the departure day.
type StayPlanner struct {
	business *model.Business
	loc      *time.Location
	checkIn  [2]int
	checkOut [2]int
}

// NewStayPlanner creates a planner for a stay business. Malformed policy
// times fall back to the defaults.
func NewStayPlanner(b *model.Business, loc *time.Location) *StayPlanner {
	p := &StayPlanner{business: b, loc: loc}
	var policy model.StayPolicy
	if b != nil {
		policy = b.Stay
	}
	p.checkIn = hm(policy.CheckInTime, DefaultCheckInTime)
	p.checkOut = hm(policy.CheckOutTime, DefaultCheckOutTime)
	return p
}

func hm(value, fallback string) [2]int {
	h, m, err := clock.ParseHM(value)
	if err != nil {
		h, m, _ = clock.ParseHM(fallback)
	}
	return [2]int{h, m}
}

func (p *StayPlanner) Business() *model.Business { return p.business }

// Resolve returns the first night starting on date. Lodging is open every
// day except declared holidays, which block arrivals.
func (p *StayPlanner) Resolve(date time.Time) (schedule.Window, bool) {
	if p.business == nil {
		return schedule.Window{}, false
	}
	day := clock.StartOfDay(date, p.loc)
	key := day.Format(clock.DateLayout)
	for _, h := range p.business.Hours.Holidays {
		if strings.TrimSpace(h) == key {
			return schedule.Window{}, false
		}
	}
	return schedule.Window{Start: p.arrival(day), End: p.departure(day, 1)}, true
}

// Slots returns the check-in instant of date when the unit is free for the
// whole requested stay, or nothing.
func (p *StayPlanner) Slots(req Request) ([]time.Time, error) {
	if err := p.validate(req); err != nil {
		return nil, err
	}

	day := clock.StartOfDay(req.Date, p.loc)
	if day.Before(clock.Today(req.Now, p.loc)) {
		return nil, nil
	}
	w, open := p.Resolve(day)
	if !open {
		return nil, nil
	}
	if w.Start.Before(req.Now.In(p.loc)) {
		return nil, nil
	}

	stay := model.Interval{Start: w.Start, End: p.departure(day, req.Nights)}
	if p.overlaps(stay, req.Resource, req.Bookings, 0) {
		return nil, nil
	}
	return []time.Time{w.Start}, nil
}

// Conflicts reports whether a stay arriving on req.Start's date overlaps
// another stay of the unit.
func (p *StayPlanner) Conflicts(req Request) (bool, error) {
	if err := p.validate(req); err != nil {
		return false, err
	}
	day := clock.StartOfDay(req.Start, p.loc)
	stay := model.Interval{Start: p.arrival(day), End: p.departure(day, req.Nights)}
	return p.overlaps(stay, req.Resource, req.Bookings, req.IgnoreBookingID), nil
}

// Occupied returns the stay interval of b.
func (p *StayPlanner) Occupied(b model.Booking) model.Interval {
	day := clock.StartOfDay(b.Start, p.loc)
	nights := b.Nights
	if nights <= 0 {
		nights = 1
	}
	return model.Interval{Start: p.arrival(day), End: p.departure(day, nights)}
}

func (p *StayPlanner) overlaps(stay model.Interval, resource *model.Resource, bookings []model.Booking, ignore int64) bool {
	for _, b := range bookings {
		if ignore != 0 && b.ID == ignore {
			continue
		}
		if b.ResourceID != resource.ID || b.BusinessID != resource.BusinessID {
			continue
		}
		if stay.Overlaps(p.Occupied(b)) {
			return true
		}
	}
	return false
}

func (p *StayPlanner) validate(req Request) error {
	if p.business == nil {
		return slots.ErrNoBusiness
	}
	if req.Resource == nil {
		return slots.ErrNoResource
	}
	if req.Resource.BusinessID != p.business.ID {
		return fmt.Errorf("%w: resource %d, business %d", slots.ErrForeignResource, req.Resource.ID, p.business.ID)
	}
	if req.Nights <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidNights, req.Nights)
	}
	if least := p.business.Stay.MinStayNights; req.Nights < least {
		return fmt.Errorf("%w: %d < %d nights", ErrMinStay, req.Nights, least)
	}
	guests := req.Guests
	if guests <= 0 {
		guests = 1
	}
	if least := p.business.Stay.MinOccupancy; guests < least {
		return fmt.Errorf("%w: %d guests, minimum %d", ErrOccupancy, guests, least)
	}
	if c := req.Resource.Capacity; c > 0 && guests > c {
		return fmt.Errorf("%w: %d guests, capacity %d", ErrOccupancy, guests, c)
	}
	return nil
}

func (p *StayPlanner) arrival(day time.Time) time.Time {
	return clock.At(day, p.checkIn[0], p.checkIn[1])
}

func (p *StayPlanner) departure(day time.Time, nights int) time.Time {
	return clock.At(day.AddDate(0, 0, nights), p.checkOut[0], p.checkOut[1])
}
