package slots

import (
	"fmt"
	"time"

	"agendei/internal/clock"
	"agendei/internal/model"
)

// HasConflict reports whether a booking of durationMinutes starting at start
// would overlap another booking of the resource. The booking with
// ignoreBookingID (the one being edited) is left out; 0 ignores nothing.
// Operating hours are not consulted.
func (g *Generator) HasConflict(resource *model.Resource, start time.Time, durationMinutes int, bookings []model.Booking, ignoreBookingID int64) (bool, error) {
	if resource == nil {
		return false, ErrNoResource
	}
	if durationMinutes <= 0 {
		return false, fmt.Errorf("%w: %d", ErrInvalidDuration, durationMinutes)
	}

	loc := g.resolver.Location()
	begin := clock.Localize(start, loc)
	candidate := model.Interval{Start: begin, End: begin.Add(time.Duration(durationMinutes) * time.Minute)}

	for i := range bookings {
		b := &bookings[i]
		if ignoreBookingID != 0 && b.ID == ignoreBookingID {
			continue
		}
		if b.ResourceID != resource.ID || b.BusinessID != resource.BusinessID {
			continue
		}
		if candidate.Overlaps(g.interval(b, loc)) {
			return true, nil
		}
	}
	return false, nil
}
