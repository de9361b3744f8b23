package model

import "time"

// Booking is a committed reservation of a resource.
type Booking struct {
	ID         int64  `json:"id"`
	Reference  string `json:"reference"`
	BusinessID int64  `json:"business_id"`
	ResourceID int64  `json:"resource_id"`
	ServiceID  int64  `json:"service_id"`
	// Start is a naive wall-clock instant in the business timezone; its
	// Location is ignored by the engine.
	Start time.Time `json:"start"`
	// ServiceDuration is the resolved service duration in minutes, 0 when
	// the service could not be resolved.
	ServiceDuration int       `json:"service_duration"`
	Nights          int       `json:"nights,omitempty"`
	Guests          int       `json:"guests,omitempty"`
	ClientName      string    `json:"client_name"`
	ClientPhone     string    `json:"client_phone"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect.
// Touching endpoints do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports whether t falls inside the interval.
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Duration returns the interval length.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}
