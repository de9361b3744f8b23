package model

import "time"

// BusinessKind selects the availability rules a business uses.
type BusinessKind string

const (
	KindSlots BusinessKind = "slots" // appointment grid (barbershops, salons)
	KindStay  BusinessKind = "stay"  // nightly stays (lodging)
)

// ResourceKind distinguishes professionals from lodging units.
type ResourceKind string

const (
	ResourceProfessional ResourceKind = "professional"
	ResourceRoom         ResourceKind = "room"
)

// Business is a tenant with its operating-hours configuration.
type Business struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	Kind      BusinessKind `json:"kind"`
	Hours     Hours        `json:"hours"`
	Stay      StayPolicy   `json:"stay"`
	IsActive  bool         `json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Hours is the operating-hours configuration of a business.
type Hours struct {
	OpeningTime         string  `json:"opening_time" yaml:"opening_time"`                   // "09:00"
	ClosingTime         string  `json:"closing_time" yaml:"closing_time"`                   // "19:00"
	SaturdayClosingTime string  `json:"saturday_closing_time" yaml:"saturday_closing_time"` // "14:00"
	WorkingDays         string  `json:"working_days" yaml:"working_days"`                   // "Terça a Sábado"
	Weekly              *Weekly `json:"weekly,omitempty" yaml:"weekly,omitempty"`
	// Holidays lists YYYY-MM-DD dates the business is closed.
	Holidays []string `json:"holidays,omitempty" yaml:"holidays,omitempty"`
}

// Weekly is an explicit per-weekday schedule indexed Monday=0 … Sunday=6.
type Weekly [7]Day

// Day is the schedule of one weekday. Empty Open/Close fall back to the
// business opening/closing time for that day.
type Day struct {
	Closed     bool   `json:"closed,omitempty" yaml:"closed,omitempty"`
	Open       string `json:"open,omitempty" yaml:"open,omitempty"`
	Close      string `json:"close,omitempty" yaml:"close,omitempty"`
	LunchStart string `json:"lunch_start,omitempty" yaml:"lunch_start,omitempty"`
	LunchEnd   string `json:"lunch_end,omitempty" yaml:"lunch_end,omitempty"`
}

// HasLunch reports whether the day declares an excluded interval.
func (d Day) HasLunch() bool {
	return d.LunchStart != "" && d.LunchEnd != ""
}

// StayPolicy holds lodging rules for stay businesses.
type StayPolicy struct {
	CheckInTime   string `json:"check_in_time" yaml:"check_in_time"`   // "14:00"
	CheckOutTime  string `json:"check_out_time" yaml:"check_out_time"` // "12:00"
	MinStayNights int    `json:"min_stay_nights" yaml:"min_stay_nights"`
	MinOccupancy  int    `json:"min_occupancy" yaml:"min_occupancy"`
}

// Resource is a bookable professional or lodging unit.
type Resource struct {
	ID         int64        `json:"id"`
	BusinessID int64        `json:"business_id"`
	Name       string       `json:"name"`
	Kind       ResourceKind `json:"kind"`
	Capacity   int          `json:"capacity,omitempty"`
	IsActive   bool         `json:"is_active"`
}

// Service is something a client books; its duration sizes the occupied interval.
type Service struct {
	ID              int64  `json:"id"`
	BusinessID      int64  `json:"business_id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	IsActive        bool   `json:"is_active"`
}
