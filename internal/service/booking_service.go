// Package service coordinates availability queries and booking commits.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"agendei/internal/availability"
	"agendei/internal/clock"
	"agendei/internal/database"
	"agendei/internal/events"
	"agendei/internal/metrics"
	"agendei/internal/model"
	"agendei/internal/report"
	"agendei/internal/slots"
)

var (
	ErrPastDate        = errors.New("cannot book in the past")
	ErrDateTooFar      = errors.New("date is too far in the future")
	ErrSlotUnavailable = errors.New("time is outside the bookable slots")
	ErrInactive        = errors.New("business, resource or service is inactive")
	ErrServiceRequired = errors.New("service or duration is required")
	ErrGridUnsupported = errors.New("slot grid is only available for slot businesses")
)

// stayLookback bounds how far back a stay booking can start and still
// overlap the requested arrival.
const stayLookback = 60

// Repository is the storage the service needs.
type Repository interface {
	GetBusiness(ctx context.Context, id int64) (*model.Business, error)
	ListBusinesses(ctx context.Context) ([]model.Business, error)
	GetResource(ctx context.Context, businessID, id int64) (*model.Resource, error)
	GetService(ctx context.Context, businessID, id int64) (*model.Service, error)
	ListResources(ctx context.Context, businessID int64) ([]model.Resource, error)
	ListServices(ctx context.Context, businessID int64) ([]model.Service, error)
	BookingsInRange(ctx context.Context, businessID, resourceID int64, r database.Range) ([]model.Booking, error)
	AgendaForDay(ctx context.Context, businessID int64, day time.Time) ([]model.Booking, error)
	GetBooking(ctx context.Context, businessID, id int64) (*model.Booking, error)
	GetBookingByReference(ctx context.Context, businessID int64, reference string) (*model.Booking, error)
	ListEvents(ctx context.Context, businessID int64, limit int) ([]database.AuditEntry, error)
	CreateBooking(ctx context.Context, b *model.Booking, scope database.Range, check database.ConflictCheck) error
	RescheduleBooking(ctx context.Context, b *model.Booking, scope database.Range, check database.ConflictCheck) error
	DeleteBooking(ctx context.Context, businessID, id int64) error
}

// EventPublisher publishes booking lifecycle events.
type EventPublisher interface {
	PublishJSON(eventType string, businessID int64, payload any) error
}

// SlotsRequest asks for the free start times of a resource on a date.
type SlotsRequest struct {
	BusinessID      int64
	ResourceID      int64
	ServiceID       int64
	DurationMinutes int // used when ServiceID is 0
	Date            time.Time
	Nights          int
	Guests          int
}

// CreateRequest commits a new booking.
type CreateRequest struct {
	BusinessID  int64
	ResourceID  int64
	ServiceID   int64
	Start       time.Time
	Nights      int
	Guests      int
	ClientName  string
	ClientPhone string
}

// RescheduleRequest moves an existing booking. Zero ResourceID or ServiceID
// keeps the current value.
type RescheduleRequest struct {
	BusinessID int64
	BookingID  int64
	ResourceID int64
	ServiceID  int64
	Start      time.Time
	Nights     int
}

type BookingService struct {
	repo       Repository
	bus        EventPublisher
	gen        atomic.Pointer[slots.Generator]
	clock      clock.Clock
	maxAdvance time.Duration
	logger     zerolog.Logger
}

func NewBookingService(repo Repository, bus EventPublisher, gen *slots.Generator, c clock.Clock, maxAdvance time.Duration, logger *zerolog.Logger) *BookingService {
	if c == nil {
		c = clock.System{}
	}
	s := &BookingService{
		repo:       repo,
		bus:        bus,
		clock:      c,
		maxAdvance: maxAdvance,
		logger:     logger.With().Str("component", "booking_service").Logger(),
	}
	s.gen.Store(gen)
	return s
}

// UseGenerator swaps the slot generator, e.g. after schedule presets were reloaded.
func (s *BookingService) UseGenerator(gen *slots.Generator) {
	s.gen.Store(gen)
}

func (s *BookingService) generator() *slots.Generator {
	return s.gen.Load()
}

func (s *BookingService) location() *time.Location {
	return s.generator().Resolver().Location()
}

// target bundles what every operation loads before touching availability.
type target struct {
	business *model.Business
	resource *model.Resource
	planner  availability.Planner
	duration int
}

func (s *BookingService) load(ctx context.Context, businessID, resourceID, serviceID int64, duration int) (*target, error) {
	business, err := s.repo.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if !business.IsActive {
		return nil, fmt.Errorf("business %d: %w", businessID, ErrInactive)
	}
	resource, err := s.repo.GetResource(ctx, businessID, resourceID)
	if err != nil {
		return nil, err
	}
	if !resource.IsActive {
		return nil, fmt.Errorf("resource %d: %w", resourceID, ErrInactive)
	}

	if serviceID > 0 {
		svc, err := s.repo.GetService(ctx, businessID, serviceID)
		if err != nil {
			return nil, err
		}
		if !svc.IsActive {
			return nil, fmt.Errorf("service %d: %w", serviceID, ErrInactive)
		}
		duration = svc.DurationMinutes
	}
	if business.Kind != model.KindStay && duration <= 0 {
		return nil, ErrServiceRequired
	}

	return &target{
		business: business,
		resource: resource,
		planner:  availability.ForBusiness(business, s.generator()),
		duration: duration,
	}, nil
}

// scope is the range of booking starts that can collide with a request on day.
func (s *BookingService) scope(t *target, day time.Time, nights int) database.Range {
	r := database.DayRange(day, s.location())
	if t.business.Kind == model.KindStay {
		r.From = r.From.AddDate(0, 0, -stayLookback)
		if nights > 1 {
			r.To = r.To.AddDate(0, 0, nights-1)
		}
	}
	return r
}

// AvailableSlots returns the free start times for req in ascending order.
func (s *BookingService) AvailableSlots(ctx context.Context, req SlotsRequest) ([]time.Time, error) {
	started := time.Now()
	t, err := s.load(ctx, req.BusinessID, req.ResourceID, req.ServiceID, req.DurationMinutes)
	if err != nil {
		return nil, err
	}

	bookings, err := s.repo.BookingsInRange(ctx, req.BusinessID, req.ResourceID, s.scope(t, req.Date, req.Nights))
	if err != nil {
		return nil, err
	}

	out, err := t.planner.Slots(availability.Request{
		Resource:        t.resource,
		Date:            req.Date,
		DurationMinutes: t.duration,
		Nights:          req.Nights,
		Guests:          req.Guests,
		Bookings:        bookings,
		Now:             s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveSlotQuery(string(t.business.Kind), time.Since(started))
	return out, nil
}

// SlotGrid returns the whole day grid with the reason each unavailable
// candidate was rejected. Stay businesses have no grid.
func (s *BookingService) SlotGrid(ctx context.Context, req SlotsRequest) ([]slots.Slot, error) {
	t, err := s.load(ctx, req.BusinessID, req.ResourceID, req.ServiceID, req.DurationMinutes)
	if err != nil {
		return nil, err
	}
	if t.business.Kind == model.KindStay {
		return nil, ErrGridUnsupported
	}

	bookings, err := s.repo.BookingsInRange(ctx, req.BusinessID, req.ResourceID, s.scope(t, req.Date, 0))
	if err != nil {
		return nil, err
	}
	return s.generator().Grid(slots.Query{
		Business:        t.business,
		Resource:        t.resource,
		Date:            req.Date,
		DurationMinutes: t.duration,
		Bookings:        bookings,
		Now:             s.clock.Now(),
	})
}

// Businesses lists the active tenants.
func (s *BookingService) Businesses(ctx context.Context) ([]model.Business, error) {
	return s.repo.ListBusinesses(ctx)
}

// BookingByReference finds a booking by the reference handed to the client.
func (s *BookingService) BookingByReference(ctx context.Context, businessID int64, reference string) (*model.Booking, error) {
	return s.repo.GetBookingByReference(ctx, businessID, reference)
}

// AuditLog returns the latest booking events of a business, newest first.
func (s *BookingService) AuditLog(ctx context.Context, businessID int64, limit int) ([]database.AuditEntry, error) {
	if _, err := s.repo.GetBusiness(ctx, businessID); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, businessID, limit)
}

// ValidateBookingDate rejects starts in the past or beyond the booking horizon.
func (s *BookingService) ValidateBookingDate(start time.Time) error {
	now := s.clock.Now()
	if start.Before(now) {
		return ErrPastDate
	}
	if s.maxAdvance > 0 && start.After(now.Add(s.maxAdvance)) {
		return ErrDateTooFar
	}
	return nil
}

// checkBookable verifies start is one of the offered slots. A start that is
// off the list because of another booking reports ErrSlotTaken.
func (s *BookingService) checkBookable(t *target, start time.Time, nights, guests int, bookings []model.Booking, ignore int64) error {
	req := availability.Request{
		Resource:        t.resource,
		Date:            start,
		Start:           start,
		DurationMinutes: t.duration,
		Nights:          nights,
		Guests:          guests,
		Bookings:        bookings,
		Now:             s.clock.Now(),
		IgnoreBookingID: ignore,
	}
	if ignore != 0 {
		req.Bookings = withoutBooking(bookings, ignore)
	}

	offered, err := t.planner.Slots(req)
	if err != nil {
		return err
	}
	for _, o := range offered {
		if sameStart(t, o, start, s.location()) {
			return nil
		}
	}

	conflict, err := t.planner.Conflicts(req)
	if err != nil {
		return err
	}
	if conflict {
		return database.ErrSlotTaken
	}
	return ErrSlotUnavailable
}

// CreateBooking validates and commits a booking. The conflict check is
// repeated inside the write transaction.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateRequest) (*model.Booking, error) {
	t, err := s.load(ctx, req.BusinessID, req.ResourceID, req.ServiceID, 0)
	if err != nil {
		return nil, err
	}
	req.Start = arrival(t, req.Start)
	if err := s.ValidateBookingDate(req.Start); err != nil {
		return nil, err
	}

	scope := s.scope(t, req.Start, req.Nights)
	bookings, err := s.repo.BookingsInRange(ctx, req.BusinessID, req.ResourceID, scope)
	if err != nil {
		return nil, err
	}
	if err := s.checkBookable(t, req.Start, req.Nights, req.Guests, bookings, 0); err != nil {
		s.countCommit("create", err)
		return nil, err
	}

	b := &model.Booking{
		Reference:       uuid.NewString(),
		BusinessID:      req.BusinessID,
		ResourceID:      req.ResourceID,
		ServiceID:       req.ServiceID,
		Start:           req.Start,
		ServiceDuration: t.duration,
		Nights:          req.Nights,
		Guests:          req.Guests,
		ClientName:      req.ClientName,
		ClientPhone:     req.ClientPhone,
	}
	err = s.repo.CreateBooking(ctx, b, scope, func(existing []model.Booking) (bool, error) {
		return t.planner.Conflicts(availability.Request{
			Resource:        t.resource,
			Start:           b.Start,
			DurationMinutes: t.duration,
			Nights:          b.Nights,
			Guests:          b.Guests,
			Bookings:        existing,
		})
	})
	s.countCommit("create", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("business_id", b.BusinessID).
		Int64("resource_id", b.ResourceID).
		Str("reference", b.Reference).
		Time("start", b.Start).
		Msg("Booking created")
	s.publish(events.BookingCreated, b)
	return b, nil
}

// RescheduleBooking moves a booking, skipping its own interval in the conflict check.
func (s *BookingService) RescheduleBooking(ctx context.Context, req RescheduleRequest) (*model.Booking, error) {
	current, err := s.repo.GetBooking(ctx, req.BusinessID, req.BookingID)
	if err != nil {
		return nil, err
	}

	updated := *current
	if req.ResourceID > 0 {
		updated.ResourceID = req.ResourceID
	}
	if req.ServiceID > 0 {
		updated.ServiceID = req.ServiceID
	}
	if req.Nights > 0 {
		updated.Nights = req.Nights
	}
	updated.Start = req.Start

	t, err := s.load(ctx, updated.BusinessID, updated.ResourceID, updated.ServiceID, current.ServiceDuration)
	if err != nil {
		return nil, err
	}
	updated.Start = arrival(t, updated.Start)
	if err := s.ValidateBookingDate(updated.Start); err != nil {
		return nil, err
	}
	updated.ServiceDuration = t.duration

	scope := s.scope(t, updated.Start, updated.Nights)
	bookings, err := s.repo.BookingsInRange(ctx, updated.BusinessID, updated.ResourceID, scope)
	if err != nil {
		return nil, err
	}
	if err := s.checkBookable(t, updated.Start, updated.Nights, updated.Guests, bookings, updated.ID); err != nil {
		s.countCommit("reschedule", err)
		return nil, err
	}

	err = s.repo.RescheduleBooking(ctx, &updated, scope, func(existing []model.Booking) (bool, error) {
		return t.planner.Conflicts(availability.Request{
			Resource:        t.resource,
			Start:           updated.Start,
			DurationMinutes: t.duration,
			Nights:          updated.Nights,
			Guests:          updated.Guests,
			Bookings:        existing,
			IgnoreBookingID: updated.ID,
		})
	})
	s.countCommit("reschedule", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("booking_id", updated.ID).Time("start", updated.Start).Msg("Booking rescheduled")
	s.publish(events.BookingRescheduled, &updated)
	return &updated, nil
}

// DeleteBooking removes a booking of the business.
func (s *BookingService) DeleteBooking(ctx context.Context, businessID, id int64) error {
	b, err := s.repo.GetBooking(ctx, businessID, id)
	if err != nil {
		return err
	}
	err = s.repo.DeleteBooking(ctx, businessID, id)
	s.countCommit("delete", err)
	if err != nil {
		return err
	}
	s.logger.Info().Int64("booking_id", id).Msg("Booking deleted")
	s.publish(events.BookingDeleted, b)
	return nil
}

// Agenda builds the day view of every active resource with its free slots
// for the shortest active service.
func (s *BookingService) Agenda(ctx context.Context, businessID int64, date time.Time) (*report.Agenda, error) {
	business, err := s.repo.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	resources, err := s.repo.ListResources(ctx, businessID)
	if err != nil {
		return nil, err
	}
	services, err := s.repo.ListServices(ctx, businessID)
	if err != nil {
		return nil, err
	}

	a := &report.Agenda{
		Business: *business,
		Date:     clock.StartOfDay(date, s.location()),
		Services: make(map[int64]model.Service, len(services)),
	}
	shortest := 0
	for _, svc := range services {
		a.Services[svc.ID] = svc
		if svc.DurationMinutes > 0 && (shortest == 0 || svc.DurationMinutes < shortest) {
			shortest = svc.DurationMinutes
		}
	}
	if shortest == 0 {
		shortest = int(slots.DefaultOptions().Step / time.Minute)
	}

	bookings, err := s.repo.AgendaForDay(ctx, businessID, date)
	if err != nil {
		return nil, err
	}
	byResource := make(map[int64][]model.Booking, len(resources))
	for _, b := range bookings {
		byResource[b.ResourceID] = append(byResource[b.ResourceID], b)
	}

	planner := availability.ForBusiness(business, s.generator())
	for i := range resources {
		r := &resources[i]
		free, err := planner.Slots(availability.Request{
			Resource:        r,
			Date:            date,
			DurationMinutes: shortest,
			Nights:          1,
			Guests:          1,
			Bookings:        byResource[r.ID],
			Now:             s.clock.Now(),
		})
		if err != nil {
			s.logger.Warn().Err(err).Int64("resource_id", r.ID).Msg("Agenda slots unavailable")
			free = nil
		}
		a.Resources = append(a.Resources, report.ResourceAgenda{Resource: *r, Bookings: byResource[r.ID], Free: free})
	}
	return a, nil
}

func (s *BookingService) publish(eventType string, b *model.Booking) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishJSON(eventType, b.BusinessID, b); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("Failed to publish booking event")
	}
}

func (s *BookingService) countCommit(operation string, err error) {
	switch {
	case err == nil:
		metrics.IncBookingCommit(operation, "ok")
	case errors.Is(err, database.ErrSlotTaken):
		metrics.IncBookingCommit(operation, "conflict")
	default:
		metrics.IncBookingCommit(operation, "error")
	}
}

func withoutBooking(bookings []model.Booking, id int64) []model.Booking {
	out := make([]model.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}

// arrival pins a stay start to the check-in time of its date. Slot starts
// are returned unchanged.
func arrival(t *target, start time.Time) time.Time {
	if t.business.Kind != model.KindStay {
		return start
	}
	if w, open := t.planner.Resolve(start); open {
		return w.Start
	}
	return start
}

// sameStart compares an offered slot with a requested start. Stays match on
// the arrival date; slots match on the exact wall-clock minute.
func sameStart(t *target, offered, requested time.Time, loc *time.Location) bool {
	if t.business.Kind == model.KindStay {
		o, r := offered.In(loc), clock.Localize(requested, loc)
		return o.Year() == r.Year() && o.YearDay() == r.YearDay()
	}
	return offered.Equal(clock.Localize(requested, loc))
}
