// Package api exposes availability and booking operations over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"agendei/internal/database"
	"agendei/internal/model"
	"agendei/internal/report"
	"agendei/internal/service"
	"agendei/internal/session"
	"agendei/internal/slots"
)

// BookingAPI is the service surface the handlers call.
type BookingAPI interface {
	AvailableSlots(ctx context.Context, req service.SlotsRequest) ([]time.Time, error)
	SlotGrid(ctx context.Context, req service.SlotsRequest) ([]slots.Slot, error)
	Businesses(ctx context.Context) ([]model.Business, error)
	BookingByReference(ctx context.Context, businessID int64, reference string) (*model.Booking, error)
	AuditLog(ctx context.Context, businessID int64, limit int) ([]database.AuditEntry, error)
	CreateBooking(ctx context.Context, req service.CreateRequest) (*model.Booking, error)
	RescheduleBooking(ctx context.Context, req service.RescheduleRequest) (*model.Booking, error)
	DeleteBooking(ctx context.Context, businessID, id int64) error
	Agenda(ctx context.Context, businessID int64, date time.Time) (*report.Agenda, error)
}

// Options configures the HTTP server.
type Options struct {
	Port           int
	RateLimitRPS   float64
	RateLimitBurst int
}

// HTTPServer serves the public booking API.
type HTTPServer struct {
	server   *http.Server
	svc      BookingAPI
	sessions session.Store
	loc      *time.Location
	limiter  *clientLimiter
	logger   zerolog.Logger
}

func NewHTTPServer(opts Options, svc BookingAPI, sessions session.Store, loc *time.Location, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		svc:      svc,
		sessions: sessions,
		loc:      loc,
		limiter:  newClientLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		logger:   logger.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/businesses", s.handleBusinesses)
	mux.HandleFunc("GET /api/v1/slots", s.handleSlots)
	mux.HandleFunc("GET /api/v1/slots/grid", s.handleSlotGrid)
	mux.HandleFunc("GET /api/v1/bookings", s.handleFindBooking)
	mux.HandleFunc("POST /api/v1/bookings", s.handleCreateBooking)
	mux.HandleFunc("PUT /api/v1/bookings/{id}", s.handleRescheduleBooking)
	mux.HandleFunc("DELETE /api/v1/bookings/{id}", s.handleDeleteBooking)
	mux.HandleFunc("GET /api/v1/agenda.xlsx", s.handleAgenda)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	if sessions != nil {
		mux.HandleFunc("GET /api/v1/sessions/{caller_id}", s.handleGetSession)
		mux.HandleFunc("PUT /api/v1/sessions/{caller_id}", s.handlePutSession)
		mux.HandleFunc("DELETE /api/v1/sessions/{caller_id}", s.handleDeleteSession)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.requestID(s.rateLimit(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Handler returns the root handler with middleware applied.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("API server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
