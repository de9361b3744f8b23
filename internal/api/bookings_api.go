package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"agendei/internal/clock"
	"agendei/internal/metrics"
	"agendei/internal/model"
	"agendei/internal/report"
	"agendei/internal/service"
	"agendei/internal/slots"
)

var startLayouts = []string{"2006-01-02 15:04", "2006-01-02T15:04", clock.WallClockLayout, clock.DateLayout}

// SlotsResponse is the response for GET /api/v1/slots.
type SlotsResponse struct {
	BusinessID int64    `json:"business_id"`
	ResourceID int64    `json:"resource_id"`
	Date       string   `json:"date"`
	Timezone   string   `json:"timezone"`
	Slots      []string `json:"slots"` // "HH:MM" local start times
}

// GridResponse is the response for GET /api/v1/slots/grid.
type GridResponse struct {
	BusinessID int64            `json:"business_id"`
	ResourceID int64            `json:"resource_id"`
	Date       string           `json:"date"`
	Timezone   string           `json:"timezone"`
	Slots      []slots.SlotInfo `json:"slots"`
}

// BookingRequest is the body of POST /api/v1/bookings.
type BookingRequest struct {
	BusinessID  int64  `json:"business_id"`
	ResourceID  int64  `json:"resource_id"`
	ServiceID   int64  `json:"service_id"`
	Start       string `json:"start"` // "YYYY-MM-DD HH:MM", or "YYYY-MM-DD" for stays
	Nights      int    `json:"nights,omitempty"`
	Guests      int    `json:"guests,omitempty"`
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone"`
}

// RescheduleBody is the body of PUT /api/v1/bookings/{id}.
type RescheduleBody struct {
	BusinessID int64  `json:"business_id"`
	ResourceID int64  `json:"resource_id,omitempty"`
	ServiceID  int64  `json:"service_id,omitempty"`
	Start      string `json:"start"`
	Nights     int    `json:"nights,omitempty"`
}

// BookingResponse describes a committed booking.
type BookingResponse struct {
	ID          int64  `json:"id"`
	Reference   string `json:"reference"`
	BusinessID  int64  `json:"business_id"`
	ResourceID  int64  `json:"resource_id"`
	ServiceID   int64  `json:"service_id,omitempty"`
	Start       string `json:"start"`
	Nights      int    `json:"nights,omitempty"`
	Guests      int    `json:"guests,omitempty"`
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone"`
}

func (s *HTTPServer) toResponse(b *model.Booking) BookingResponse {
	return BookingResponse{
		ID:          b.ID,
		Reference:   b.Reference,
		BusinessID:  b.BusinessID,
		ResourceID:  b.ResourceID,
		ServiceID:   b.ServiceID,
		Start:       clock.Localize(b.Start, s.loc).Format("2006-01-02 15:04"),
		Nights:      b.Nights,
		Guests:      b.Guests,
		ClientName:  b.ClientName,
		ClientPhone: b.ClientPhone,
	}
}

// handleSlots returns free start times.
// GET /api/v1/slots?business_id=1&resource_id=2&date=YYYY-MM-DD&service_id=3 (or duration=30; nights/guests for stays)
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots")

	req, err := s.parseSlotsRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	starts, err := s.svc.AvailableSlots(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	resp := SlotsResponse{
		BusinessID: req.BusinessID,
		ResourceID: req.ResourceID,
		Date:       req.Date.Format(clock.DateLayout),
		Timezone:   s.loc.String(),
		Slots:      make([]string, 0, len(starts)),
	}
	for _, t := range starts {
		resp.Slots = append(resp.Slots, t.In(s.loc).Format("15:04"))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSlotGrid returns the whole day grid with rejection reasons.
// GET /api/v1/slots/grid?business_id=1&resource_id=2&date=YYYY-MM-DD&service_id=3
func (s *HTTPServer) handleSlotGrid(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slot_grid")

	req, err := s.parseSlotsRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	grid, err := s.svc.SlotGrid(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	local := make([]slots.Slot, len(grid))
	for i, slot := range grid {
		slot.StartTime = slot.StartTime.In(s.loc)
		slot.EndTime = slot.EndTime.In(s.loc)
		local[i] = slot
	}
	writeJSON(w, http.StatusOK, GridResponse{
		BusinessID: req.BusinessID,
		ResourceID: req.ResourceID,
		Date:       req.Date.Format(clock.DateLayout),
		Timezone:   s.loc.String(),
		Slots:      slots.ToSlotInfo(local),
	})
}

// handleFindBooking looks a booking up by its reference.
// GET /api/v1/bookings?business_id=1&reference=...
func (s *HTTPServer) handleFindBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("find_booking")
	q := r.URL.Query()

	businessID, err := requiredID(q.Get("business_id"), "business_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reference := strings.TrimSpace(q.Get("reference"))
	if reference == "" {
		writeError(w, http.StatusBadRequest, "reference is required")
		return
	}

	b, err := s.svc.BookingByReference(r.Context(), businessID, reference)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toResponse(b))
}

// handleCreateBooking commits a booking.
// POST /api/v1/bookings
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_booking")

	var req BookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.BusinessID <= 0 || req.ResourceID <= 0 {
		writeError(w, http.StatusBadRequest, "business_id and resource_id are required")
		return
	}
	if strings.TrimSpace(req.ClientName) == "" {
		writeError(w, http.StatusBadRequest, "client_name is required")
		return
	}
	start, err := s.parseStart(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := s.svc.CreateBooking(r.Context(), service.CreateRequest{
		BusinessID:  req.BusinessID,
		ResourceID:  req.ResourceID,
		ServiceID:   req.ServiceID,
		Start:       start,
		Nights:      req.Nights,
		Guests:      req.Guests,
		ClientName:  strings.TrimSpace(req.ClientName),
		ClientPhone: strings.TrimSpace(req.ClientPhone),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.toResponse(b))
}

// handleRescheduleBooking moves a booking.
// PUT /api/v1/bookings/{id}
func (s *HTTPServer) handleRescheduleBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reschedule_booking")

	id, err := requiredID(r.PathValue("id"), "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body RescheduleBody
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.BusinessID <= 0 {
		writeError(w, http.StatusBadRequest, "business_id is required")
		return
	}
	start, err := s.parseStart(body.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := s.svc.RescheduleBooking(r.Context(), service.RescheduleRequest{
		BusinessID: body.BusinessID,
		BookingID:  id,
		ResourceID: body.ResourceID,
		ServiceID:  body.ServiceID,
		Start:      start,
		Nights:     body.Nights,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toResponse(b))
}

// handleDeleteBooking removes a booking.
// DELETE /api/v1/bookings/{id}?business_id=1
func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_booking")

	id, err := requiredID(r.PathValue("id"), "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	businessID, err := requiredID(r.URL.Query().Get("business_id"), "business_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.svc.DeleteBooking(r.Context(), businessID, id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAgenda downloads the day's agenda as a workbook.
// GET /api/v1/agenda.xlsx?business_id=1&date=YYYY-MM-DD
func (s *HTTPServer) handleAgenda(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("agenda")
	q := r.URL.Query()

	businessID, err := requiredID(q.Get("business_id"), "business_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := time.ParseInLocation(clock.DateLayout, q.Get("date"), s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	agenda, err := s.svc.Agenda(r.Context(), businessID, date)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteAgenda(&buf, *agenda, s.loc); err != nil {
		s.writeServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("agenda_%d_%s.xlsx", businessID, date.Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) parseSlotsRequest(r *http.Request) (service.SlotsRequest, error) {
	q := r.URL.Query()

	businessID, err := requiredID(q.Get("business_id"), "business_id")
	if err != nil {
		return service.SlotsRequest{}, err
	}
	resourceID, err := requiredID(q.Get("resource_id"), "resource_id")
	if err != nil {
		return service.SlotsRequest{}, err
	}
	date, err := time.ParseInLocation(clock.DateLayout, q.Get("date"), s.loc)
	if err != nil {
		return service.SlotsRequest{}, fmt.Errorf("invalid date format; expected YYYY-MM-DD")
	}
	serviceID, _ := strconv.ParseInt(q.Get("service_id"), 10, 64)
	duration, _ := strconv.Atoi(q.Get("duration"))
	nights, _ := strconv.Atoi(q.Get("nights"))
	guests, _ := strconv.Atoi(q.Get("guests"))

	return service.SlotsRequest{
		BusinessID:      businessID,
		ResourceID:      resourceID,
		ServiceID:       serviceID,
		DurationMinutes: duration,
		Date:            date,
		Nights:          nights,
		Guests:          guests,
	}, nil
}

func (s *HTTPServer) parseStart(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, value, s.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid start format; expected YYYY-MM-DD HH:MM")
}

func requiredID(value, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}
