package api

import (
	"net/http"
	"strconv"

	"agendei/internal/clock"
	"agendei/internal/metrics"
)

const maxEventsLimit = 500

type BusinessResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	WorkingDays string `json:"working_days,omitempty"`
}

type EventResponse struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Payload   string `json:"payload"`
	CreatedAt string `json:"created_at"`
}

// handleBusinesses lists the active businesses.
// GET /api/v1/businesses
func (s *HTTPServer) handleBusinesses(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("businesses")

	businesses, err := s.svc.Businesses(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	out := make([]BusinessResponse, 0, len(businesses))
	for _, b := range businesses {
		out = append(out, BusinessResponse{ID: b.ID, Name: b.Name, Kind: string(b.Kind), WorkingDays: b.Hours.WorkingDays})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleEvents returns the booking audit log of a business.
// GET /api/v1/events?business_id=1&limit=50
func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("events")
	q := r.URL.Query()

	businessID, err := requiredID(q.Get("business_id"), "business_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := 100
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
	}
	if limit > maxEventsLimit {
		limit = maxEventsLimit
	}

	entries, err := s.svc.AuditLog(r.Context(), businessID, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	out := make([]EventResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, EventResponse{
			ID:        e.ID,
			Type:      e.EventType,
			Payload:   e.Payload,
			CreatedAt: e.CreatedAt.In(s.loc).Format(clock.WallClockLayout),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
