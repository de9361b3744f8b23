package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"agendei/internal/clock"
	"agendei/internal/metrics"
	"agendei/internal/session"
)

var knownSteps = map[session.Step]bool{
	session.StepIdle:          true,
	session.StepChooseService: true,
	session.StepChooseDate:    true,
	session.StepChooseSlot:    true,
	session.StepConfirm:       true,
}

// SessionBody is the body of PUT /api/v1/sessions/{caller_id}.
type SessionBody struct {
	BusinessID int64             `json:"business_id"`
	Step       session.Step      `json:"step"`
	ResourceID int64             `json:"resource_id,omitempty"`
	ServiceID  int64             `json:"service_id,omitempty"`
	Date       string            `json:"date,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
}

// handleGetSession returns the caller's conversation, or 404 when it expired.
// GET /api/v1/sessions/{caller_id}
func (s *HTTPServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_session")

	callerID := strings.TrimSpace(r.PathValue("caller_id"))
	sess, err := s.sessions.Get(r.Context(), callerID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found or expired")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handlePutSession stores the caller's conversation and restarts its TTL.
// PUT /api/v1/sessions/{caller_id}
func (s *HTTPServer) handlePutSession(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("put_session")

	callerID := strings.TrimSpace(r.PathValue("caller_id"))
	if callerID == "" {
		writeError(w, http.StatusBadRequest, "caller_id is required")
		return
	}

	var body SessionBody
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
	if body.Step == "" {
		body.Step = session.StepIdle
	}
	if !knownSteps[body.Step] {
		writeError(w, http.StatusBadRequest, "unknown step")
		return
	}
	if body.Date != "" {
		if _, err := time.ParseInLocation(clock.DateLayout, body.Date, s.loc); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
	}

	sess := &session.Session{
		CallerID:   callerID,
		BusinessID: body.BusinessID,
		Step:       body.Step,
		ResourceID: body.ResourceID,
		ServiceID:  body.ServiceID,
		Date:       body.Date,
		Data:       body.Data,
	}
	if err := s.sessions.Set(r.Context(), sess); err != nil {
		s.writeServiceError(w, err)
		return
	}
	if stored, err := s.sessions.Get(r.Context(), callerID); err == nil && stored != nil {
		sess = stored
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleDeleteSession ends the caller's conversation.
// DELETE /api/v1/sessions/{caller_id}
func (s *HTTPServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_session")

	if err := s.sessions.Clear(r.Context(), strings.TrimSpace(r.PathValue("caller_id"))); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
