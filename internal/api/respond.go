package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"agendei/internal/availability"
	"agendei/internal/database"
	"agendei/internal/service"
	"agendei/internal/slots"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps service and storage errors to HTTP statuses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrSlotTaken):
		writeError(w, http.StatusConflict, database.ErrSlotTaken.Error())
	case errors.Is(err, service.ErrPastDate),
		errors.Is(err, service.ErrDateTooFar),
		errors.Is(err, service.ErrSlotUnavailable),
		errors.Is(err, service.ErrInactive),
		errors.Is(err, service.ErrServiceRequired),
		errors.Is(err, service.ErrGridUnsupported),
		errors.Is(err, slots.ErrInvalidDuration),
		errors.Is(err, slots.ErrForeignResource),
		errors.Is(err, availability.ErrInvalidNights),
		errors.Is(err, availability.ErrMinStay),
		errors.Is(err, availability.ErrOccupancy):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
