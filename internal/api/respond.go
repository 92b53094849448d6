package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/smiledental/booking-engine/internal/appointment"
	"github.com/smiledental/booking-engine/internal/catalog"
	"github.com/smiledental/booking-engine/internal/schedule"
	"github.com/smiledental/booking-engine/internal/store"
	"github.com/smiledental/booking-engine/internal/waitlist"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

// writeServiceError maps domain errors to HTTP: 400 for validation, 404 for
// unknown records, 409 for conflicts, 503 for exhausted transactions.
func writeServiceError(w http.ResponseWriter, err error) {
	var conflict *schedule.ConflictError

	switch {
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, "schedule_conflict", conflict.Error())
	case errors.Is(err, schedule.ErrInvalidDuration),
		errors.Is(err, schedule.ErrInvalidWindow),
		errors.Is(err, schedule.ErrInvalidBreak),
		errors.Is(err, schedule.ErrInvalidDay),
		errors.Is(err, appointment.ErrInvalidInitialStatus),
		errors.Is(err, appointment.ErrMissingField),
		errors.Is(err, waitlist.ErrMissingField),
		errors.Is(err, waitlist.ErrInvalidRequestedTime):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, catalog.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, waitlist.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "waitlist_entry_not_found", err.Error())
	case errors.Is(err, schedule.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "schedule_entry_not_found", err.Error())
	case errors.Is(err, appointment.ErrSlotNoLongerAvailable):
		writeError(w, http.StatusConflict, "slot_no_longer_available", appointment.ErrSlotNoLongerAvailable.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, waitlist.ErrDuplicateEntry):
		writeError(w, http.StatusConflict, "duplicate_waitlist_entry", err.Error())
	case errors.Is(err, store.ErrTransactionFailed):
		writeError(w, http.StatusServiceUnavailable, "transaction_failed", "the booking could not be saved, please retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
