package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smiledental/booking-engine/internal/schedule"
)

func parseScheduleEntry(w http.ResponseWriter, r *http.Request) (schedule.Entry, bool) {
	providerID, err := uuid.Parse(chi.URLParam(r, "providerID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_provider_id", "providerID must be a valid UUID")
		return schedule.Entry{}, false
	}

	var req ScheduleEntryRequest
	if !decodeJSON(w, r, &req) {
		return schedule.Entry{}, false
	}

	entry := schedule.Entry{
		ProviderID:  providerID,
		DayOfWeek:   time.Weekday(req.DayOfWeek),
		IsAvailable: true,
	}
	if req.IsAvailable != nil {
		entry.IsAvailable = *req.IsAvailable
	}
	if req.ID != "" {
		if entry.ID, err = uuid.Parse(req.ID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_entry_id", "id must be a valid UUID")
			return schedule.Entry{}, false
		}
	}

	if entry.StartTime, err = schedule.ParseClock(req.StartTime); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start_time", err.Error())
		return schedule.Entry{}, false
	}
	if entry.EndTime, err = schedule.ParseClock(req.EndTime); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_end_time", err.Error())
		return schedule.Entry{}, false
	}

	if req.BreakStart != nil {
		v, err := schedule.ParseClock(*req.BreakStart)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_break_start", err.Error())
			return schedule.Entry{}, false
		}
		entry.BreakStart = &v
	}
	if req.BreakEnd != nil {
		v, err := schedule.ParseClock(*req.BreakEnd)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_break_end", err.Error())
			return schedule.Entry{}, false
		}
		entry.BreakEnd = &v
	}

	return entry, true
}

func validateScheduleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, ok := parseScheduleEntry(w, r)
		if !ok {
			return
		}

		if err := svc.ValidateScheduleEntry(r.Context(), entry.ProviderID, entry); err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, ValidationResponse{Valid: true})
	}
}

func saveScheduleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, ok := parseScheduleEntry(w, r)
		if !ok {
			return
		}

		if err := svc.SaveEntry(r.Context(), &entry); err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toScheduleEntryResponse(entry))
	}
}

func listScheduleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(chi.URLParam(r, "providerID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "providerID must be a valid UUID")
			return
		}

		entries, err := svc.ListEntries(r.Context(), providerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := make([]ScheduleEntryResponse, 0, len(entries))
		for _, e := range entries {
			resp = append(resp, toScheduleEntryResponse(e))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
