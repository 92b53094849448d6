package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smiledental/booking-engine/internal/appointment"
	"github.com/smiledental/booking-engine/internal/schedule"
	"github.com/smiledental/booking-engine/internal/waitlist"
)

func joinWaitlistHandler(svc *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinWaitlistRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		ids, ok := parseIDs(w, map[string]string{
			"provider_id": req.ProviderID,
			"service_id":  req.ServiceID,
			"patient_id":  req.PatientID,
		})
		if !ok {
			return
		}
		date, err := schedule.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		requested, err := schedule.ParseClock(req.RequestedTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_requested_time", err.Error())
			return
		}

		entry, err := svc.Join(r.Context(), waitlist.JoinRequest{
			ProviderID:    ids["provider_id"],
			ServiceID:     ids["service_id"],
			PatientID:     ids["patient_id"],
			Date:          date,
			RequestedTime: requested,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toWaitlistEntryResponse(entry))
	}
}

func releaseHandler(svc *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SlotReleaseRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		ids, ok := parseIDs(w, map[string]string{
			"provider_id": req.ProviderID,
			"service_id":  req.ServiceID,
		})
		if !ok {
			return
		}
		date, err := schedule.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		start, err := schedule.ParseClock(req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", err.Error())
			return
		}
		end, err := schedule.ParseClock(req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end_time", err.Error())
			return
		}

		entry, err := svc.NotifyWaitlistOnFree(r.Context(), appointment.SlotRelease{
			ProviderID: ids["provider_id"],
			ServiceID:  ids["service_id"],
			Date:       date,
			Range:      schedule.TimeRange{Start: start, End: end},
			Reason:     appointment.ReleaseManual,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, SlotReleaseResponse{Notified: toWaitlistEntryResponse(entry)})
	}
}

func markBookedHandler(svc *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_waitlist_entry_id", "id must be a valid UUID")
			return
		}

		entry, err := svc.MarkBooked(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toWaitlistEntryResponse(entry))
	}
}

func parseIDs(w http.ResponseWriter, fields map[string]string) (map[string]uuid.UUID, bool) {
	ids := make(map[string]uuid.UUID, len(fields))
	for name, raw := range fields {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
			return nil, false
		}
		ids[name] = id
	}
	return ids, true
}
