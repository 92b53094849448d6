package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/smiledental/booking-engine/internal/appointment"
	"github.com/smiledental/booking-engine/internal/schedule"
	"github.com/smiledental/booking-engine/internal/waitlist"
)

// Clock times travel as "HH:MM" and dates as "YYYY-MM-DD".

type SlotResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type AvailabilityResponse struct {
	ProviderID uuid.UUID      `json:"provider_id"`
	ServiceID  uuid.UUID      `json:"service_id"`
	Date       string         `json:"date"`
	Slots      []SlotResponse `json:"slots"`
}

type ScheduleEntryRequest struct {
	ID          string  `json:"id,omitempty"`
	DayOfWeek   int     `json:"day_of_week"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	BreakStart  *string `json:"break_start,omitempty"`
	BreakEnd    *string `json:"break_end,omitempty"`
	IsAvailable *bool   `json:"is_available,omitempty"`
}

type ScheduleEntryResponse struct {
	ID          uuid.UUID `json:"id"`
	ProviderID  uuid.UUID `json:"provider_id"`
	DayOfWeek   int       `json:"day_of_week"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	BreakStart  *string   `json:"break_start,omitempty"`
	BreakEnd    *string   `json:"break_end,omitempty"`
	IsAvailable bool      `json:"is_available"`
}

type ValidationResponse struct {
	Valid bool `json:"valid"`
}

type CreateAppointmentRequest struct {
	ProviderID string `json:"provider_id"`
	ServiceID  string `json:"service_id"`
	PatientID  string `json:"patient_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	Status     string `json:"status,omitempty"`
}

type AppointmentResponse struct {
	ID            uuid.UUID `json:"id"`
	BookingRef    string    `json:"booking_ref"`
	ProviderID    uuid.UUID `json:"provider_id"`
	ServiceID     uuid.UUID `json:"service_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Date          string    `json:"date"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	CreatedAt     time.Time `json:"created_at"`
}

type JoinWaitlistRequest struct {
	ProviderID    string `json:"provider_id"`
	ServiceID     string `json:"service_id"`
	PatientID     string `json:"patient_id"`
	Date          string `json:"date"`
	RequestedTime string `json:"requested_time"`
}

type SlotReleaseRequest struct {
	ProviderID string `json:"provider_id"`
	ServiceID  string `json:"service_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

type WaitlistEntryResponse struct {
	ID            uuid.UUID  `json:"id"`
	ProviderID    uuid.UUID  `json:"provider_id"`
	ServiceID     uuid.UUID  `json:"service_id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	Date          string     `json:"date"`
	RequestedTime string     `json:"requested_time"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	NotifiedAt    *time.Time `json:"notified_at,omitempty"`
}

type SlotReleaseResponse struct {
	Notified *WaitlistEntryResponse `json:"notified"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toSlots(ranges []schedule.TimeRange) []SlotResponse {
	out := make([]SlotResponse, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, SlotResponse{Start: schedule.FormatClock(r.Start), End: schedule.FormatClock(r.End)})
	}
	return out
}

func toScheduleEntryResponse(e schedule.Entry) ScheduleEntryResponse {
	resp := ScheduleEntryResponse{
		ID:          e.ID,
		ProviderID:  e.ProviderID,
		DayOfWeek:   int(e.DayOfWeek),
		StartTime:   schedule.FormatClock(e.StartTime),
		EndTime:     schedule.FormatClock(e.EndTime),
		IsAvailable: e.IsAvailable,
	}
	if brk, ok := e.Break(); ok {
		start, end := schedule.FormatClock(brk.Start), schedule.FormatClock(brk.End)
		resp.BreakStart = &start
		resp.BreakEnd = &end
	}
	return resp
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		BookingRef:    a.BookingRef,
		ProviderID:    a.ProviderID,
		ServiceID:     a.ServiceID,
		PatientID:     a.PatientID,
		Date:          schedule.FormatDate(a.Date),
		StartTime:     schedule.FormatClock(a.StartTime),
		EndTime:       schedule.FormatClock(a.EndTime),
		Status:        string(a.Status),
		PaymentStatus: string(a.PaymentStatus),
		CreatedAt:     a.CreatedAt,
	}
}

func toWaitlistEntryResponse(e *waitlist.Entry) *WaitlistEntryResponse {
	if e == nil {
		return nil
	}
	return &WaitlistEntryResponse{
		ID:            e.ID,
		ProviderID:    e.ProviderID,
		ServiceID:     e.ServiceID,
		PatientID:     e.PatientID,
		Date:          schedule.FormatDate(e.Date),
		RequestedTime: schedule.FormatClock(e.RequestedTime),
		Status:        string(e.Status),
		CreatedAt:     e.CreatedAt,
		NotifiedAt:    e.NotifiedAt,
	}
}
