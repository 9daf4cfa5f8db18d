package rest

import (
	"time"

	"github.com/google/uuid"

	"salonbook/backend/internal/domain"
)

type ErrorResponse struct {
	Code  string            `json:"code"`
	Error string            `json:"error"`
	Days  map[string]string `json:"days,omitempty"`
	Slots []time.Time       `json:"slots,omitempty"`
}

type StaffRequest struct {
	Title string `json:"title"`
}

type StaffResponse struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type ScheduleResponse struct {
	StaffID  uuid.UUID             `json:"staff_id"`
	Schedule domain.WeeklySchedule `json:"schedule"`
}

type SlotsResponse struct {
	StaffID         uuid.UUID   `json:"staff_id"`
	Date            string      `json:"date"`
	DurationMinutes int         `json:"duration_minutes"`
	Slots           []time.Time `json:"slots"`
}

type DaySlotsResponse struct {
	Date  string      `json:"date"`
	Slots []time.Time `json:"slots"`
}

type RangeSlotsResponse struct {
	StaffID         uuid.UUID          `json:"staff_id"`
	DurationMinutes int                `json:"duration_minutes"`
	Days            []DaySlotsResponse `json:"days"`
}

type CreateAppointmentRequest struct {
	CustomerID      string    `json:"customer_id"`
	ServiceName     string    `json:"service_name"`
	Notes           string    `json:"notes"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

type UpdateStatusRequest struct {
	Status domain.AppointmentStatus `json:"status"`
}

type AppointmentResponse struct {
	ID          uuid.UUID                `json:"id"`
	StaffID     uuid.UUID                `json:"staff_id"`
	CustomerID  string                   `json:"customer_id,omitempty"`
	ServiceName string                   `json:"service_name,omitempty"`
	Notes       string                   `json:"notes,omitempty"`
	StartsAt    time.Time                `json:"starts_at"`
	EndsAt      time.Time                `json:"ends_at"`
	Status      domain.AppointmentStatus `json:"status"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

type AppointmentsResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
}

func toStaffResponse(s domain.StaffMember) StaffResponse {
	return StaffResponse{ID: s.ID, Title: s.Title, CreatedAt: s.CreatedAt}
}

func toAppointmentResponse(a domain.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		StaffID:     a.StaffID,
		CustomerID:  a.CustomerID,
		ServiceName: a.ServiceName,
		Notes:       a.Notes,
		StartsAt:    a.StartsAt.UTC(),
		EndsAt:      a.EndsAt.UTC(),
		Status:      a.Status,
		CreatedAt:   a.CreatedAt.UTC(),
		UpdatedAt:   a.UpdatedAt.UTC(),
	}
}

// ToAppointment converts a response back into the domain value.
func (a AppointmentResponse) ToAppointment() domain.Appointment {
	return domain.Appointment{
		ID:          a.ID,
		StaffID:     a.StaffID,
		CustomerID:  a.CustomerID,
		ServiceName: a.ServiceName,
		Notes:       a.Notes,
		StartsAt:    a.StartsAt,
		EndsAt:      a.EndsAt,
		Status:      a.Status,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func utcSlots(in []time.Time) []time.Time {
	out := make([]time.Time, len(in))
	for i, t := range in {
		out[i] = t.UTC()
	}
	return out
}
