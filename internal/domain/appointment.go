package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ErrStatusTransition = errors.New("invalid status transition")

type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "booked"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no-show"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusBooked, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// OccupiesCalendar reports whether an appointment in this status blocks its
// time window. Cancelled and no-show appointments free the slot immediately.
func (s AppointmentStatus) OccupiesCalendar() bool {
	return s == StatusBooked || s == StatusCompleted
}

// CanTransitionTo lists the status changes the booking flow may request.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	if s != StatusBooked {
		return false
	}
	switch next {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID          uuid.UUID         `bun:"id,pk,type:uuid"`
	StaffID     uuid.UUID         `bun:"staff_id,notnull,type:uuid"`
	CustomerID  string            `bun:"customer_id"`
	ServiceName string            `bun:"service_name"`
	Notes       string            `bun:"notes"`
	StartsAt    time.Time         `bun:"starts_at,notnull"`
	EndsAt      time.Time         `bun:"ends_at,notnull"`
	Status      AppointmentStatus `bun:"status,notnull"`
	CreatedAt   time.Time         `bun:"created_at,notnull"`
	UpdatedAt   time.Time         `bun:"updated_at,notnull"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

// Overlaps applies the same half-open rule as Shift.Overlaps.
func (a Appointment) Overlaps(start, end time.Time) bool {
	return a.StartsAt.Before(end) && start.Before(a.EndsAt)
}

// Blocks reports whether a counts against [start, end) on its staff calendar.
func (a Appointment) Blocks(start, end time.Time) bool {
	return a.Status.OccupiesCalendar() && a.Overlaps(start, end)
}
