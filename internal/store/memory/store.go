// Package memory is an in-process implementation of the store interfaces.
// A single mutex serializes every write, so the overlap check and the insert
// in Create are one atomic step.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
)

type Store struct {
	mu           sync.Mutex
	staff        map[uuid.UUID]domain.StaffMember
	schedules    map[uuid.UUID]domain.StaffSchedule
	appointments map[uuid.UUID]domain.Appointment
	now          func() time.Time
}

func New() *Store {
	return &Store{
		staff:        make(map[uuid.UUID]domain.StaffMember),
		schedules:    make(map[uuid.UUID]domain.StaffSchedule),
		appointments: make(map[uuid.UUID]domain.Appointment),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) CreateStaff(ctx context.Context, staff domain.StaffMember) (domain.StaffMember, error) {
	if err := ctx.Err(); err != nil {
		return domain.StaffMember{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if staff.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.StaffMember{}, err
		}
		staff.ID = id
	}
	if _, ok := s.staff[staff.ID]; ok {
		return domain.StaffMember{}, store.ErrIdempotencyConflict
	}
	now := s.now()
	staff.CreatedAt, staff.UpdatedAt = now, now
	s.staff[staff.ID] = staff
	return staff, nil
}

func (s *Store) GetStaff(ctx context.Context, staffID uuid.UUID) (domain.StaffMember, error) {
	if err := ctx.Err(); err != nil {
		return domain.StaffMember{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.staff[staffID]
	if !ok {
		return domain.StaffMember{}, store.ErrNotFound
	}
	return m, nil
}

func (s *Store) GetSchedule(ctx context.Context, staffID uuid.UUID) (domain.StaffSchedule, error) {
	if err := ctx.Err(); err != nil {
		return domain.StaffSchedule{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sch, ok := s.schedules[staffID]
	if !ok {
		return domain.StaffSchedule{}, store.ErrNotFound
	}
	return sch, nil
}

func (s *Store) SaveSchedule(ctx context.Context, schedule domain.StaffSchedule) (domain.StaffSchedule, error) {
	if err := ctx.Err(); err != nil {
		return domain.StaffSchedule{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.staff[schedule.StaffID]; !ok {
		return domain.StaffSchedule{}, store.ErrNotFound
	}
	schedule.UpdatedAt = s.now()
	s.schedules[schedule.StaffID] = schedule
	return schedule, nil
}

func (s *Store) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Appointment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.staff[appt.StaffID]; !ok {
		return domain.Appointment{}, store.ErrNotFound
	}

	if appt.ID != uuid.Nil {
		if existing, ok := s.appointments[appt.ID]; ok {
			if existing.StaffID != appt.StaffID ||
				existing.CustomerID != appt.CustomerID ||
				existing.ServiceName != appt.ServiceName ||
				existing.Notes != appt.Notes ||
				!existing.StartsAt.Equal(appt.StartsAt) ||
				!existing.EndsAt.Equal(appt.EndsAt) {
				return domain.Appointment{}, store.ErrIdempotencyConflict
			}
			return existing, nil
		}
	}

	for _, a := range s.appointments {
		if a.StaffID == appt.StaffID && a.Blocks(appt.StartsAt, appt.EndsAt) {
			return domain.Appointment{}, store.ErrConflict
		}
	}

	if appt.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Appointment{}, err
		}
		appt.ID = id
	}
	if appt.Status == "" {
		appt.Status = domain.StatusBooked
	}
	now := s.now()
	appt.CreatedAt, appt.UpdatedAt = now, now
	s.appointments[appt.ID] = appt
	return appt, nil
}

func (s *Store) List(ctx context.Context, staffID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Appointment, 0)
	for _, a := range s.appointments {
		if a.StaffID == staffID && a.Overlaps(windowStart, windowEnd) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out, nil
}

func (s *Store) Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Appointment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[appointmentID]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (s *Store) UpdateStatus(ctx context.Context, appointmentID uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Appointment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[appointmentID]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	if a.Status == status {
		return a, nil
	}
	if !a.Status.CanTransitionTo(status) {
		return domain.Appointment{}, domain.ErrStatusTransition
	}
	a.Status = status
	a.UpdatedAt = s.now()
	s.appointments[appointmentID] = a
	return a, nil
}

var (
	_ store.AppointmentRepository = (*Store)(nil)
	_ store.ScheduleRepository    = (*Store)(nil)
	_ store.StaffRepository       = (*Store)(nil)
)
