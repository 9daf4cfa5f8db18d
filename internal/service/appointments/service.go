package appointments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
)

const maxDurationMinutes = 24 * 60

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// ConflictError is returned when another booking won the slot. Slots is the
// availability recomputed after the loss; callers should offer it instead of
// retrying the same start.
type ConflictError struct {
	StaffID uuid.UUID
	Date    time.Time
	Slots   []time.Time
}

func (e *ConflictError) Error() string {
	return "the selected time is no longer available"
}

func (e *ConflictError) Unwrap() error {
	return store.ErrConflict
}

type ScheduleSource interface {
	Get(ctx context.Context, staffID uuid.UUID) (domain.WeeklySchedule, error)
}

type Availability interface {
	ListSlots(ctx context.Context, staffID uuid.UUID, date time.Time, durationMinutes int) ([]time.Time, error)
	Invalidate(ctx context.Context, staffID uuid.UUID)
}

type Recorder interface {
	BookingOutcome(outcome string)
}

type Options struct {
	// Granularity is the slot step; starts must fall on it. Zero means
	// domain.DefaultSlotGranularity.
	Granularity time.Duration
	Location    *time.Location
	Recorder    Recorder
}

type Service struct {
	repo      store.AppointmentRepository
	staff     store.StaffRepository
	schedules ScheduleSource
	slots     Availability
	rec       Recorder
	step      time.Duration
	loc       *time.Location
	log       *slog.Logger
}

func NewService(repo store.AppointmentRepository, staff store.StaffRepository, schedules ScheduleSource, slots Availability, opts Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Granularity <= 0 {
		opts.Granularity = domain.DefaultSlotGranularity
	}
	return &Service{
		repo:      repo,
		staff:     staff,
		schedules: schedules,
		slots:     slots,
		rec:       opts.Recorder,
		step:      opts.Granularity,
		loc:       opts.Location,
		log:       log.With(slog.String("component", "appointments")),
	}
}

type CreateInput struct {
	StaffID         uuid.UUID
	CustomerID      string
	ServiceName     string
	Notes           string
	StartsAt        time.Time
	DurationMinutes int
	IdempotencyKey  string
}

// Create books [StartsAt, StartsAt+duration) for the staff member. The window
// must sit inside a single shift and start on that shift's slot grid. The store performs the overlap check and the
// insert atomically; when it reports a conflict Create answers with a
// *ConflictError carrying freshly computed slots.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Appointment, error) {
	if in.StaffID == uuid.Nil {
		return s.invalid("staff_id is required")
	}
	if in.StartsAt.IsZero() {
		return s.invalid("starts_at is required")
	}
	if in.DurationMinutes <= 0 {
		return s.invalid("duration must be positive")
	}
	if in.DurationMinutes > maxDurationMinutes {
		return s.invalid("duration too long")
	}

	start := in.StartsAt.UTC()
	end := start.Add(time.Duration(in.DurationMinutes) * time.Minute)

	week, err := s.schedules.Get(ctx, in.StaffID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !week.Covers(start.In(s.loc), end.In(s.loc)) {
		return s.invalid("outside working hours")
	}
	if !week.OnGrid(start.In(s.loc), end.In(s.loc), s.step) {
		return s.invalid("starts_at is not on the slot grid")
	}

	appt := domain.Appointment{
		StaffID:     in.StaffID,
		CustomerID:  strings.TrimSpace(in.CustomerID),
		ServiceName: strings.TrimSpace(in.ServiceName),
		Notes:       in.Notes,
		StartsAt:    start,
		EndsAt:      end,
		Status:      domain.StatusBooked,
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return s.invalid("idempotency_key too long")
		}
		appt.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("salonbook:create_appointment:"+in.StaffID.String()+":"+key))
	}

	created, err := s.repo.Create(ctx, appt)
	if errors.Is(err, store.ErrConflict) {
		return domain.Appointment{}, s.conflict(ctx, in.StaffID, start, in.DurationMinutes)
	}
	if err != nil {
		s.record("error")
		return domain.Appointment{}, err
	}

	s.slots.Invalidate(ctx, in.StaffID)
	s.record("created")
	s.log.InfoContext(ctx, "appointment booked",
		slog.String("appointment_id", created.ID.String()),
		slog.String("staff_id", created.StaffID.String()),
		slog.Time("starts_at", created.StartsAt),
	)
	return created, nil
}

func (s *Service) conflict(ctx context.Context, staffID uuid.UUID, start time.Time, durationMinutes int) error {
	s.record("conflict")
	date := domain.DateOf(start.In(s.loc))

	// The losing request may have read a cached day that predates the
	// winner's commit.
	s.slots.Invalidate(ctx, staffID)
	slots, err := s.slots.ListSlots(ctx, staffID, date, durationMinutes)
	if err != nil {
		s.log.ErrorContext(ctx, "refresh availability after conflict failed",
			slog.String("staff_id", staffID.String()),
			slog.Any("err", err),
		)
		slots = []time.Time{}
	}

	s.log.InfoContext(ctx, "appointment conflict",
		slog.String("staff_id", staffID.String()),
		slog.Time("starts_at", start),
		slog.Int("fresh_slots", len(slots)),
	)
	return &ConflictError{StaffID: staffID, Date: date, Slots: slots}
}

// ListForDay returns every appointment touching the calendar date, whatever
// its status.
func (s *Service) ListForDay(ctx context.Context, staffID uuid.UUID, date time.Time) ([]domain.Appointment, error) {
	if staffID == uuid.Nil {
		return nil, validationError("staff_id is required")
	}
	if _, err := s.staff.GetStaff(ctx, staffID); err != nil {
		return nil, err
	}

	day := domain.DateOf(date.In(s.loc))
	return s.repo.List(ctx, staffID, day, day.AddDate(0, 0, 1))
}

func (s *Service) Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	return s.repo.Get(ctx, appointmentID)
}

// UpdateStatus moves a booked appointment to completed, cancelled or no-show.
// Cancelled and no-show appointments release their window at once.
func (s *Service) UpdateStatus(ctx context.Context, appointmentID uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	if !status.Valid() {
		return domain.Appointment{}, validationError(fmt.Sprintf("unknown status %q", status))
	}

	updated, err := s.repo.UpdateStatus(ctx, appointmentID, status)
	if errors.Is(err, domain.ErrStatusTransition) {
		return domain.Appointment{}, validationError(fmt.Sprintf("cannot change status to %q", status))
	}
	if err != nil {
		return domain.Appointment{}, err
	}

	s.slots.Invalidate(ctx, updated.StaffID)
	return updated, nil
}

func (s *Service) invalid(msg string) (domain.Appointment, error) {
	s.record("invalid")
	return domain.Appointment{}, validationError(msg)
}

func (s *Service) record(outcome string) {
	if s.rec != nil {
		s.rec.BookingOutcome(outcome)
	}
}
