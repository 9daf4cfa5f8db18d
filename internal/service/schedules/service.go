package schedules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
)

// ValidationError reports a rejected schedule. Days holds one error per
// failing weekday; it is empty when the failure is not tied to a day.
type ValidationError struct {
	msg  string
	Days map[domain.Weekday]error
}

func (e *ValidationError) Error() string {
	if len(e.Days) == 0 {
		return e.msg
	}
	parts := make([]string, 0, len(e.Days))
	for _, d := range domain.Weekdays {
		if err, ok := e.Days[d]; ok {
			parts = append(parts, fmt.Sprintf("%s: %v", d, err))
		}
	}
	return e.msg + ": " + strings.Join(parts, "; ")
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Invalidator drops derived availability after a schedule changes.
type Invalidator interface {
	Invalidate(ctx context.Context, staffID uuid.UUID) error
}

type Service struct {
	staff     store.StaffRepository
	schedules store.ScheduleRepository
	cache     Invalidator
	log       *slog.Logger
}

func NewService(staff store.StaffRepository, schedules store.ScheduleRepository, cache Invalidator, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		staff:     staff,
		schedules: schedules,
		cache:     cache,
		log:       log.With(slog.String("component", "schedules")),
	}
}

// Get returns the staff member's week. A staff member that never saved a
// schedule gets the all-disabled week.
func (s *Service) Get(ctx context.Context, staffID uuid.UUID) (domain.WeeklySchedule, error) {
	if staffID == uuid.Nil {
		return domain.WeeklySchedule{}, validationError("staff_id is required")
	}
	if _, err := s.staff.GetStaff(ctx, staffID); err != nil {
		return domain.WeeklySchedule{}, err
	}

	sch, err := s.schedules.GetSchedule(ctx, staffID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.NewWeeklySchedule(), nil
	}
	if err != nil {
		return domain.WeeklySchedule{}, err
	}
	return sch.Document, nil
}

// Save validates and replaces the whole week. Shifts left on disabled days
// are dropped before validation.
func (s *Service) Save(ctx context.Context, staffID uuid.UUID, week domain.WeeklySchedule) (domain.WeeklySchedule, error) {
	if staffID == uuid.Nil {
		return domain.WeeklySchedule{}, validationError("staff_id is required")
	}

	week = week.Normalize()
	if errs := domain.ValidateWeek(week); len(errs) > 0 {
		days := make([]string, 0, len(errs))
		for d := range errs {
			days = append(days, d.String())
		}
		sort.Strings(days)
		s.log.WarnContext(ctx, "schedule rejected",
			slog.String("staff_id", staffID.String()),
			slog.Any("days", days),
		)
		return domain.WeeklySchedule{}, &ValidationError{msg: "invalid schedule", Days: errs}
	}

	saved, err := s.schedules.SaveSchedule(ctx, domain.StaffSchedule{StaffID: staffID, Document: week})
	if err != nil {
		return domain.WeeklySchedule{}, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, staffID); err != nil {
			s.log.ErrorContext(ctx, "availability cache invalidation failed",
				slog.String("staff_id", staffID.String()),
				slog.Any("err", err),
			)
		}
	}
	return saved.Document, nil
}

type CreateStaffInput struct {
	Title string
}

func (s *Service) CreateStaff(ctx context.Context, in CreateStaffInput) (domain.StaffMember, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.StaffMember{}, validationError("title is required")
	}
	return s.staff.CreateStaff(ctx, domain.StaffMember{Title: title})
}

func (s *Service) GetStaff(ctx context.Context, staffID uuid.UUID) (domain.StaffMember, error) {
	if staffID == uuid.Nil {
		return domain.StaffMember{}, validationError("staff_id is required")
	}
	return s.staff.GetStaff(ctx, staffID)
}
