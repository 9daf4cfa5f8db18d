package availability

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
	"salonbook/backend/internal/store/rediscache"
)

const MaxRangeDays = 31

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

type ScheduleSource interface {
	Get(ctx context.Context, staffID uuid.UUID) (domain.WeeklySchedule, error)
}

type SlotCache interface {
	Lookup(ctx context.Context, key rediscache.SlotKey) (rediscache.Entry, error)
	Store(ctx context.Context, e rediscache.Entry, slots []time.Time) error
	Invalidate(ctx context.Context, staffID uuid.UUID) error
}

type Recorder interface {
	SlotsGenerated(n int)
	CacheLookup(hit bool)
}

type Options struct {
	Granularity time.Duration
	Location    *time.Location
	Cache       SlotCache
	Recorder    Recorder
}

type Service struct {
	schedules   ScheduleSource
	appts       store.AppointmentRepository
	cache       SlotCache
	rec         Recorder
	granularity time.Duration
	loc         *time.Location
	log         *slog.Logger
}

func NewService(schedules ScheduleSource, appts store.AppointmentRepository, opts Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if opts.Granularity <= 0 {
		opts.Granularity = domain.DefaultSlotGranularity
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{
		schedules:   schedules,
		appts:       appts,
		cache:       opts.Cache,
		rec:         opts.Recorder,
		granularity: opts.Granularity,
		loc:         opts.Location,
		log:         log.With(slog.String("component", "availability")),
	}
}

// ListSlots returns the bookable start instants for one calendar date in the
// salon's time zone. A non-positive duration yields an empty list.
func (s *Service) ListSlots(ctx context.Context, staffID uuid.UUID, date time.Time, durationMinutes int) ([]time.Time, error) {
	if staffID == uuid.Nil {
		return nil, validationError("staff_id is required")
	}
	day := domain.DateOf(date.In(s.loc))

	week, err := s.schedules.Get(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if durationMinutes <= 0 {
		return []time.Time{}, nil
	}

	key := rediscache.SlotKey{StaffID: staffID, Date: day, DurationMinutes: durationMinutes, Granularity: s.granularity}
	var (
		entry     rediscache.Entry
		cacheable bool
	)
	if s.cache != nil {
		entry, err = s.cache.Lookup(ctx, key)
		if err != nil {
			s.log.WarnContext(ctx, "availability cache lookup failed", slog.Any("err", err))
		} else {
			s.recordLookup(entry.Hit)
			if entry.Hit {
				return entry.Slots, nil
			}
			cacheable = true
		}
	}

	appts, err := s.appts.List(ctx, staffID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	slots := domain.GenerateSlots(week, appts, domain.SlotRequest{
		StaffID:         staffID,
		Date:            day,
		DurationMinutes: durationMinutes,
	}, s.granularity)
	if s.rec != nil {
		s.rec.SlotsGenerated(len(slots))
	}

	if cacheable {
		if serr := s.cache.Store(ctx, entry, slots); serr != nil {
			s.log.WarnContext(ctx, "availability cache store failed", slog.Any("err", serr))
		}
	}
	return slots, nil
}

type DaySlots struct {
	Date  time.Time
	Slots []time.Time
}

// ListRange returns one entry per calendar date in [from, to), reading the
// schedule and the appointments once for the whole range.
func (s *Service) ListRange(ctx context.Context, staffID uuid.UUID, from, to time.Time, durationMinutes int) ([]DaySlots, error) {
	if staffID == uuid.Nil {
		return nil, validationError("staff_id is required")
	}
	start := domain.DateOf(from.In(s.loc))
	end := domain.DateOf(to.In(s.loc))
	if !start.Before(end) {
		return nil, validationError("to must be after from")
	}
	if end.After(start.AddDate(0, 0, MaxRangeDays)) {
		return nil, validationError("range must not exceed 31 days")
	}

	week, err := s.schedules.Get(ctx, staffID)
	if err != nil {
		return nil, err
	}

	open := make(map[string]bool)
	for _, w := range domain.ExpandShifts(week, start, end) {
		open[w.Date.Format(time.DateOnly)] = true
	}

	var appts []domain.Appointment
	if len(open) > 0 && durationMinutes > 0 {
		appts, err = s.appts.List(ctx, staffID, start, end)
		if err != nil {
			return nil, err
		}
	}

	out := make([]DaySlots, 0, MaxRangeDays)
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		slots := []time.Time{}
		if open[day.Format(time.DateOnly)] {
			slots = domain.GenerateSlots(week, appts, domain.SlotRequest{
				StaffID:         staffID,
				Date:            day,
				DurationMinutes: durationMinutes,
			}, s.granularity)
		}
		out = append(out, DaySlots{Date: day, Slots: slots})
	}
	return out, nil
}

// Invalidate drops cached availability for the staff member. Failures are
// logged; entries expire on their own.
func (s *Service) Invalidate(ctx context.Context, staffID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, staffID); err != nil {
		s.log.ErrorContext(ctx, "availability cache invalidation failed",
			slog.String("staff_id", staffID.String()),
			slog.Any("err", err),
		)
	}
}

func (s *Service) recordLookup(hit bool) {
	if s.rec != nil {
		s.rec.CacheLookup(hit)
	}
}
