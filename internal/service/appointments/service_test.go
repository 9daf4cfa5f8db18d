package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
)

type fakeRepo struct {
	createFn       func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	listFn         func(ctx context.Context, staffID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	getFn          func(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	updateStatusFn func(ctx context.Context, appointmentID uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error)
}

func (f *fakeRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if f.createFn == nil {
		panic("Create not configured")
	}
	return f.createFn(ctx, appt)
}

func (f *fakeRepo) List(ctx context.Context, staffID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	if f.listFn == nil {
		panic("List not configured")
	}
	return f.listFn(ctx, staffID, windowStart, windowEnd)
}

func (f *fakeRepo) Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	if f.getFn == nil {
		panic("Get not configured")
	}
	return f.getFn(ctx, appointmentID)
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, appointmentID uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	if f.updateStatusFn == nil {
		panic("UpdateStatus not configured")
	}
	return f.updateStatusFn(ctx, appointmentID, status)
}

type fakeStaff struct {
	known map[uuid.UUID]bool
}

func (f *fakeStaff) CreateStaff(ctx context.Context, staff domain.StaffMember) (domain.StaffMember, error) {
	panic("CreateStaff not used")
}

func (f *fakeStaff) GetStaff(ctx context.Context, staffID uuid.UUID) (domain.StaffMember, error) {
	if !f.known[staffID] {
		return domain.StaffMember{}, store.ErrNotFound
	}
	return domain.StaffMember{ID: staffID}, nil
}

type fakeSchedules struct {
	week domain.WeeklySchedule
	err  error
}

func (f *fakeSchedules) Get(ctx context.Context, staffID uuid.UUID) (domain.WeeklySchedule, error) {
	return f.week, f.err
}

type fakeAvailability struct {
	slots       []time.Time
	err         error
	calls       int
	invalidated []uuid.UUID
}

func (f *fakeAvailability) ListSlots(ctx context.Context, staffID uuid.UUID, date time.Time, durationMinutes int) ([]time.Time, error) {
	f.calls++
	return f.slots, f.err
}

func (f *fakeAvailability) Invalidate(ctx context.Context, staffID uuid.UUID) {
	f.invalidated = append(f.invalidated, staffID)
}

type fakeRecorder struct {
	outcomes []string
}

func (f *fakeRecorder) BookingOutcome(outcome string) {
	f.outcomes = append(f.outcomes, outcome)
}

var (
	testStaff = uuid.MustParse("00000000-0000-0000-0000-000000000011")
	testDay   = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
)

func openMonday() domain.WeeklySchedule {
	return domain.NewWeeklySchedule().WithDay(domain.Monday, domain.DaySchedule{
		Enabled: true,
		Shifts: []domain.Shift{
			{Start: domain.At(9, 0), End: domain.At(12, 0)},
			{Start: domain.At(13, 0), End: domain.At(17, 0)},
		},
	})
}

func newTestService(repo *fakeRepo, avail *fakeAvailability, rec *fakeRecorder) *Service {
	opts := Options{Location: time.UTC}
	if rec != nil {
		opts.Recorder = rec
	}
	return NewService(repo, &fakeStaff{known: map[uuid.UUID]bool{testStaff: true}}, &fakeSchedules{week: openMonday()}, avail, opts, nil)
}

func TestServiceCreate_ValidationErrorType(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeAvailability{}, nil)

	tests := []struct {
		name string
		in   CreateInput
		want string
	}{
		{name: "missing staff", in: CreateInput{StartsAt: testDay.Add(9 * time.Hour), DurationMinutes: 30}, want: "staff_id is required"},
		{name: "missing start", in: CreateInput{StaffID: testStaff, DurationMinutes: 30}, want: "starts_at is required"},
		{name: "zero duration", in: CreateInput{StaffID: testStaff, StartsAt: testDay.Add(9 * time.Hour)}, want: "duration must be positive"},
		{name: "too long", in: CreateInput{StaffID: testStaff, StartsAt: testDay.Add(9 * time.Hour), DurationMinutes: 24*60 + 1}, want: "duration too long"},
		{name: "spans lunch", in: CreateInput{StaffID: testStaff, StartsAt: testDay.Add(11*time.Hour + 30*time.Minute), DurationMinutes: 60}, want: "outside working hours"},
		{name: "off the slot grid", in: CreateInput{StaffID: testStaff, StartsAt: testDay.Add(9*time.Hour + 7*time.Minute), DurationMinutes: 30}, want: "starts_at is not on the slot grid"},
		{name: "closed day", in: CreateInput{StaffID: testStaff, StartsAt: testDay.AddDate(0, 0, 1).Add(10 * time.Hour), DurationMinutes: 30}, want: "outside working hours"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.in)
			if err == nil {
				t.Fatalf("expected error")
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error type = %T, want *ValidationError", err)
			}
			if vErr.Error() != tt.want {
				t.Fatalf("error = %q, want %q", vErr.Error(), tt.want)
			}
		})
	}
}

func TestServiceCreate_NormalizesTimesToUTCAndComputesEnd(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Lisbon")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}

	var got domain.Appointment
	avail := &fakeAvailability{}
	svc := newTestService(&fakeRepo{
		createFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			got = appt
			return appt, nil
		},
	}, avail, nil)

	// Lisbon is UTC+0 in January, so 10:00 local is inside the 09-12 shift.
	_, err = svc.Create(context.Background(), CreateInput{
		StaffID:         testStaff,
		ServiceName:     "  cut  ",
		StartsAt:        time.Date(2026, 1, 5, 10, 0, 0, 0, loc),
		DurationMinutes: 45,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ServiceName != "cut" {
		t.Fatalf("service name = %q, want %q", got.ServiceName, "cut")
	}
	if got.StartsAt.Location() != time.UTC || got.EndsAt.Location() != time.UTC {
		t.Fatalf("expected UTC times, got start=%v end=%v", got.StartsAt, got.EndsAt)
	}
	if got.EndsAt.Sub(got.StartsAt) != 45*time.Minute {
		t.Fatalf("duration = %v, want 45m", got.EndsAt.Sub(got.StartsAt))
	}
	if got.Status != domain.StatusBooked {
		t.Fatalf("status = %q, want booked", got.Status)
	}
	if len(avail.invalidated) != 1 || avail.invalidated[0] != testStaff {
		t.Fatalf("invalidated = %v, want [%s]", avail.invalidated, testStaff)
	}
}

func TestServiceCreate_AcceptsSlotEndingAtShiftEnd(t *testing.T) {
	svc := newTestService(&fakeRepo{
		createFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			return appt, nil
		},
	}, &fakeAvailability{}, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		StaffID:         testStaff,
		StartsAt:        testDay.Add(16*time.Hour + 30*time.Minute),
		DurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestServiceCreate_IdempotencyKeyDeterministicUUID(t *testing.T) {
	var ids []uuid.UUID
	svc := newTestService(&fakeRepo{
		createFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			ids = append(ids, appt.ID)
			return appt, nil
		},
	}, &fakeAvailability{}, nil)

	in := CreateInput{
		StaffID:         testStaff,
		StartsAt:        testDay.Add(9 * time.Hour),
		DurationMinutes: 60,
		IdempotencyKey:  "k1",
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.Create(context.Background(), in); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}
	in.IdempotencyKey = ""
	if _, err := svc.Create(context.Background(), in); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if len(ids) != 3 {
		t.Fatalf("len(ids) = %d, want 3", len(ids))
	}
	if ids[0] == uuid.Nil || ids[0] != ids[1] {
		t.Fatalf("ids differ for same key: %v and %v", ids[0], ids[1])
	}
	if ids[2] != uuid.Nil {
		t.Fatalf("id without key = %v, want nil", ids[2])
	}
}

func TestServiceCreate_ConflictReturnsFreshSlots(t *testing.T) {
	fresh := []time.Time{testDay.Add(9 * time.Hour), testDay.Add(14 * time.Hour)}
	avail := &fakeAvailability{slots: fresh}
	rec := &fakeRecorder{}
	svc := newTestService(&fakeRepo{
		createFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			return domain.Appointment{}, store.ErrConflict
		},
	}, avail, rec)

	_, err := svc.Create(context.Background(), CreateInput{
		StaffID:         testStaff,
		StartsAt:        testDay.Add(10 * time.Hour),
		DurationMinutes: 30,
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("error type = %T, want *ConflictError", err)
	}
	if len(cErr.Slots) != 2 || !cErr.Slots[1].Equal(fresh[1]) {
		t.Fatalf("slots = %v, want %v", cErr.Slots, fresh)
	}
	if !cErr.Date.Equal(testDay) {
		t.Fatalf("date = %v, want %v", cErr.Date, testDay)
	}
	if avail.calls != 1 {
		t.Fatalf("ListSlots calls = %d, want 1", avail.calls)
	}
	if len(avail.invalidated) != 1 || avail.invalidated[0] != testStaff {
		t.Fatalf("invalidated = %v, want [%s] before the refresh", avail.invalidated, testStaff)
	}
	if len(rec.outcomes) != 1 || rec.outcomes[0] != "conflict" {
		t.Fatalf("outcomes = %v, want [conflict]", rec.outcomes)
	}
}

func TestServiceCreate_ConflictWithFailedRefreshStillConflicts(t *testing.T) {
	svc := newTestService(&fakeRepo{
		createFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			return domain.Appointment{}, store.ErrConflict
		},
	}, &fakeAvailability{err: errors.New("db down")}, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		StaffID:         testStaff,
		StartsAt:        testDay.Add(10 * time.Hour),
		DurationMinutes: 30,
	})
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("error type = %T, want *ConflictError", err)
	}
	if cErr.Slots == nil || len(cErr.Slots) != 0 {
		t.Fatalf("slots = %v, want empty", cErr.Slots)
	}
}

func TestServiceCreate_UnknownStaff(t *testing.T) {
	svc := NewService(&fakeRepo{}, &fakeStaff{}, &fakeSchedules{err: store.ErrNotFound}, &fakeAvailability{}, Options{}, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		StaffID:         uuid.New(),
		StartsAt:        testDay.Add(10 * time.Hour),
		DurationMinutes: 30,
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestServiceListForDay_UsesCalendarDate(t *testing.T) {
	var gotStart, gotEnd time.Time
	svc := newTestService(&fakeRepo{
		listFn: func(ctx context.Context, staffID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
			gotStart, gotEnd = windowStart, windowEnd
			return nil, nil
		},
	}, &fakeAvailability{}, nil)

	if _, err := svc.ListForDay(context.Background(), testStaff, testDay.Add(15*time.Hour)); err != nil {
		t.Fatalf("ListForDay error: %v", err)
	}
	if !gotStart.Equal(testDay) || !gotEnd.Equal(testDay.AddDate(0, 0, 1)) {
		t.Fatalf("window = [%v, %v), want the whole of %v", gotStart, gotEnd, testDay)
	}

	if _, err := svc.ListForDay(context.Background(), uuid.New(), testDay); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestServiceUpdateStatus(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000099")

	t.Run("unknown status", func(t *testing.T) {
		svc := newTestService(&fakeRepo{}, &fakeAvailability{}, nil)
		_, err := svc.UpdateStatus(context.Background(), id, "paused")
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("error type = %T, want *ValidationError", err)
		}
	})

	t.Run("rejected transition", func(t *testing.T) {
		svc := newTestService(&fakeRepo{
			updateStatusFn: func(ctx context.Context, appointmentID uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
				return domain.Appointment{}, domain.ErrStatusTransition
			},
		}, &fakeAvailability{}, nil)
		_, err := svc.UpdateStatus(context.Background(), id, domain.StatusBooked)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("error type = %T, want *ValidationError", err)
		}
	})

	t.Run("cancel invalidates availability", func(t *testing.T) {
		avail := &fakeAvailability{}
		svc := newTestService(&fakeRepo{
			updateStatusFn: func(ctx context.Context, appointmentID uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
				return domain.Appointment{ID: appointmentID, StaffID: testStaff, Status: status}, nil
			},
		}, avail, nil)
		got, err := svc.UpdateStatus(context.Background(), id, domain.StatusCancelled)
		if err != nil {
			t.Fatalf("UpdateStatus error: %v", err)
		}
		if got.Status != domain.StatusCancelled {
			t.Fatalf("status = %q, want cancelled", got.Status)
		}
		if len(avail.invalidated) != 1 {
			t.Fatalf("invalidated = %v, want one call", avail.invalidated)
		}
	})
}
