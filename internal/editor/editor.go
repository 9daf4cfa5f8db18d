// Package editor drives the edit-validate-save cycle for one staff member's
// weekly schedule.
//
// Every edit builds a new domain.WeeklySchedule; the previous value is never
// modified, so a schedule handed to the persistence collaborator cannot change
// underneath it. Only one save may be in flight. While it is, further saves,
// edits and reloads fail with ErrSaveInProgress.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"salonbook/backend/internal/domain"
)

type State int

const (
	StateViewing State = iota
	StateEditing
	StateValidating
	StateSaving
	StateSaved
	StateError
)

var stateNames = [...]string{
	StateViewing:    "viewing",
	StateEditing:    "editing",
	StateValidating: "validating",
	StateSaving:     "saving",
	StateSaved:      "saved",
	StateError:      "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

var (
	ErrSaveInProgress = errors.New("a save is already in progress")
	ErrNotLoaded      = errors.New("schedule has not been loaded")
	ErrDayDisabled    = errors.New("day is disabled")
	ErrNoSuchShift    = errors.New("shift does not exist")
	ErrInvalidDay     = errors.New("invalid weekday")
)

// ValidationError carries the per-day failures of a rejected save.
type ValidationError struct {
	Days map[domain.Weekday]error
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Days))
	for _, d := range domain.Weekdays {
		if err, ok := e.Days[d]; ok {
			parts = append(parts, fmt.Sprintf("%s: %v", d, err))
		}
	}
	return "invalid schedule: " + strings.Join(parts, "; ")
}

// Store is the persistence collaborator.
type Store interface {
	FetchSchedule(ctx context.Context, staffID uuid.UUID) (domain.WeeklySchedule, error)
	SaveSchedule(ctx context.Context, staffID uuid.UUID, week domain.WeeklySchedule) (domain.WeeklySchedule, error)
}

// Observer is called on every state change while the editor lock is held; it
// must not call back into the Editor.
type Observer func(from, to State)

type Option func(*Editor)

func WithDefaultShift(s domain.Shift) Option {
	return func(e *Editor) {
		e.defaultShift = s
	}
}

func WithObserver(fn Observer) Option {
	return func(e *Editor) {
		e.observer = fn
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(e *Editor) {
		e.log = log
	}
}

var DefaultShift = domain.Shift{Start: domain.At(9, 0), End: domain.At(17, 0)}

type Editor struct {
	mu sync.Mutex

	store   Store
	staffID uuid.UUID

	state    State
	loaded   bool
	baseline domain.WeeklySchedule
	current  domain.WeeklySchedule
	dayErrs  map[domain.Weekday]error
	saveErr  error

	defaultShift domain.Shift
	observer     Observer
	log          *slog.Logger
}

func New(store Store, staffID uuid.UUID, opts ...Option) *Editor {
	e := &Editor{
		store:        store,
		staffID:      staffID,
		state:        StateViewing,
		baseline:     domain.NewWeeklySchedule(),
		current:      domain.NewWeeklySchedule(),
		dayErrs:      make(map[domain.Weekday]error),
		defaultShift: DefaultShift,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	e.log = e.log.With(slog.String("component", "editor"), slog.String("staff_id", staffID.String()))
	return e
}

// Load fetches the persisted schedule and makes it the baseline, dropping
// pending edits.
func (e *Editor) Load(ctx context.Context) error {
	e.mu.Lock()
	if e.busy() {
		e.mu.Unlock()
		return ErrSaveInProgress
	}
	e.mu.Unlock()

	week, err := e.store.FetchSchedule(ctx, e.staffID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy() {
		return ErrSaveInProgress
	}
	e.baseline = week
	e.current = week
	e.loaded = true
	e.dayErrs = make(map[domain.Weekday]error)
	e.saveErr = nil
	e.transition(StateViewing)
	return nil
}

func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Schedule returns the in-memory schedule including unsaved edits.
func (e *Editor) Schedule() domain.WeeklySchedule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *Editor) Baseline() domain.WeeklySchedule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.baseline
}

func (e *Editor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.current.Equal(e.baseline)
}

func (e *Editor) Errors() map[domain.Weekday]error {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[domain.Weekday]error, len(e.dayErrs))
	for d, err := range e.dayErrs {
		out[d] = err
	}
	return out
}

// SaveErr is the persistence failure of the last save attempt, if any.
func (e *Editor) SaveErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saveErr
}

// ToggleDay enables or disables a day. Disabling discards the day's shifts;
// enabling seeds one default shift.
func (e *Editor) ToggleDay(d domain.Weekday, enabled bool) error {
	return e.edit(d, func(day domain.DaySchedule) (domain.DaySchedule, error) {
		if day.Enabled == enabled {
			return day, nil
		}
		if !enabled {
			return domain.DaySchedule{Enabled: false, Shifts: []domain.Shift{}}, nil
		}
		return domain.DaySchedule{Enabled: true, Shifts: []domain.Shift{e.defaultShift}}, nil
	})
}

// AddShift appends a one-hour shift after the latest shift of the day, or the
// default shift when the day has none or no room is left before midnight.
func (e *Editor) AddShift(d domain.Weekday) error {
	return e.edit(d, func(day domain.DaySchedule) (domain.DaySchedule, error) {
		if !day.Enabled {
			return day, ErrDayDisabled
		}
		day.Shifts = append(day.Shifts, e.nextShift(day.Shifts))
		return day, nil
	})
}

func (e *Editor) RemoveShift(d domain.Weekday, index int) error {
	return e.edit(d, func(day domain.DaySchedule) (domain.DaySchedule, error) {
		if index < 0 || index >= len(day.Shifts) {
			return day, ErrNoSuchShift
		}
		day.Shifts = append(day.Shifts[:index], day.Shifts[index+1:]...)
		return day, nil
	})
}

func (e *Editor) SetShiftStart(d domain.Weekday, index int, t domain.TimeOfDay) error {
	return e.setShift(d, index, func(s *domain.Shift) { s.Start = t }, t)
}

func (e *Editor) SetShiftEnd(d domain.Weekday, index int, t domain.TimeOfDay) error {
	return e.setShift(d, index, func(s *domain.Shift) { s.End = t }, t)
}

func (e *Editor) setShift(d domain.Weekday, index int, set func(*domain.Shift), t domain.TimeOfDay) error {
	if !t.Valid() {
		return fmt.Errorf("time of day %s out of range", t)
	}
	return e.edit(d, func(day domain.DaySchedule) (domain.DaySchedule, error) {
		if index < 0 || index >= len(day.Shifts) {
			return day, ErrNoSuchShift
		}
		set(&day.Shifts[index])
		return day, nil
	})
}

// Discard reverts to the last loaded or saved schedule.
func (e *Editor) Discard() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy() {
		return ErrSaveInProgress
	}
	e.current = e.baseline
	e.dayErrs = make(map[domain.Weekday]error)
	e.saveErr = nil
	e.transition(StateViewing)
	return nil
}

// Save validates the whole week and, when every day passes, hands it to the
// store. A validation failure returns *ValidationError and nothing is sent. A
// store failure leaves the edits in place and is returned as is; there is no
// retry.
func (e *Editor) Save(ctx context.Context) error {
	e.mu.Lock()
	if e.busy() {
		e.mu.Unlock()
		return ErrSaveInProgress
	}
	if !e.loaded {
		e.mu.Unlock()
		return ErrNotLoaded
	}

	e.saveErr = nil
	e.transition(StateValidating)
	if errs := domain.ValidateWeek(e.current); len(errs) > 0 {
		e.dayErrs = errs
		e.transition(StateEditing)
		e.mu.Unlock()
		e.log.WarnContext(ctx, "schedule failed validation", slog.Any("days", failingDays(errs)))
		return &ValidationError{Days: errs}
	}
	e.dayErrs = make(map[domain.Weekday]error)
	e.transition(StateSaving)
	snapshot := e.current
	e.mu.Unlock()

	saved, err := e.store.SaveSchedule(ctx, e.staffID, snapshot)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.saveErr = err
		e.transition(StateError)
		e.transition(StateEditing)
		e.log.ErrorContext(ctx, "schedule save failed", slog.Any("err", err))
		return err
	}

	e.baseline = saved
	e.current = saved
	e.transition(StateSaved)
	e.transition(StateViewing)
	return nil
}

func (e *Editor) edit(d domain.Weekday, fn func(domain.DaySchedule) (domain.DaySchedule, error)) error {
	if !d.Valid() {
		return ErrInvalidDay
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy() {
		return ErrSaveInProgress
	}
	if !e.loaded {
		return ErrNotLoaded
	}

	before := e.current.Day(d)
	after, err := fn(e.current.Day(d))
	if err != nil {
		return err
	}
	if after.Equal(before) {
		return nil
	}

	e.current = e.current.WithDay(d, after)
	delete(e.dayErrs, d)
	e.transition(StateEditing)
	return nil
}

func (e *Editor) nextShift(shifts []domain.Shift) domain.Shift {
	if len(shifts) == 0 {
		return e.defaultShift
	}
	latest := shifts[0].End
	for _, s := range shifts[1:] {
		if s.End > latest {
			latest = s.End
		}
	}
	if latest >= domain.EndOfDay {
		return e.defaultShift
	}
	end := latest.Add(time.Hour)
	if end > domain.EndOfDay {
		end = domain.EndOfDay
	}
	return domain.Shift{Start: latest, End: end}
}

func (e *Editor) busy() bool {
	return e.state == StateValidating || e.state == StateSaving
}

func (e *Editor) transition(to State) {
	from := e.state
	if from == to {
		return
	}
	e.state = to
	if e.observer != nil {
		e.observer(from, to)
	}
}

func failingDays(errs map[domain.Weekday]error) []string {
	out := make([]string, 0, len(errs))
	for d := range errs {
		out = append(out, d.String())
	}
	sort.Strings(out)
	return out
}
