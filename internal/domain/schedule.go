package domain

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Shift struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// Overlaps uses half-open intervals: shifts that only touch do not overlap.
func (s Shift) Overlaps(o Shift) bool {
	return s.Start < o.End && o.Start < s.End
}

func (s Shift) Duration() time.Duration {
	return time.Duration(s.End-s.Start) * time.Minute
}

type DaySchedule struct {
	Enabled bool    `json:"enabled"`
	Shifts  []Shift `json:"shifts"`
}

func (d DaySchedule) clone() DaySchedule {
	shifts := make([]Shift, len(d.Shifts))
	copy(shifts, d.Shifts)
	return DaySchedule{Enabled: d.Enabled, Shifts: shifts}
}

// Normalize drops shifts stored on a disabled day.
func (d DaySchedule) Normalize() DaySchedule {
	if !d.Enabled {
		return DaySchedule{Shifts: []Shift{}}
	}
	return d.clone()
}

func (d DaySchedule) Equal(o DaySchedule) bool {
	if d.Enabled != o.Enabled || len(d.Shifts) != len(o.Shifts) {
		return false
	}
	for i := range d.Shifts {
		if d.Shifts[i] != o.Shifts[i] {
			return false
		}
	}
	return true
}

// WeeklySchedule is an immutable value holding exactly one DaySchedule per
// weekday. Updates go through WithDay, which returns a new value; untouched
// days share their backing arrays with the original.
type WeeklySchedule struct {
	days [7]DaySchedule
}

func NewWeeklySchedule() WeeklySchedule {
	var w WeeklySchedule
	for i := range w.days {
		w.days[i] = DaySchedule{Shifts: []Shift{}}
	}
	return w
}

func (w WeeklySchedule) Day(d Weekday) DaySchedule {
	if !d.Valid() {
		return DaySchedule{Shifts: []Shift{}}
	}
	return w.days[d.index()].clone()
}

func (w WeeklySchedule) WithDay(d Weekday, day DaySchedule) WeeklySchedule {
	if !d.Valid() {
		return w
	}
	w.days[d.index()] = day.clone()
	return w
}

func (w WeeklySchedule) Normalize() WeeklySchedule {
	for i := range w.days {
		w.days[i] = w.days[i].Normalize()
	}
	return w
}

func (w WeeklySchedule) Equal(o WeeklySchedule) bool {
	for i := range w.days {
		if !w.days[i].Equal(o.days[i]) {
			return false
		}
	}
	return true
}

// shiftsOn returns the enabled shifts for the weekday of date; nil when the
// day is closed.
func (w WeeklySchedule) shiftsOn(date time.Time) []Shift {
	day := w.days[WeekdayOf(date).index()]
	if !day.Enabled || len(day.Shifts) == 0 {
		return nil
	}
	return day.Shifts
}

func (w WeeklySchedule) MarshalJSON() ([]byte, error) {
	doc := make(map[Weekday]DaySchedule, len(Weekdays))
	for _, d := range Weekdays {
		day := w.days[d.index()]
		if day.Shifts == nil {
			day.Shifts = []Shift{}
		}
		doc[d] = day
	}
	return json.Marshal(doc)
}

func (w *WeeklySchedule) UnmarshalJSON(b []byte) error {
	var doc map[Weekday]DaySchedule
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	out := NewWeeklySchedule()
	for _, d := range Weekdays {
		day, ok := doc[d]
		if !ok {
			return fmt.Errorf("schedule is missing %s", d)
		}
		if day.Shifts == nil {
			day.Shifts = []Shift{}
		}
		out.days[d.index()] = day
	}
	*w = out
	return nil
}

// Value renders the document as JSON text. A []byte value would be bound as
// bytea, which a jsonb column rejects.
func (w WeeklySchedule) Value() (driver.Value, error) {
	b, err := w.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (w *WeeklySchedule) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return w.UnmarshalJSON(v)
	case string:
		return w.UnmarshalJSON([]byte(v))
	case nil:
		*w = NewWeeklySchedule()
		return nil
	default:
		return errors.New("unsupported schedule document type")
	}
}

type StaffMember struct {
	bun.BaseModel `bun:"table:staff_members"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	Title     string    `bun:"title,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (s *StaffMember) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if s.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			s.ID = id
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		s.UpdatedAt = now
	}
	return nil
}

// StaffSchedule is the persisted whole-document form of a staff member's week.
type StaffSchedule struct {
	bun.BaseModel `bun:"table:staff_schedules"`

	StaffID   uuid.UUID      `bun:"staff_id,pk,type:uuid"`
	Document  WeeklySchedule `bun:"document,type:jsonb,notnull"`
	UpdatedAt time.Time      `bun:"updated_at,notnull"`
}

func (s *StaffSchedule) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery, *bun.UpdateQuery:
		s.UpdatedAt = time.Now().UTC()
	}
	return nil
}
