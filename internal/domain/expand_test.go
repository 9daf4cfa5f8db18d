package domain

import (
	"testing"
	"time"
)

func weekWith(d Weekday, shifts ...Shift) WeeklySchedule {
	return NewWeeklySchedule().WithDay(d, DaySchedule{Enabled: true, Shifts: shifts})
}

func TestExpandShifts_EmptyWindow(t *testing.T) {
	week := weekWith(Monday, Shift{Start: At(9, 0), End: At(17, 0)})
	at := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	if got := ExpandShifts(week, at, at); got != nil {
		t.Fatalf("ExpandShifts = %v, want nil", got)
	}
	if got := ExpandShifts(week, at, at.Add(-time.Hour)); got != nil {
		t.Fatalf("ExpandShifts = %v, want nil", got)
	}
}

func TestExpandShifts_SkipsDisabledDays(t *testing.T) {
	week := weekWith(Monday, Shift{Start: At(9, 0), End: At(17, 0)})
	week = week.WithDay(Tuesday, DaySchedule{Enabled: false, Shifts: []Shift{{Start: At(9, 0), End: At(17, 0)}}})

	windowStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC)

	wins := ExpandShifts(week, windowStart, windowEnd)
	if len(wins) != 2 {
		t.Fatalf("len(wins) = %d, want 2", len(wins))
	}
	for _, w := range wins {
		if w.Weekday != Monday {
			t.Fatalf("weekday = %s, want monday", w.Weekday)
		}
	}
}

func TestExpandShifts_SortedAcrossDays(t *testing.T) {
	week := NewWeeklySchedule().
		WithDay(Monday, DaySchedule{Enabled: true, Shifts: []Shift{
			{Start: At(13, 0), End: At(17, 0)},
			{Start: At(9, 0), End: At(12, 0)},
		}}).
		WithDay(Wednesday, DaySchedule{Enabled: true, Shifts: []Shift{{Start: At(10, 0), End: At(14, 0)}}})

	windowStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	windowEnd := windowStart.AddDate(0, 0, 7)

	wins := ExpandShifts(week, windowStart, windowEnd)
	if len(wins) != 3 {
		t.Fatalf("len(wins) = %d, want 3", len(wins))
	}
	for i := 1; i < len(wins); i++ {
		if !wins[i-1].Start.Before(wins[i].Start) {
			t.Fatalf("windows not sorted by start: %v then %v", wins[i-1].Start, wins[i].Start)
		}
	}
	if wins[2].Weekday != Wednesday {
		t.Fatalf("last weekday = %s, want wednesday", wins[2].Weekday)
	}
}

func TestExpandShifts_IncludesWindowOverlap(t *testing.T) {
	week := weekWith(Monday, Shift{Start: At(9, 0), End: At(11, 0)})

	windowStart := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2026, 1, 5, 10, 30, 0, 0, time.UTC)

	wins := ExpandShifts(week, windowStart, windowEnd)
	if len(wins) != 1 {
		t.Fatalf("len(wins) = %d, want 1", len(wins))
	}
	if !wins[0].Start.Before(windowEnd) || !wins[0].End.After(windowStart) {
		t.Fatalf("window does not overlap: start=%v end=%v", wins[0].Start, wins[0].End)
	}
}

func TestExpandShifts_EndOfDay(t *testing.T) {
	week := weekWith(Monday, Shift{Start: At(22, 0), End: EndOfDay})
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	wins := ExpandShifts(week, day, day.AddDate(0, 0, 1))
	if len(wins) != 1 {
		t.Fatalf("len(wins) = %d, want 1", len(wins))
	}
	if want := day.AddDate(0, 0, 1); !wins[0].End.Equal(want) {
		t.Fatalf("end = %v, want %v", wins[0].End, want)
	}
}

func TestExpandShifts_DSTMaintainsLocalHour(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}

	week := weekWith(Sunday, Shift{Start: At(9, 0), End: At(10, 0)})

	windowStart := time.Date(2026, 3, 1, 0, 0, 0, 0, loc)
	windowEnd := time.Date(2026, 3, 22, 0, 0, 0, 0, loc)

	wins := ExpandShifts(week, windowStart, windowEnd)
	if len(wins) != 3 {
		t.Fatalf("len(wins) = %d, want 3", len(wins))
	}
	for _, w := range wins {
		if w.Start.In(loc).Hour() != 9 {
			t.Fatalf("local hour = %d, want 9 (start=%v)", w.Start.In(loc).Hour(), w.Start)
		}
		if w.End.Sub(w.Start) != time.Hour {
			t.Fatalf("window length = %v, want 1h", w.End.Sub(w.Start))
		}
	}
}

func TestWeeklySchedule_Covers(t *testing.T) {
	week := weekWith(Monday,
		Shift{Start: At(9, 0), End: At(12, 0)},
		Shift{Start: At(13, 0), End: At(17, 0)},
	)
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return At(h, m).On(day) }

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{name: "inside morning", start: at(9, 0), end: at(9, 30), want: true},
		{name: "ends at shift end", start: at(11, 30), end: at(12, 0), want: true},
		{name: "spans the break", start: at(11, 30), end: at(13, 30), want: false},
		{name: "before opening", start: at(8, 30), end: at(9, 30), want: false},
		{name: "closed day", start: at(9, 0).AddDate(0, 0, 1), end: at(10, 0).AddDate(0, 0, 1), want: false},
		{name: "empty interval", start: at(10, 0), end: at(10, 0), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := week.Covers(tt.start, tt.end); got != tt.want {
				t.Fatalf("Covers = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeeklySchedule_OnGrid(t *testing.T) {
	week := weekWith(Monday,
		Shift{Start: At(9, 0), End: At(12, 0)},
		Shift{Start: At(13, 10), End: At(17, 0)},
	)
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return At(h, m).On(day) }

	tests := []struct {
		name        string
		start       time.Time
		granularity time.Duration
		want        bool
	}{
		{name: "shift start", start: at(9, 0), granularity: 15 * time.Minute, want: true},
		{name: "on step", start: at(10, 45), granularity: 15 * time.Minute, want: true},
		{name: "off step", start: at(9, 7), granularity: 15 * time.Minute, want: false},
		{name: "step from a shift that starts off the hour", start: at(13, 25), granularity: 15 * time.Minute, want: true},
		{name: "quarter hour is off that shift's grid", start: at(13, 30), granularity: 15 * time.Minute, want: false},
		{name: "coarser grid", start: at(9, 30), granularity: time.Hour, want: false},
		{name: "default granularity", start: at(9, 15), granularity: 0, want: true},
		{name: "outside hours", start: at(12, 15), granularity: 15 * time.Minute, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := week.OnGrid(tt.start, tt.start.Add(30*time.Minute), tt.granularity); got != tt.want {
				t.Fatalf("OnGrid = %v, want %v", got, tt.want)
			}
		})
	}

	// Every generated slot is on the grid.
	for _, slot := range GenerateSlots(week, nil, SlotRequest{Date: day, DurationMinutes: 30}, 15*time.Minute) {
		if !week.OnGrid(slot, slot.Add(30*time.Minute), 15*time.Minute) {
			t.Fatalf("generated slot %s is off the grid", slot.Format("15:04"))
		}
	}
}
