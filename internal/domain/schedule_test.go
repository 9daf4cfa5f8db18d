package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestWeeklySchedule_JSONRoundTrip(t *testing.T) {
	week := NewWeeklySchedule().
		WithDay(Monday, DaySchedule{Enabled: true, Shifts: []Shift{
			{Start: At(9, 0), End: At(12, 0)},
			{Start: At(13, 0), End: EndOfDay},
		}})

	b, err := json.Marshal(week)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if !strings.Contains(string(b), `"monday":{"enabled":true,"shifts":[{"start":"09:00","end":"12:00"},{"start":"13:00","end":"24:00"}]}`) {
		t.Fatalf("unexpected document: %s", b)
	}
	if !strings.Contains(string(b), `"sunday":{"enabled":false,"shifts":[]}`) {
		t.Fatalf("closed days must carry an empty shift list: %s", b)
	}

	var got WeeklySchedule
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if !got.Equal(week) {
		t.Fatalf("round trip mismatch: %s", b)
	}
}

func TestWeeklySchedule_ValueIsJSONText(t *testing.T) {
	week := NewWeeklySchedule().
		WithDay(Tuesday, DaySchedule{Enabled: true, Shifts: []Shift{{Start: At(10, 0), End: At(18, 0)}}})

	v, err := week.Value()
	if err != nil {
		t.Fatalf("Value error: %v", err)
	}
	text, ok := v.(string)
	if !ok {
		t.Fatalf("Value type = %T, want string", v)
	}
	if !json.Valid([]byte(text)) {
		t.Fatalf("Value is not JSON: %q", text)
	}

	var got WeeklySchedule
	if err := got.Scan(text); err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if !got.Equal(week) {
		t.Fatalf("Scan(Value()) mismatch: %s", text)
	}
}

func TestWeeklySchedule_UnmarshalRejectsIncompleteDocuments(t *testing.T) {
	full := map[string]any{}
	for _, d := range Weekdays {
		full[d.String()] = map[string]any{"enabled": false, "shifts": []any{}}
	}

	tests := []struct {
		name    string
		mutate  func(map[string]any)
		wantErr string
	}{
		{
			name:    "missing day",
			mutate:  func(m map[string]any) { delete(m, "thursday") },
			wantErr: "schedule is missing thursday",
		},
		{
			name:    "unknown day",
			mutate:  func(m map[string]any) { m["caturday"] = map[string]any{"enabled": false} },
			wantErr: `invalid weekday "caturday"`,
		},
		{
			name: "bad clock",
			mutate: func(m map[string]any) {
				m["monday"] = map[string]any{"enabled": true, "shifts": []any{map[string]any{"start": "9am", "end": "17:00"}}}
			},
			wantErr: "want HH:MM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := make(map[string]any, len(full))
			for k, v := range full {
				doc[k] = v
			}
			tt.mutate(doc)
			b, err := json.Marshal(doc)
			if err != nil {
				t.Fatalf("Marshal error: %v", err)
			}

			var w WeeklySchedule
			err = json.Unmarshal(b, &w)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestWeeklySchedule_WithDayDoesNotAlias(t *testing.T) {
	shifts := []Shift{{Start: At(9, 0), End: At(17, 0)}}
	week := NewWeeklySchedule().WithDay(Monday, DaySchedule{Enabled: true, Shifts: shifts})

	shifts[0].End = At(10, 0)
	if got := week.Day(Monday).Shifts[0].End; got != At(17, 0) {
		t.Fatalf("end = %s, want 17:00", got)
	}

	day := week.Day(Monday)
	day.Shifts[0].Start = At(8, 0)
	if got := week.Day(Monday).Shifts[0].Start; got != At(9, 0) {
		t.Fatalf("start = %s, want 09:00", got)
	}
}

func TestWeeklySchedule_NormalizeClearsDisabledDays(t *testing.T) {
	week := NewWeeklySchedule().
		WithDay(Saturday, DaySchedule{Enabled: false, Shifts: []Shift{{Start: At(9, 0), End: At(12, 0)}}})

	got := week.Normalize().Day(Saturday)
	if got.Enabled || len(got.Shifts) != 0 {
		t.Fatalf("Normalize day = %+v, want disabled with no shifts", got)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "00:00", want: Midnight},
		{in: "09:30", want: At(9, 30)},
		{in: "24:00", want: EndOfDay},
		{in: "24:01", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "9:30", wantErr: true},
		{in: "ab:cd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeOfDay error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseTimeOfDay = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestWeekdayOf(t *testing.T) {
	start := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	for i, want := range Weekdays {
		if got := WeekdayOf(start.AddDate(0, 0, i)); got != want {
			t.Fatalf("WeekdayOf(+%d) = %s, want %s", i, got, want)
		}
	}
	if Sunday.Next() != Monday {
		t.Fatalf("Sunday.Next() = %s, want monday", Sunday.Next())
	}
}
