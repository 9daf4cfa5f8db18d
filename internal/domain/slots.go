package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

const DefaultSlotGranularity = 15 * time.Minute

type SlotRequest struct {
	StaffID         uuid.UUID
	Date            time.Time
	DurationMinutes int
}

func (r SlotRequest) Duration() time.Duration {
	return time.Duration(r.DurationMinutes) * time.Minute
}

// GenerateSlots returns the ascending, de-duplicated start instants on
// req.Date at which an appointment of req.DurationMinutes fits inside a shift
// without touching the window of any booked or completed appointment for
// req.StaffID. Candidates step by granularity from each shift start.
//
// Shift consistency is not re-validated here; overlapping shifts simply
// produce duplicate candidates, which are collapsed.
func GenerateSlots(week WeeklySchedule, appointments []Appointment, req SlotRequest, granularity time.Duration) []time.Time {
	out := []time.Time{}

	duration := req.Duration()
	if duration <= 0 {
		return out
	}
	if granularity <= 0 {
		granularity = DefaultSlotGranularity
	}

	date := DateOf(req.Date)
	windows := ExpandShifts(week, date, date.AddDate(0, 0, 1))
	if len(windows) == 0 {
		return out
	}

	busy := make([]Appointment, 0, len(appointments))
	for _, a := range appointments {
		if a.StaffID == req.StaffID && a.Status.OccupiesCalendar() {
			busy = append(busy, a)
		}
	}

	seen := make(map[int64]struct{})
	for _, w := range windows {
		for start := w.Start; !start.Add(duration).After(w.End); start = start.Add(granularity) {
			end := start.Add(duration)
			if blocked(busy, start, end) {
				continue
			}
			key := start.UnixNano()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, start)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Before(out[j])
	})
	return out
}

func blocked(busy []Appointment, start, end time.Time) bool {
	for _, a := range busy {
		if a.Overlaps(start, end) {
			return true
		}
	}
	return false
}
