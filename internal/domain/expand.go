package domain

import (
	"sort"
	"time"
)

// ShiftWindow is a shift anchored onto a concrete calendar date.
type ShiftWindow struct {
	Date    time.Time
	Weekday Weekday
	Start   time.Time
	End     time.Time
}

func (w ShiftWindow) Contains(start, end time.Time) bool {
	return !start.Before(w.Start) && !end.After(w.End)
}

// ExpandShifts anchors the weekly schedule onto every calendar date from the
// date of windowStart up to windowEnd and returns the windows that intersect
// [windowStart, windowEnd), ordered by start. Dates are computed in
// windowStart's location so local shift times survive DST changes.
func ExpandShifts(week WeeklySchedule, windowStart, windowEnd time.Time) []ShiftWindow {
	if !windowStart.Before(windowEnd) {
		return nil
	}

	out := make([]ShiftWindow, 0, 16)
	for date := DateOf(windowStart); date.Before(windowEnd); date = date.AddDate(0, 0, 1) {
		for _, s := range week.shiftsOn(date) {
			start := s.Start.On(date)
			end := s.End.On(date)
			if !start.Before(end) {
				continue
			}
			if start.Before(windowEnd) && end.After(windowStart) {
				out = append(out, ShiftWindow{
					Date:    date,
					Weekday: WeekdayOf(date),
					Start:   start,
					End:     end,
				})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// Covers reports whether [start, end) lies entirely inside a single shift.
func (w WeeklySchedule) Covers(start, end time.Time) bool {
	if !start.Before(end) {
		return false
	}
	day := DateOf(start)
	for _, win := range ExpandShifts(w, day, day.AddDate(0, 0, 1)) {
		if win.Contains(start, end) {
			return true
		}
	}
	return false
}

// OnGrid reports whether [start, end) lies inside a single shift and start
// falls on a candidate offered by GenerateSlots for that shift.
func (w WeeklySchedule) OnGrid(start, end time.Time, granularity time.Duration) bool {
	if granularity <= 0 {
		granularity = DefaultSlotGranularity
	}
	if !start.Before(end) {
		return false
	}
	day := DateOf(start)
	for _, win := range ExpandShifts(w, day, day.AddDate(0, 0, 1)) {
		if win.Contains(start, end) && start.Sub(win.Start)%granularity == 0 {
			return true
		}
	}
	return false
}
