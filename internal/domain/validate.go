package domain

import "errors"

var (
	ErrShiftOrder   = errors.New("start must precede end")
	ErrShiftOverlap = errors.New("time slots cannot overlap")
)

// ValidateDay reports the first ordering or overlap problem on an enabled
// day. Shifts are checked in list order; a disabled day is always valid.
func ValidateDay(day DaySchedule) error {
	if !day.Enabled {
		return nil
	}

	for _, s := range day.Shifts {
		if s.Start >= s.End {
			return ErrShiftOrder
		}
	}

	for i := 0; i < len(day.Shifts); i++ {
		for j := i + 1; j < len(day.Shifts); j++ {
			if day.Shifts[i].Overlaps(day.Shifts[j]) {
				return ErrShiftOverlap
			}
		}
	}

	return nil
}

// ValidateWeek returns one error per failing day. An empty map means the
// whole week is valid.
func ValidateWeek(week WeeklySchedule) map[Weekday]error {
	out := make(map[Weekday]error)
	for _, d := range Weekdays {
		if err := ValidateDay(week.days[d.index()]); err != nil {
			out[d] = err
		}
	}
	return out
}
