package domain

import (
	"fmt"
	"strings"
	"time"
)

// Weekday uses ISO numbering: Monday is 1, Sunday is 7.
type Weekday int16

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{
	Monday:    "monday",
	Tuesday:   "tuesday",
	Wednesday: "wednesday",
	Thursday:  "thursday",
	Friday:    "friday",
	Saturday:  "saturday",
	Sunday:    "sunday",
}

// Weekdays lists every day in schedule order.
var Weekdays = [7]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

func WeekdayOf(t time.Time) Weekday {
	wd := t.Weekday()
	if wd == time.Sunday {
		return Sunday
	}
	return Weekday(wd)
}

func ParseWeekday(s string) (Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, d := range Weekdays {
		if weekdayNames[d] == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

// Next returns the following day, wrapping Sunday to Monday.
func (d Weekday) Next() Weekday {
	if d == Sunday {
		return Monday
	}
	return d + 1
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("weekday(%d)", int16(d))
	}
	return weekdayNames[d]
}

func (d Weekday) index() int {
	return int(d) - 1
}

func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid weekday %d", int16(d))
	}
	return []byte(weekdayNames[d]), nil
}

func (d *Weekday) UnmarshalText(b []byte) error {
	wd, err := ParseWeekday(string(b))
	if err != nil {
		return err
	}
	*d = wd
	return nil
}
