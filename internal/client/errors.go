package client

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
)

var (
	// ErrNetwork is returned when the request did not complete: transport
	// failures, timeouts and 5xx answers.
	ErrNetwork = errors.New("salonbook client: network error")

	ErrInvalidResponse = errors.New("salonbook client: invalid response")

	ErrRateLimited = errors.New("salonbook client: rate limited")
)

// ValidationError is a rejected request. Days is set when a schedule failed
// per-day validation.
type ValidationError struct {
	Message string
	Days    map[domain.Weekday]error
}

func (e *ValidationError) Error() string {
	if len(e.Days) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Days))
	for _, d := range domain.Weekdays {
		if err, ok := e.Days[d]; ok {
			parts = append(parts, fmt.Sprintf("%s: %v", d, err))
		}
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

// ConflictError means the requested start was taken. Slots is the server's
// fresh availability for that date.
type ConflictError struct {
	Message string
	Slots   []time.Time
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) Unwrap() error {
	return store.ErrConflict
}

var knownDayErrors = []error{domain.ErrShiftOrder, domain.ErrShiftOverlap}

func dayErrors(days map[string]string) map[domain.Weekday]error {
	out := make(map[domain.Weekday]error, len(days))
	for name, msg := range days {
		d, err := domain.ParseWeekday(name)
		if err != nil {
			continue
		}
		out[d] = dayError(msg)
	}
	return out
}

func dayError(msg string) error {
	for _, known := range knownDayErrors {
		if known.Error() == msg {
			return known
		}
	}
	return errors.New(msg)
}
