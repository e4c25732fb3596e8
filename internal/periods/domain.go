// Package periods tracks closed accounting months and guards every
// financial mutation against them.
package periods

import (
	"errors"
	"fmt"
	"time"
)

// Lock marks a calendar month as closed to financial mutation.
type Lock struct {
	Year     int        `json:"year"`
	Month    int        `json:"month"`
	ClosedAt time.Time  `json:"closedAt"`
	Note     string     `json:"note,omitempty"`
}

// ErrAlreadyLocked indicates the period is already closed.
var ErrAlreadyLocked = errors.New("periods: period already locked")

// ErrNotLocked indicates the period has no lock to remove.
var ErrNotLocked = errors.New("periods: period not locked")

// ErrInvalidPeriod indicates a year/month outside the accepted range.
var ErrInvalidPeriod = errors.New("periods: invalid period")

// ClosedError reports a mutation that targets a locked period. It always
// carries the offending month so the caller can surface it.
type ClosedError struct {
	Year  int
	Month int
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("periods: period %d/%d is closed", e.Month, e.Year)
}

// PeriodOf derives the (year, month) bucket a date falls into.
func PeriodOf(date time.Time) (int, int) {
	return date.Year(), int(date.Month())
}

// ValidatePeriod rejects months outside 1..12 and implausible years.
func ValidatePeriod(year, month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidPeriod, month)
	}
	if year < 2000 || year > 2100 {
		return fmt.Errorf("%w: year %d", ErrInvalidPeriod, year)
	}
	return nil
}
