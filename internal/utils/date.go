// Package utils holds small helpers shared across handlers and
// repositories.  Booking dates are plain YYYY-MM-DD strings: the
// ledger treats them as opaque ordered keys, and for ISO dates
// lexicographic order equals calendar order.
package utils

import (
    "fmt"
    "time"
)

// DateLayout is the calendar-day format used throughout the API and
// the database. It matches time.DateOnly.
const DateLayout = "2006-01-02"

// ValidateDate checks that s is a well-formed YYYY-MM-DD day.  The
// round-trip comparison rejects values the parser would otherwise
// normalize, such as "2024-7-1" or "2024-02-30".
func ValidateDate(s string) error {
    t, err := time.Parse(DateLayout, s)
    if err != nil {
        return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
    }
    if t.Format(DateLayout) != s {
        return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
    }
    return nil
}

// DaysBetween returns the number of whole days from startDate to
// endDate.  Both bounds must be valid days and start must not be
// after end; a single-day range yields 0.  Range caps compare this
// difference, so a cap of 365 admits a full leap year.
func DaysBetween(startDate, endDate string) (int, error) {
    start, err := time.Parse(DateLayout, startDate)
    if err != nil {
        return 0, fmt.Errorf("invalid start date %q", startDate)
    }
    end, err := time.Parse(DateLayout, endDate)
    if err != nil {
        return 0, fmt.Errorf("invalid end date %q", endDate)
    }
    if start.After(end) {
        return 0, fmt.Errorf("start date %s is after end date %s", startDate, endDate)
    }
    return int(end.Sub(start).Hours() / 24), nil
}
