package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Date returns midnight UTC of the given calendar day
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// NormalizeDate drops the time of day, keeping the wall-clock calendar day
func NormalizeDate(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// SameDay reports whether a and b fall on the same calendar day
func SameDay(a, b time.Time) bool {
	return NormalizeDate(a).Equal(NormalizeDate(b))
}

// DaysApart returns the absolute number of calendar days between a and b
func DaysApart(a, b time.Time) int {
	d := NormalizeDate(a).Sub(NormalizeDate(b)).Hours() / 24
	if d < 0 {
		d = -d
	}
	return int(d + 0.5)
}

// ParseDate accepts the calendar-date layouts used across imports and the API
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	layouts := []string{
		DateLayout,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006/01/02",
		"01/02/2006",
		"1/2/2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return NormalizeDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date format: %q", raw)
}

// ValuesEqual reports whether two amounts differ by less than epsilon
func ValuesEqual(a, b, epsilon decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(epsilon)
}
