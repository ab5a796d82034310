package parsers

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"reconciliation-dashboard/internal/models"
)

// leadingNumber matches the numeric prefix of a cell, so "45.00 USD" reads as 45.00
var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseAmount reads the numeric prefix of raw after removing strip
// characters, returning its absolute value rounded to cents.
func ParseAmount(raw, strip string) (decimal.Decimal, bool) {
	cleaned := strings.TrimSpace(strings.Map(func(r rune) rune {
		if strings.ContainsRune(strip, r) {
			return -1
		}
		return r
	}, raw))

	num := leadingNumber.FindString(cleaned)
	if num == "" {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, false
	}
	return v.Abs().Round(2), true
}

func calendarDate(year, month, day int) (time.Time, bool) {
	if year <= 0 || month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := models.Date(year, time.Month(month), day)
	if t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// leadingInt reads the leading digits of raw, ignoring anything after them
func leadingInt(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	end := 0
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(raw[:end])
	return n, err == nil
}

func atoi3(parts []string) (a, b, c int, ok bool) {
	if len(parts) < 3 {
		return 0, 0, 0, false
	}
	var okA, okB, okC bool
	a, okA = leadingInt(parts[0])
	b, okB = leadingInt(parts[1])
	c, okC = leadingInt(parts[2])
	return a, b, c, okA && okB && okC
}

// parseMonthFirst reads MM/DD/YY or MM/DD/YYYY. Two digit years are 20YY.
func parseMonthFirst(parts []string) (time.Time, bool) {
	month, day, year, ok := atoi3(parts)
	if !ok {
		return time.Time{}, false
	}
	if year < 100 {
		year += 2000
	}
	return calendarDate(year, month, day)
}

// parseBankDate reads the bank export's MM/DD/YY date column
func parseBankDate(raw string) (time.Time, bool) {
	return parseMonthFirst(strings.Split(strings.TrimSpace(raw), "/"))
}

// ParseSlashDate reads YYYY/MM/DD when the first part has four digits and
// MM/DD/YY(YY) otherwise
func ParseSlashDate(raw string) (time.Time, bool) {
	parts := strings.Split(strings.TrimSpace(raw), "/")
	if len(strings.TrimSpace(parts[0])) == 4 {
		year, month, day, ok := atoi3(parts)
		if !ok {
			return time.Time{}, false
		}
		return calendarDate(year, month, day)
	}
	return parseMonthFirst(parts)
}

// parseProcessorDate accepts YYYY/MM/DD, MM/DD/YY(YY), YYYY-MM-DD[ HH:MM[:SS]]
// and YYYYMMDD. Card timestamps are UTC and are shifted back by offset
// before the day is taken; every other form is a literal calendar date.
func parseProcessorDate(raw string, creditCard bool, offset time.Duration) (time.Time, bool) {
	raw = strings.TrimSpace(raw)

	switch {
	case strings.Contains(raw, "/"):
		return ParseSlashDate(raw)

	case strings.Contains(raw, "-"):
		datePart, timePart, _ := strings.Cut(raw, " ")
		year, month, day, ok := atoi3(strings.Split(datePart, "-"))
		if !ok {
			return time.Time{}, false
		}
		date, ok := calendarDate(year, month, day)
		if !ok || !creditCard {
			return date, ok
		}
		clock, ok := parseClock(strings.TrimSpace(timePart))
		if !ok {
			return time.Time{}, false
		}
		return models.NormalizeDate(date.Add(clock).Add(-offset)), true

	default:
		if len(raw) < 8 {
			return time.Time{}, false
		}
		year, err1 := strconv.Atoi(raw[0:4])
		month, err2 := strconv.Atoi(raw[4:6])
		day, err3 := strconv.Atoi(raw[6:8])
		if err1 != nil || err2 != nil || err3 != nil {
			return time.Time{}, false
		}
		return calendarDate(year, month, day)
	}
}

// parseClock reads HH:MM[:SS] as an offset from midnight; empty is midnight
func parseClock(raw string) (time.Duration, bool) {
	if raw == "" {
		return 0, true
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, true
		}
	}
	return 0, false
}
