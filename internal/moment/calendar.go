package moment

import (
	"time"

	"circlecal/internal/unit"
)

// Year bounds, matching the proleptic Gregorian years time.Time formats
// with four digits.
const (
	MinYear = 1
	MaxYear = 9999
)

// IsLeap reports whether year is a Gregorian leap year.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysIn returns the number of days in month of year.
func DaysIn(year, month int) int {
	// Day 0 of the following month normalises to the last day of month.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// rangeStart is the first legal value of u, which never depends on other units.
func rangeStart(u unit.Unit) int {
	switch u {
	case unit.Year:
		return MinYear
	case unit.Month, unit.Day:
		return 1
	default:
		return 0
	}
}
