package calendar

import (
	"strings"
	"time"

	"circlecal/internal/moment"
	"circlecal/internal/span"
	"circlecal/internal/unit"
)

// Day is one row of a per-day table.
type Day struct {
	Date        moment.Moment `json:"date"`
	Ordinal     int           `json:"ordinal"` // days since the first row
	Year        int           `json:"year"`
	Month       int           `json:"month"`
	MonthName   string        `json:"month_name"`
	Day         int           `json:"day"`
	Weekday     int           `json:"weekday"` // Monday is 0
	WeekdayName string        `json:"weekday_name"`
}

// Days lists every calendar day s touches, in order. A span that starts or
// stops partway through a day still includes that day.
func Days(s span.Span) []Day {
	var out []Day
	d := s.Start().WithPrecision(unit.Day)
	for i := 0; d.Before(s.Stop()); i++ {
		t, _ := d.ToTime(true)
		out = append(out, Day{
			Date:        d,
			Ordinal:     i,
			Year:        t.Year(),
			Month:       int(t.Month()),
			MonthName:   t.Month().String(),
			Day:         t.Day(),
			Weekday:     mondayFirst(t.Weekday()),
			WeekdayName: t.Weekday().String(),
		})
		if err := d.Increment(); err != nil {
			break
		}
	}
	return out
}

// Weeks splits Days(s) into rows that begin on first. The first and last
// rows may be short.
func Weeks(s span.Span, first time.Weekday) [][]Day {
	var weeks [][]Day
	var row []Day
	for _, d := range Days(s) {
		if len(row) > 0 && d.Weekday == mondayFirst(first) {
			weeks = append(weeks, row)
			row = nil
		}
		row = append(row, d)
	}
	if len(row) > 0 {
		weeks = append(weeks, row)
	}
	return weeks
}

// ParseWeekday maps "monday" or "sunday" style names to a time.Weekday.
// Unknown names give Monday.
func ParseWeekday(name string) time.Weekday {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.EqualFold(wd.String(), strings.TrimSpace(name)) {
			return wd
		}
	}
	return time.Monday
}

func mondayFirst(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
