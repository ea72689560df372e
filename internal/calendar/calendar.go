// Package calendar converts between spans and the plain occurrence records
// produced by feed expansion.
package calendar

import (
	"slices"
	"time"

	"github.com/cockroachdb/errors"

	"circlecal/internal/model"
	"circlecal/internal/moment"
	"circlecal/internal/span"
	"circlecal/internal/unit"
)

// OccurrenceSpan returns the span an occurrence covers. All-day
// occurrences become day-precision spans. Timed ones keep their wall clock
// with trailing zero units trimmed, so 10:00 to 11:30 is [T10, T11:30).
// An occurrence without a positive duration covers one step of its own
// precision.
func OccurrenceSpan(o model.Occurrence) (span.Span, error) {
	if o.Start.IsZero() {
		return span.Span{}, errors.Wrapf(moment.ErrMissingField, "occurrence %q has no start", o.UID)
	}

	start, err := moment.FromTime(o.Start, moment.TrimZeros)
	if err != nil {
		return span.Span{}, errors.Wrapf(err, "occurrence %q start", o.UID)
	}
	if o.AllDay {
		start = start.WithPrecision(unit.Day)
	}
	if !o.End.After(o.Start) {
		return span.New(start)
	}

	stop, err := moment.FromTime(o.End, moment.TrimZeros)
	if err != nil {
		return span.Span{}, errors.Wrapf(err, "occurrence %q end", o.UID)
	}
	if o.AllDay && stop.Precision().IsFinerThan(unit.Day) {
		// A day that is partly covered counts as a whole day.
		stop = stop.WithPrecision(unit.Day)
		if err := stop.Increment(); err != nil {
			return span.Span{}, err
		}
	}
	return span.New(start, span.WithStop(stop))
}

// Window resolves s into the concrete [from, to) range collaborators query
// with, reading the span's wall clock in loc.
func Window(s span.Span, loc *time.Location) (from, to time.Time) {
	from, _ = s.Start().ToTimeIn(loc, true)
	to, _ = s.Stop().ToTimeIn(loc, true)
	return from, to
}

// Bucket holds the occurrences overlapping one sub-span of a window.
type Bucket struct {
	Span        span.Span
	Occurrences []model.Occurrence
}

// Agenda groups occs into the sub-spans of window: a month window yields one
// bucket per day, a day window one per hour. Occurrences spanning several
// sub-spans appear in each of them. A window with no sub-spans yields a
// single bucket for itself.
func Agenda(window span.Span, occs []model.Occurrence) ([]Bucket, error) {
	spans := make([]span.Span, 0, len(occs))
	for _, o := range occs {
		s, err := OccurrenceSpan(o)
		if err != nil {
			return nil, err
		}
		spans = append(spans, s)
	}

	subs := window.Spans()
	if len(subs) == 0 {
		subs = []span.Span{window}
	}

	buckets := make([]Bucket, len(subs))
	for i, sub := range subs {
		buckets[i].Span = sub
		for j, s := range spans {
			if s.Overlaps(sub) {
				buckets[i].Occurrences = append(buckets[i].Occurrences, occs[j])
			}
		}
		slices.SortStableFunc(buckets[i].Occurrences, func(a, b model.Occurrence) int {
			return a.Start.Compare(b.Start)
		})
	}
	return buckets, nil
}
