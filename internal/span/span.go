// Package span models half-open calendar intervals between two partial
// moments. A span is "whole" at the coarser precision of its two ends and
// divides into sub-spans one unit finer: a year into months, a month into its
// 28 to 31 days, a day into hours.
package span

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rickb777/period"

	"circlecal/internal/moment"
	"circlecal/internal/unit"
)

var (
	// ErrSpanOrder reports a stop that does not strictly follow the start.
	ErrSpanOrder = errors.New("stop does not follow start")

	// ErrIndex reports a sub-span index outside [0, Len()).
	ErrIndex = errors.New("sub-span index out of range")

	// ErrConflictingStop reports more than one of WithStop, WithDuration and
	// WithPeriod passed to New.
	ErrConflictingStop = errors.New("conflicting stop options")

	// ErrImprecisePeriod reports a period with fractional calendar fields,
	// which has no exact end.
	ErrImprecisePeriod = errors.New("period has no exact end")
)

// Span is the interval [start, stop). stop is the first moment outside the
// span. A Span owns copies of both moments.
type Span struct {
	start moment.Moment
	stop  moment.Moment
}

// Option selects how New derives the stop.
type Option func(*options)

type options struct {
	stop     *moment.Moment
	duration *time.Duration
	period   *period.Period
	given    int
}

// WithStop sets an explicit stop.
func WithStop(stop moment.Moment) Option {
	return func(o *options) {
		o.stop = &stop
		o.given++
	}
}

// WithDuration puts the stop a fixed duration after the resolved start.
func WithDuration(d time.Duration) Option {
	return func(o *options) {
		o.duration = &d
		o.given++
	}
}

// WithPeriod puts the stop a calendar period (P1M, P2Y, PT90M ...) after the
// resolved start. Year and month steps clamp to the end of a shorter target
// month, so 2024-01-31 plus P1M stops at 2024-02-29. Fractional years,
// months, weeks or days make New fail with ErrImprecisePeriod.
func WithPeriod(p period.Period) Option {
	return func(o *options) {
		o.period = &p
		o.given++
	}
}

// New builds a span starting at start. Without options the stop is the
// successor of start at its own precision, so New(2024) is the whole year
// 2024. At most one option may be given.
func New(start moment.Moment, opts ...Option) (Span, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.given > 1 {
		return Span{}, errors.Wrapf(ErrConflictingStop, "%d stop options", o.given)
	}
	if start.IsEmpty() {
		return Span{}, errors.Wrap(moment.ErrMissingField, "span start is empty")
	}

	var (
		stop moment.Moment
		err  error
	)
	switch {
	case o.stop != nil:
		stop = *o.stop
		if stop.IsEmpty() {
			return Span{}, errors.Wrap(moment.ErrMissingField, "span stop is empty")
		}
	case o.duration != nil:
		stop, err = stopAt(start, resolve(start).Add(*o.duration))
	case o.period != nil:
		var t time.Time
		if t, err = addPeriod(resolve(start), *o.period); err == nil {
			stop, err = stopAt(start, t)
		}
	default:
		stop = start
		err = stop.Increment()
	}
	if err != nil {
		return Span{}, errors.Wrapf(err, "span stop after %s", start)
	}

	if !stop.After(start) {
		return Span{}, errors.Wrapf(ErrSpanOrder, "[%s, %s)", start, stop)
	}
	return Span{start: start, stop: stop}, nil
}

// MustNew is New for constant inputs; it panics on error.
func MustNew(start moment.Moment, opts ...Option) Span {
	s, err := New(start, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// addPeriod adds p to base field by field: years and months first with the
// day clamped to the target month, then weeks, days and the clock part.
func addPeriod(base time.Time, p period.Period) (time.Time, error) {
	if _, precise := p.AddTo(base); !precise {
		return time.Time{}, errors.WithHint(
			errors.Wrapf(ErrImprecisePeriod, "%s", p),
			"use whole years, months, weeks and days, e.g. P1M or P2W")
	}
	y, m, d := base.Date()
	first := time.Date(y, m+time.Month(12*p.Years()+p.Months()), 1, 0, 0, 0, 0, time.UTC)
	d = min(d, moment.DaysIn(first.Year(), int(first.Month())))
	t := time.Date(first.Year(), first.Month(), d, base.Hour(), base.Minute(), base.Second(), base.Nanosecond(), time.UTC)
	hms, _ := p.OnlyHMS().Duration()
	return t.AddDate(0, 0, 7*p.Weeks()+p.Days()).Add(hms), nil
}

// stopAt converts a computed stop time back into a moment. The stop keeps at
// least the start's precision and goes finer only as far as t needs to be
// represented exactly.
func stopAt(start moment.Moment, t time.Time) (moment.Moment, error) {
	full, err := moment.FromTime(t)
	if err != nil {
		return moment.Moment{}, err
	}
	return full.WithPrecision(unit.Finest(start.Precision(), exactPrecision(full))), nil
}

// exactPrecision returns the coarsest unit at which m loses no information.
func exactPrecision(m moment.Moment) unit.Unit {
	for _, u := range unit.All {
		if m.WithPrecision(u).Equal(m) {
			return u
		}
	}
	return unit.Microsecond
}

func resolve(m moment.Moment) time.Time {
	t, _ := m.ToTime(true)
	return t
}

// Start returns the first moment of the span.
func (s Span) Start() moment.Moment { return s.start }

// Stop returns the first moment after the span.
func (s Span) Stop() moment.Moment { return s.stop }

// End returns the last instant inside the span, one microsecond before stop.
func (s Span) End() time.Time {
	return resolve(s.stop).Add(-time.Microsecond)
}

// Unit returns the coarser of the two ends' precisions: the unit at which the
// span is whole.
func (s Span) Unit() unit.Unit {
	return unit.Coarsest(s.start.Precision(), s.stop.Precision())
}

// Duration returns stop minus start. Spans longer than about 292 years
// saturate, as time.Time.Sub does.
func (s Span) Duration() time.Duration {
	return resolve(s.stop).Sub(resolve(s.start))
}

// Count returns the number of whole u steps from start to stop. Years and
// months are counted by field difference; finer units by elapsed time.
func (s Span) Count(u unit.Unit) int {
	return steps(resolve(s.start), resolve(s.stop), u)
}

func steps(a, b time.Time, u unit.Unit) int {
	switch u {
	case unit.Year:
		return b.Year() - a.Year()
	case unit.Month:
		return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	}
	size, ok := u.Micros()
	if !ok {
		return 0
	}
	return int((b.UnixMicro() - a.UnixMicro()) / size)
}

// gridTime returns the boundary i steps of u after base.
func gridTime(base time.Time, i int, u unit.Unit) time.Time {
	switch u {
	case unit.Year:
		return base.AddDate(i, 0, 0)
	case unit.Month:
		return base.AddDate(0, i, 0)
	case unit.Day:
		return base.AddDate(0, 0, i)
	}
	size, _ := u.Micros()
	return time.UnixMicro(base.UnixMicro() + int64(i)*size).UTC()
}

// grid describes the sub-span boundaries of a span: base is the start
// aligned to sub, and n sub-spans reach stop.
type grid struct {
	sub  unit.Unit
	base time.Time
	n    int
}

func (s Span) grid() (grid, bool) {
	sub := s.Unit().Finer()
	if !sub.Valid() {
		return grid{}, false
	}
	base := resolve(s.start.WithPrecision(sub))
	stop := resolve(s.stop)
	n := steps(base, stop, sub)
	if gridTime(base, n, sub).Before(stop) {
		n++
	}
	return grid{sub: sub, base: base, n: n}, true
}

// Len returns the number of sub-spans one unit finer than Unit(). A year has
// 12, February 2024 has 29. A microsecond span has none.
func (s Span) Len() int {
	g, ok := s.grid()
	if !ok {
		return 0
	}
	return g.n
}

// Index returns the i-th sub-span. Negative indices count from the end.
// Sub-spans at the edges are clipped to the span when its ends are finer
// than the sub-span unit.
func (s Span) Index(i int) (Span, error) {
	g, ok := s.grid()
	if !ok {
		return Span{}, errors.Wrapf(ErrIndex, "%s span has no sub-spans", s.Unit())
	}
	if i < 0 {
		i += g.n
	}
	if i < 0 || i >= g.n {
		return Span{}, errors.Wrapf(ErrIndex, "index %d, len %d", i, g.n)
	}
	return s.sub(g, i)
}

func (s Span) sub(g grid, i int) (Span, error) {
	var lo moment.Moment
	if i == 0 && s.start.Precision().IsFinerThan(g.sub) {
		lo = s.start
	} else {
		m, err := moment.FromTime(gridTime(g.base, i, g.sub))
		if err != nil {
			return Span{}, err
		}
		lo = m.WithPrecision(g.sub)
	}

	hi := s.stop
	if next := gridTime(g.base, i+1, g.sub); !next.After(resolve(s.stop)) {
		m, err := moment.FromTime(next)
		if err != nil {
			return Span{}, err
		}
		hi = m.WithPrecision(g.sub)
	}
	return Span{start: lo, stop: hi}, nil
}

// Slice returns the span covering sub-spans i through j-1. Negative indices
// count from the end.
func (s Span) Slice(i, j int) (Span, error) {
	n := s.Len()
	if i < 0 {
		i += n
	}
	if j < 0 {
		j += n
	}
	if i < 0 || j > n || i >= j {
		return Span{}, errors.Wrapf(ErrIndex, "slice [%d:%d], len %d", i, j, n)
	}
	first, err := s.Index(i)
	if err != nil {
		return Span{}, err
	}
	last, err := s.Index(j - 1)
	if err != nil {
		return Span{}, err
	}
	return Span{start: first.start, stop: last.stop}, nil
}

// Spans returns all sub-spans.
func (s Span) Spans() []Span {
	out := make([]Span, 0, s.Len())
	for sub := range s.All() {
		out = append(out, sub)
	}
	return out
}

// Contains reports whether d, resolved with range starts, falls in
// [start, stop).
func (s Span) Contains(d moment.DateLike) bool {
	return s.Compare(d) == 0
}

// Compare places d relative to the span: -1 before start, 0 inside, +1 at
// or after stop. Values that are not date-like compare as -1.
func (s Span) Compare(d moment.DateLike) int {
	m, err := moment.From(d)
	if err != nil {
		return -1
	}
	switch {
	case m.Before(s.start):
		return -1
	case m.Before(s.stop):
		return 0
	default:
		return 1
	}
}

// Locate returns the index of the sub-span containing d.
func (s Span) Locate(d moment.DateLike) (int, error) {
	m, err := moment.From(d)
	if err != nil {
		return 0, err
	}
	if m.Before(s.start) || !m.Before(s.stop) {
		return 0, errors.Wrapf(ErrIndex, "%s outside %s", m, s)
	}
	g, ok := s.grid()
	if !ok {
		return 0, errors.Wrapf(ErrIndex, "%s span has no sub-spans", s.Unit())
	}
	return steps(g.base, resolve(m), g.sub), nil
}

// Overlaps reports whether s and o share at least one instant.
func (s Span) Overlaps(o Span) bool {
	return s.start.Before(o.stop) && o.start.Before(s.stop)
}

func (s Span) String() string {
	return fmt.Sprintf("[%s, %s)", s.start, s.stop)
}
