// Package moment implements a calendar moment known only down to a
// caller-chosen unit: a year, a month of a year, a day, and so on down to the
// microsecond.
//
// A Moment stores one value per unit in a fixed array and the number of units
// that are set. Units are always set from Year downwards, so a moment never
// has a day without a month. Every mutation works on a scratch copy and only
// commits once every set unit is inside its legal range; a failed call leaves
// the receiver exactly as it was.
//
// Moments are plain values. They are not safe for concurrent mutation; copy
// them per goroutine.
package moment

import (
	"cmp"
	"slices"
	"time"

	"github.com/cockroachdb/errors"

	"circlecal/internal/unit"
)

// Moment is a point in time specified to a variable precision. The zero value
// is the empty moment.
type Moment struct {
	v [unit.Count]int
	n int // number of set units, counted from Year
}

type valueKind uint8

const (
	kindInt valueKind = iota
	kindRangeStart
	kindRangeEnd
	kindUnset
)

// Value is the right-hand side of a Field: an integer or one of the symbolic
// values RangeStart, RangeEnd and Unset.
type Value struct {
	kind valueKind
	n    int
}

// Int wraps an explicit value.
func Int(n int) Value {
	return Value{kind: kindInt, n: n}
}

var (
	// RangeStart resolves to the smallest legal value of the unit.
	RangeStart = Value{kind: kindRangeStart}
	// RangeEnd resolves to the largest legal value of the unit.
	RangeEnd = Value{kind: kindRangeEnd}
	// Unset clears the unit and every finer unit.
	Unset = Value{kind: kindUnset}
)

// Field assigns a Value to a unit in Update.
type Field struct {
	Unit  unit.Unit
	Value Value
}

// New builds a moment from positional values: year, month, day, hour,
// minute, second, microsecond. Fewer values give a coarser precision.
func New(values ...int) (Moment, error) {
	var m Moment
	if len(values) > unit.Count {
		return m, errors.Wrapf(ErrRange, "%d values for %d units", len(values), unit.Count)
	}
	fields := make([]Field, len(values))
	for i, n := range values {
		fields[i] = Field{Unit: unit.All[i], Value: Int(n)}
	}
	if err := m.Update(fields...); err != nil {
		return Moment{}, err
	}
	return m, nil
}

// MustNew is New for constant inputs; it panics on error.
func MustNew(values ...int) Moment {
	m, err := New(values...)
	if err != nil {
		panic(err)
	}
	return m
}

// Precision returns the finest set unit, or unit.None for the empty moment.
func (m Moment) Precision() unit.Unit {
	return unit.Unit(m.n - 1)
}

// IsEmpty reports whether no unit is set.
func (m Moment) IsEmpty() bool {
	return m.n == 0
}

func (m *Moment) isSet(u unit.Unit) bool {
	return u.Valid() && int(u) < m.n
}

// Field returns the value of u and whether it is set. It makes Moment a
// DateLike.
func (m Moment) Field(u unit.Unit) (int, bool) {
	if !m.isSet(u) {
		return 0, false
	}
	return m.v[u], true
}

// Range returns the legal range of u given the coarser units currently set.
// ok is false when the range is not yet computable, i.e. for Day before
// Month is known.
func (m Moment) Range(u unit.Unit) (lo, hi int, ok bool) {
	switch u {
	case unit.Year:
		return MinYear, MaxYear, true
	case unit.Month:
		return 1, 12, true
	case unit.Day:
		if !m.isSet(unit.Month) {
			return 0, 0, false
		}
		return 1, DaysIn(m.v[unit.Year], m.v[unit.Month]), true
	case unit.Hour:
		return 0, 23, true
	case unit.Minute, unit.Second:
		return 0, 59, true
	case unit.Microsecond:
		return 0, 999_999, true
	}
	return 0, 0, false
}

// Update applies fields as one transaction. Fields are applied from the
// coarsest unit to the finest. Setting a unit whose coarser units are unset
// first fills those with their range start. The result must have every set
// unit in range, otherwise Update returns an ErrRange error and m is left
// untouched.
func (m *Moment) Update(fields ...Field) error {
	sorted := slices.Clone(fields)
	slices.SortStableFunc(sorted, func(a, b Field) int {
		return cmp.Compare(a.Unit, b.Unit)
	})

	next := *m
	for _, f := range sorted {
		if err := next.apply(f); err != nil {
			return err
		}
	}
	if err := next.validate(); err != nil {
		return err
	}
	*m = next
	return nil
}

// Set sets u to n.
func (m *Moment) Set(u unit.Unit, n int) error {
	return m.Update(Field{Unit: u, Value: Int(n)})
}

// SetRangeStart sets u to its smallest legal value.
func (m *Moment) SetRangeStart(u unit.Unit) error {
	return m.Update(Field{Unit: u, Value: RangeStart})
}

// SetRangeEnd sets u to its largest legal value.
func (m *Moment) SetRangeEnd(u unit.Unit) error {
	return m.Update(Field{Unit: u, Value: RangeEnd})
}

// Clear unsets u and every finer unit.
func (m *Moment) Clear(u unit.Unit) {
	if !u.Valid() {
		return
	}
	m.truncate(int(u))
}

func (m *Moment) apply(f Field) error {
	u := f.Unit
	if !u.Valid() {
		return errors.Wrapf(ErrRange, "unit %d", int(u))
	}
	if f.Value.kind == kindUnset {
		m.truncate(int(u))
		return nil
	}

	// Coarser units default top-down so Day's range sees Month and Year.
	for c := unit.Unit(m.n); c < u; c++ {
		lo, _, _ := m.Range(c)
		m.v[c] = lo
		m.n = int(c) + 1
	}

	lo, hi, _ := m.Range(u)
	n := f.Value.n
	switch f.Value.kind {
	case kindRangeStart:
		n = lo
	case kindRangeEnd:
		n = hi
	}
	if n < lo || n > hi {
		return rangeError(m, u, n, lo, hi)
	}
	m.v[u] = n
	if m.n <= int(u) {
		m.n = int(u) + 1
	}
	return nil
}

func (m *Moment) validate() error {
	for _, u := range unit.All[:m.n] {
		lo, hi, _ := m.Range(u)
		if m.v[u] < lo || m.v[u] > hi {
			return rangeError(m, u, m.v[u], lo, hi)
		}
	}
	return nil
}

// truncate keeps the n coarsest units and zeroes the rest.
func (m *Moment) truncate(n int) {
	if n >= m.n {
		return
	}
	for i := n; i < unit.Count; i++ {
		m.v[i] = 0
	}
	m.n = n
}

// WithPrecision returns a copy of m set exactly down to u: finer units are
// dropped, missing units are filled with their range start.
func (m Moment) WithPrecision(u unit.Unit) Moment {
	if !u.Valid() {
		return Moment{}
	}
	if m.isSet(u) {
		m.truncate(int(u) + 1)
		return m
	}
	// Range starts are always legal, so this cannot fail.
	_ = m.apply(Field{Unit: u, Value: RangeStart})
	return m
}

// Increment advances m by one step of its own precision, carrying into
// coarser units when a unit overflows. Day's range is re-read after every
// carry, so 2024-01-31 becomes 2024-02-01. Carrying past MaxYear returns an
// ErrExhausted error and leaves m unchanged.
func (m *Moment) Increment() error {
	p := m.Precision()
	if !p.Valid() {
		return errors.Wrap(ErrMissingField, "increment of an empty moment")
	}

	next := *m
	for u := p; u.Valid(); u = u.Coarser() {
		lo, hi, _ := next.Range(u)
		if next.v[u] < hi {
			next.v[u]++
			if err := next.validate(); err != nil {
				return err
			}
			*m = next
			return nil
		}
		next.v[u] = lo
	}
	return errors.Wrapf(ErrExhausted, "no %s after %s", p, m)
}

// ToTime resolves m to a UTC time. Year, Month and Day are required; when
// force is set, missing units take their range start instead of failing with
// ErrMissingField.
func (m Moment) ToTime(force bool) (time.Time, error) {
	return m.ToTimeIn(time.UTC, force)
}

// ToTimeIn is ToTime with the wall clock placed in loc.
func (m Moment) ToTimeIn(loc *time.Location, force bool) (time.Time, error) {
	if !force && !m.isSet(unit.Day) {
		missing := unit.Unit(m.n)
		return time.Time{}, errors.Wrapf(ErrMissingField, "%q has no %s", m.String(), missing)
	}
	if loc == nil {
		loc = time.UTC
	}
	f := m.WithPrecision(unit.Microsecond)
	return time.Date(
		f.v[unit.Year], time.Month(f.v[unit.Month]), f.v[unit.Day],
		f.v[unit.Hour], f.v[unit.Minute], f.v[unit.Second],
		f.v[unit.Microsecond]*1000, loc,
	), nil
}

// resolved is ToTime(true), which cannot fail.
func (m Moment) resolved() time.Time {
	t, _ := m.ToTime(true)
	return t
}

// Equal reports whether other names the same moment at m's precision. Every
// unit m sets must hold the same value in other; every unit m leaves unset
// must be absent in other or hold its range start. The relation is not
// symmetric: the year 2024 equals 2024-01-01T00:00, but 2024-01-01T00:00
// does not equal the year 2024.
//
// An empty moment equals only another empty value, one that carries no year.
// A nil other equals nothing.
func (m Moment) Equal(other DateLike) bool {
	if other == nil {
		return false
	}
	if _, ok := other.Field(unit.Year); !ok {
		return m.IsEmpty()
	}
	if m.IsEmpty() {
		return false
	}
	o, err := From(other)
	if err != nil {
		return false
	}
	for _, u := range unit.All {
		ov, ok := o.Field(u)
		if m.isSet(u) {
			if !ok || ov != m.v[u] {
				return false
			}
			continue
		}
		if ok && ov != rangeStart(u) {
			return false
		}
	}
	return true
}

// Compare orders moments by their fully resolved times, regardless of
// precision.
func (m Moment) Compare(o Moment) int {
	return m.resolved().Compare(o.resolved())
}

// Before reports whether m resolves strictly before o.
func (m Moment) Before(o Moment) bool {
	return m.Compare(o) < 0
}

// After reports whether m resolves strictly after o.
func (m Moment) After(o Moment) bool {
	return m.Compare(o) > 0
}
