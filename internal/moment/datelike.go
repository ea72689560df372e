package moment

import (
	"time"

	"github.com/cockroachdb/errors"

	"circlecal/internal/unit"
)

// DateLike is anything that can report calendar unit values. Field returns
// false for units the value does not carry.
type DateLike interface {
	Field(u unit.Unit) (int, bool)
}

type timeFields struct {
	t time.Time
}

// Time adapts t, read in its own location, to a DateLike carrying all seven
// units.
func Time(t time.Time) DateLike {
	return timeFields{t: t}
}

func (tf timeFields) Field(u unit.Unit) (int, bool) {
	t := tf.t
	switch u {
	case unit.Year:
		return t.Year(), true
	case unit.Month:
		return int(t.Month()), true
	case unit.Day:
		return t.Day(), true
	case unit.Hour:
		return t.Hour(), true
	case unit.Minute:
		return t.Minute(), true
	case unit.Second:
		return t.Second(), true
	case unit.Microsecond:
		return t.Nanosecond() / 1000, true
	}
	return 0, false
}

// Option tunes how From reads a DateLike.
type Option func(*options)

type options struct {
	trimZeros bool
}

// TrimZeros treats trailing zero time-of-day units as unset, so midnight on
// a date reads as a day-precision moment.
func TrimZeros(o *options) {
	o.trimZeros = true
}

// From builds a Moment from d. Units are read from Year downwards and
// reading stops at the first unit d does not carry. A value without a year
// is an ErrTypeCoercion error; out of range values are ErrRange errors.
func From(d DateLike, opts ...Option) (Moment, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if d == nil {
		return Moment{}, errors.Wrap(ErrTypeCoercion, "nil date")
	}

	fields := make([]Field, 0, unit.Count)
	for _, u := range unit.All {
		n, ok := d.Field(u)
		if !ok {
			break
		}
		fields = append(fields, Field{Unit: u, Value: Int(n)})
	}
	if len(fields) == 0 {
		return Moment{}, errors.Wrapf(ErrTypeCoercion, "%T carries no year", d)
	}
	if o.trimZeros {
		for len(fields) > 0 {
			last := fields[len(fields)-1]
			if last.Unit < unit.Hour || last.Value.n != 0 {
				break
			}
			fields = fields[:len(fields)-1]
		}
	}

	var m Moment
	if err := m.Update(fields...); err != nil {
		return Moment{}, err
	}
	return m, nil
}

// FromTime reads t's wall clock into a Moment.
func FromTime(t time.Time, opts ...Option) (Moment, error) {
	if t.Nanosecond()%1000 != 0 {
		t = t.Truncate(time.Microsecond)
	}
	return From(Time(t), opts...)
}

// Coerce turns v into a DateLike. It accepts time.Time, *time.Time, Moment,
// *Moment and any DateLike.
func Coerce(v any) (DateLike, error) {
	switch x := v.(type) {
	case time.Time:
		return Time(x), nil
	case *time.Time:
		if x == nil {
			return nil, errors.Wrap(ErrTypeCoercion, "nil *time.Time")
		}
		return Time(*x), nil
	case Moment:
		return x, nil
	case *Moment:
		if x == nil {
			return nil, errors.Wrap(ErrTypeCoercion, "nil *Moment")
		}
		return *x, nil
	case DateLike:
		return x, nil
	}
	return nil, errors.Wrapf(ErrTypeCoercion, "%T", v)
}
