// Package unit defines the seven calendar units a partial moment is built
// from and their static coarse-to-fine ordering.
package unit

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Unit is a calendar unit. Lower values are coarser.
type Unit int

const (
	// None marks the absence of a unit, e.g. the finer unit of Microsecond
	// or the precision of an empty moment.
	None Unit = iota - 1
	Year
	Month
	Day
	Hour
	Minute
	Second
	Microsecond
)

// Count is the number of real units.
const Count = int(Microsecond) + 1

// All lists the units from coarsest to finest.
var All = [Count]Unit{Year, Month, Day, Hour, Minute, Second, Microsecond}

var names = [Count]string{"year", "month", "day", "hour", "minute", "second", "microsecond"}

// micros holds the fixed length of each unit; zero for calendar-irregular units.
var micros = [Count]int64{
	Day:         24 * 60 * 60 * 1_000_000,
	Hour:        60 * 60 * 1_000_000,
	Minute:      60 * 1_000_000,
	Second:      1_000_000,
	Microsecond: 1,
}

// ErrUnknown is returned by Parse for names that are not calendar units.
var ErrUnknown = errors.New("unknown calendar unit")

// Valid reports whether u is one of the seven real units.
func (u Unit) Valid() bool {
	return u >= Year && u <= Microsecond
}

// Finer returns the next finer unit, or None for Microsecond.
func (u Unit) Finer() Unit {
	if !u.Valid() || u == Microsecond {
		return None
	}
	return u + 1
}

// Coarser returns the next coarser unit, or None for Year.
func (u Unit) Coarser() Unit {
	if !u.Valid() || u == Year {
		return None
	}
	return u - 1
}

// IsFinerThan reports whether u is strictly finer than v. Every real unit is
// finer than None.
func (u Unit) IsFinerThan(v Unit) bool {
	return Compare(u, v) < 0
}

// IsCoarserThan reports whether u is strictly coarser than v.
func (u Unit) IsCoarserThan(v Unit) bool {
	return Compare(u, v) > 0
}

// Micros returns the fixed length of u in microseconds. Year and Month have
// no fixed length and report false.
func (u Unit) Micros() (int64, bool) {
	if !u.Valid() || micros[u] == 0 {
		return 0, false
	}
	return micros[u], true
}

func (u Unit) String() string {
	if !u.Valid() {
		return "none"
	}
	return names[u]
}

// Compare orders units with coarser units greater:
// Year > Month > Day > Hour > Minute > Second > Microsecond > None.
func Compare(a, b Unit) int {
	ra, rb := rank(a), rank(b)
	switch {
	case ra > rb:
		return 1
	case ra < rb:
		return -1
	default:
		return 0
	}
}

func rank(u Unit) int {
	if !u.Valid() {
		return -1
	}
	return Count - int(u)
}

// Coarsest returns the coarser of a and b.
func Coarsest(a, b Unit) Unit {
	if Compare(a, b) >= 0 {
		return a
	}
	return b
}

// Finest returns the finer of a and b. None only wins when both are None.
func Finest(a, b Unit) Unit {
	if !a.Valid() {
		return b
	}
	if !b.Valid() {
		return a
	}
	if Compare(a, b) <= 0 {
		return a
	}
	return b
}

// Parse resolves a unit name. Singular and plural forms are accepted in any
// case ("Days", "month").
func Parse(name string) (Unit, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimSuffix(n, "s")
	for i, s := range names {
		if s == n {
			return Unit(i), nil
		}
	}
	return None, errors.Wrapf(ErrUnknown, "%q", name)
}
