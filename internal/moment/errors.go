package moment

import (
	"time"

	"github.com/cockroachdb/errors"

	"circlecal/internal/unit"
)

// Error classes. Operations wrap these with detail; test with errors.Is.
var (
	// ErrRange reports a unit value outside its legal range, or a mutation
	// that would leave an already-set finer unit out of range.
	ErrRange = errors.New("value out of range")

	// ErrMissingField reports a conversion that needs a unit the moment
	// does not hold.
	ErrMissingField = errors.New("missing required field")

	// ErrTypeCoercion reports an input that cannot be read as a date.
	ErrTypeCoercion = errors.New("not date-like")

	// ErrExhausted reports an increment past the last representable year.
	ErrExhausted = errors.New("calendar exhausted")
)

func rangeError(m *Moment, u unit.Unit, n, lo, hi int) error {
	err := errors.Wrapf(ErrRange, "%s %d outside [%d, %d]", u, n, lo, hi)
	if u == unit.Day {
		err = errors.WithHintf(err, "%s %04d has %d days", time.Month(m.v[unit.Month]), m.v[unit.Year], hi)
	}
	return err
}
