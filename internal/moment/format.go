package moment

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"circlecal/internal/unit"
)

// Separators written before each unit; Year has none.
var separators = [unit.Count]string{"", "-", "-", "T", ":", ":", "."}

var widths = [unit.Count]int{4, 2, 2, 2, 2, 2, 6}

var isoPrefix = regexp.MustCompile(
	`^(\d{4})(?:-(\d{2})(?:-(\d{2})(?:T(\d{2})(?::(\d{2})(?::(\d{2})(?:\.(\d{1,6}))?)?)?)?)?)?$`,
)

// String renders the ISO 8601 prefix matching m's precision, e.g. "2024",
// "2024-02", "2024-02-29T13:05" or "2024-02-29T13:05:07.000123". The empty
// moment renders as "".
func (m Moment) String() string {
	var b strings.Builder
	for _, u := range unit.All[:m.n] {
		b.WriteString(separators[u])
		fmt.Fprintf(&b, "%0*d", widths[u], m.v[u])
	}
	return b.String()
}

// Parse reads the format produced by String. Precision follows the number of
// components present. A fraction shorter than six digits is read as a
// decimal fraction of a second.
func Parse(s string) (Moment, error) {
	match := isoPrefix.FindStringSubmatch(strings.TrimSpace(s))
	if match == nil {
		return Moment{}, errors.Wrapf(ErrTypeCoercion, "cannot parse %q as a moment", s)
	}

	fields := make([]Field, 0, unit.Count)
	for i, part := range match[1:] {
		if part == "" {
			break
		}
		u := unit.All[i]
		if u == unit.Microsecond {
			part += strings.Repeat("0", widths[u]-len(part))
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return Moment{}, errors.Wrapf(ErrTypeCoercion, "%s %q", u, part)
		}
		fields = append(fields, Field{Unit: u, Value: Int(n)})
	}

	var m Moment
	if err := m.Update(fields...); err != nil {
		return Moment{}, errors.Wrapf(err, "parse %q", s)
	}
	return m, nil
}

// MustParse is Parse for constant inputs; it panics on error.
func MustParse(s string) Moment {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MarshalText implements encoding.TextMarshaler.
func (m Moment) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text yields the
// empty moment.
func (m *Moment) UnmarshalText(text []byte) error {
	if len(strings.TrimSpace(string(text))) == 0 {
		*m = Moment{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
