package span

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rickb777/period"

	"circlecal/internal/moment"
)

// ParseOptions turns textual stop, duration and period values into
// Options for New. Empty values are skipped, so passing more than one
// non-empty value makes New fail with ErrConflictingStop.
//
// stop is a moment ("2024-05"), duration a Go duration ("36h") and period
// an ISO-8601 period ("P1M").
func ParseOptions(stop, duration, iso string) ([]Option, error) {
	var opts []Option
	if stop != "" {
		m, err := moment.Parse(stop)
		if err != nil {
			return nil, errors.Wrap(err, "stop")
		}
		opts = append(opts, WithStop(m))
	}
	if duration != "" {
		d, err := time.ParseDuration(duration)
		if err != nil {
			return nil, errors.WithHint(errors.Wrap(err, "duration"), "use a Go duration such as 90m or 36h")
		}
		opts = append(opts, WithDuration(d))
	}
	if iso != "" {
		p, err := period.Parse(iso)
		if err != nil {
			return nil, errors.WithHint(errors.Wrap(err, "period"), "use an ISO-8601 period such as P1M or P2W")
		}
		opts = append(opts, WithPeriod(p))
	}
	return opts, nil
}
