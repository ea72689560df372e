package model

import "time"

// Occurrence represents a single concrete instance of an event
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	SourceID string // calendar source ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the local start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	// AllDay occurrences start at local midnight; End is the exclusive
	// following midnight.
	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}

// Overlaps reports whether o intersects the half-open range [from, to).
// Occurrences without a positive duration are treated as instants.
func (o Occurrence) Overlaps(from, to time.Time) bool {
	if !o.End.After(o.Start) {
		return !o.Start.Before(from) && o.Start.Before(to)
	}
	return o.Start.Before(to) && o.End.After(from)
}
