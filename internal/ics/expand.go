package ics

import (
	"cmp"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/teambition/rrule-go"

	"circlecal/internal/calendar"
	appLog "circlecal/internal/log"
	"circlecal/internal/model"
	"circlecal/internal/span"
)

const defaultMaxOccurrencesPerEvent = 5000

// ErrNoWindow is returned when ExpandConfig carries no window.
var ErrNoWindow = errors.New("expand: no window")

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone occurrences are converted to and the
	// window's wall clock is read in. Nil means time.Local.
	DisplayLocation *time.Location

	// Window is the half-open span occurrences must overlap.
	Window span.Span

	// MaxOccurrencesPerEvent caps expansion of a single rule. Zero means
	// defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// ExpandResult lists the expanded occurrences ordered by start, and the
// UIDs whose expansion hit the cap.
type ExpandResult struct {
	Occurrences     []model.Occurrence
	TruncatedEvents []string
}

// ExpandOccurrences expands events into the concrete occurrences that
// overlap cfg.Window. It handles single events, RRULE recurrences, EXDATE
// exclusions, RECURRENCE-ID overrides and all-day events.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.Window.Start().IsEmpty() {
		return result, ErrNoWindow
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}
	from, to := calendar.Window(cfg.Window, cfg.DisplayLocation)

	// Group base events and overrides by UID.
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
		}
	}

	for uid, baseEvents := range baseByUID {
		ov := overridesByUID[uid]
		truncated := false
		for _, ev := range baseEvents {
			occ, hitCap := expandEvent(ev, ov, from, to, cfg)
			truncated = truncated || hitCap
			result.Occurrences = append(result.Occurrences, occ...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	// Overrides moved into the window from outside the base expansion.
	for uid, ovs := range overridesByUID {
		if _, ok := baseByUID[uid]; ok {
			continue
		}
		for _, o := range ovs {
			if occ := makeOccurrence(o, o.Start, o.End, cfg.DisplayLocation); occ.Overlaps(from, to) {
				result.Occurrences = append(result.Occurrences, occ)
			}
		}
	}

	slices.SortFunc(result.Occurrences, func(a, b model.Occurrence) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.UID, b.UID)
	})
	slices.Sort(result.TruncatedEvents)
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, from, to time.Time, cfg ExpandConfig) ([]model.Occurrence, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, from, to, cfg), false
	}
	return expandRecurringEvent(ev, overrides, from, to, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, from, to time.Time, cfg ExpandConfig) []model.Occurrence {
	if o, ok := findOverrideForStart(overrides, ev.Start); ok {
		ev = o
	}
	occ := makeOccurrence(ev, ev.Start, ev.End, cfg.DisplayLocation)
	if !occ.Overlaps(from, to) {
		return nil
	}
	return []model.Occurrence{occ}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, from, to time.Time, cfg ExpandConfig) ([]model.Occurrence, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the query by the event length so occurrences that began before
	// the window but are still running are found.
	dur := ev.End.Sub(ev.Start)
	occTimes := set.Between(from.Add(-dur).In(ev.Start.Location()), to.In(ev.Start.Location()), true)

	hitCap := false
	out := make([]model.Occurrence, 0, min(len(occTimes), cfg.MaxOccurrencesPerEvent))
	for _, occStart := range occTimes {
		if len(out) == cfg.MaxOccurrencesPerEvent {
			hitCap = true
			break
		}
		base, start, end := ev, occStart, occStart.Add(dur)
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			base, start, end = o, o.Start, o.End
		}
		occ := makeOccurrence(base, start, end, cfg.DisplayLocation)
		if occ.Overlaps(from, to) {
			out = append(out, occ)
		}
	}
	return out, hitCap
}

// findOverrideForStart finds the override whose RECURRENCE-ID is the
// same instant as start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeOccurrence normalizes an event instance into displayLoc. All-day
// instances are floating: their dates are kept and placed at midnight in
// displayLoc rather than converted.
func makeOccurrence(ev ParsedEvent, start, end time.Time, displayLoc *time.Location) model.Occurrence {
	if ev.AllDay {
		days := int(end.Sub(start).Round(24*time.Hour) / (24 * time.Hour))
		if days < 1 {
			days = 1
		}
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, displayLoc)
		end = start.AddDate(0, 0, days)
	} else {
		start, end = start.In(displayLoc), end.In(displayLoc)
	}

	return model.Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: start.Format(time.RFC3339Nano),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       start,
		End:         end,
	}
}
