package web

import (
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"circlecal/internal/calendar"
	"circlecal/internal/model"
	"circlecal/internal/moment"
	"circlecal/internal/span"
)

// spanFromQuery builds a span from the moment in query parameter key plus
// an optional stop, duration or period parameter. A missing moment falls
// back to the configured default span.
func (s *Server) spanFromQuery(r *http.Request, key string) (span.Span, error) {
	q := r.URL.Query()

	var start moment.Moment
	var err error
	if v := q.Get(key); v != "" {
		start, err = moment.Parse(v)
	} else {
		start, err = s.cfg.Span(s.now(), s.loc)
	}
	if err != nil {
		return span.Span{}, errors.Wrapf(err, "%s", key)
	}

	opts, err := span.ParseOptions(q.Get("stop"), q.Get("duration"), q.Get("period"))
	if err != nil {
		return span.Span{}, err
	}
	return span.New(start, opts...)
}

// spanDTO is the JSON view of a span. Ends are moment strings.
type spanDTO struct {
	Start string `json:"start"`
	Stop  string `json:"stop"`
	End   string `json:"end"`
	Unit  string `json:"unit"`
	Len   int    `json:"len"`
}

func newSpanDTO(sp span.Span) spanDTO {
	dto := spanDTO{
		Start: sp.Start().String(),
		Stop:  sp.Stop().String(),
		Unit:  sp.Unit().String(),
		Len:   sp.Len(),
	}
	if end, err := moment.FromTime(sp.End()); err == nil {
		dto.End = end.String()
	}
	return dto
}

// spanResponse is the JSON response shape for /api/span.
type spanResponse struct {
	spanDTO
	SubSpans  []spanDTO        `json:"sub_spans"`
	Truncated bool             `json:"truncated,omitempty"`
	Weeks     [][]calendar.Day `json:"weeks,omitempty"`
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Span            spanDTO     `json:"span"`
	Buckets         []bucketDTO `json:"buckets"`
	TruncatedUIDs   []string    `json:"truncated_uids,omitempty"`
	DisplayTimeZone string      `json:"display_timezone"`
	WeekStart       string      `json:"week_start"`
}

type bucketDTO struct {
	Start       string          `json:"start"`
	Stop        string          `json:"stop"`
	Occurrences []occurrenceDTO `json:"occurrences"`
}

// occurrenceDTO is a JSON-friendly view of occurrences.
type occurrenceDTO struct {
	SourceID    string    `json:"source_id"`
	UID         string    `json:"uid"`
	InstanceKey string    `json:"instance_key"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	AllDay      bool      `json:"all_day"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

func newOccurrenceDTO(occ model.Occurrence) occurrenceDTO {
	return occurrenceDTO{
		SourceID:    occ.SourceID,
		UID:         occ.UID,
		InstanceKey: occ.InstanceKey,
		Summary:     occ.Summary,
		Description: occ.Description,
		Location:    occ.Location,
		AllDay:      occ.AllDay,
		Start:       occ.Start,
		End:         occ.End,
	}
}
