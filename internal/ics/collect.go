package ics

import (
	"context"

	"circlecal/internal/config"
	appLog "circlecal/internal/log"
)

// Sources converts configured feeds to fetch sources, skipping feeds
// without a URL.
func Sources(feeds []config.ICSConfig) []Source {
	sources := make([]Source, 0, len(feeds))
	for _, c := range feeds {
		if c.URL == "" {
			continue
		}
		sources = append(sources, Source{ID: c.SourceID(), URL: c.URL})
	}
	return sources
}

// Collect fetches every source and parses the bodies. It returns the
// parsed events, the number of sources that produced a body, and the
// per-source fetch and parse errors.
func (f *Fetcher) Collect(ctx context.Context, sources []Source) ([]ParsedEvent, int, []error) {
	results, errs := f.FetchAll(ctx, sources)

	var parsed []ParsedEvent
	for _, res := range results {
		events, err := ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("ics parse failed for source", err, "id", res.Source.ID)
			errs = append(errs, err)
			continue
		}
		parsed = append(parsed, events...)
	}
	return parsed, len(results), errs
}
