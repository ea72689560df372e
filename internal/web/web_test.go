package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circlecal/internal/config"
	"circlecal/internal/ics"
)

var feed = strings.Join([]string{
	"BEGIN:VCALENDAR",
	"VERSION:2.0",
	"PRODID:-//circlecal//test//EN",
	"BEGIN:VEVENT",
	"UID:standup",
	"DTSTART:20240205T090000Z",
	"DTEND:20240205T091500Z",
	"RRULE:FREQ=WEEKLY;COUNT=3",
	"SUMMARY:Standup",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:holiday",
	"DTSTART;VALUE=DATE:20240212",
	"DTEND;VALUE=DATE:20240213",
	"SUMMARY:Holiday",
	"END:VEVENT",
	"END:VCALENDAR",
	"",
}, "\r\n")

type fixture struct {
	srv  *Server
	hits *atomic.Int32
}

func newFixture(t *testing.T, mutate func(*config.Config)) fixture {
	t.Helper()
	hits := new(atomic.Int32)
	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(feed))
	}))
	t.Cleanup(feedSrv.Close)

	cfg := config.DefaultConfig()
	cfg.ICS = []config.ICSConfig{{ID: "team", URL: feedSrv.URL + "/team.ics"}}
	if mutate != nil {
		mutate(cfg)
	}

	s := NewServer(cfg, ics.NewFetcher(t.TempDir()))
	s.now = func() time.Time { return time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC) }
	return fixture{srv: s, hits: hits}
}

func (f fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.get(t, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestBasicAuth(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "ann", Password: "secret"}
	})

	assert.Equal(t, http.StatusOK, f.get(t, "/health").Code)

	rec := f.get(t, "/api/span?at=2024")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/span?at=2024", nil)
	req.SetBasicAuth("ann", "secret")
	rec = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSpanEndpoint(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.get(t, "/api/span?at=2024-02")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[spanResponse](t, rec)
	assert.Equal(t, "2024-02", resp.Start)
	assert.Equal(t, "2024-03", resp.Stop)
	assert.Equal(t, "2024-02-29T23:59:59.999999", resp.End)
	assert.Equal(t, "month", resp.Unit)
	assert.Equal(t, 29, resp.Len)
	require.Len(t, resp.SubSpans, 29)
	assert.Equal(t, "2024-02-29", resp.SubSpans[28].Start)
	assert.Equal(t, "2024-03-01", resp.SubSpans[28].Stop)
	assert.False(t, resp.Truncated)
	require.Len(t, resp.Weeks, 5)
	assert.Equal(t, "Thursday", resp.Weeks[0][0].WeekdayName)

	resp = decode[spanResponse](t, f.get(t, "/api/span?at=2024-01-15&period=P1M"))
	assert.Equal(t, "2024-02-15", resp.Stop)
	assert.Equal(t, "day", resp.Unit)
	assert.Equal(t, 31*24, resp.Len)

	resp = decode[spanResponse](t, f.get(t, "/api/span?at=2024-02-05&duration=90m"))
	assert.Equal(t, "2024-02-05T01:30", resp.Stop)
	assert.Equal(t, 2, resp.Len)
	assert.Empty(t, resp.Weeks)

	resp = decode[spanResponse](t, f.get(t, "/api/span?at=2024-02-05T10:00:05"))
	assert.Equal(t, 1_000_000, resp.Len)
	assert.Len(t, resp.SubSpans, maxSubSpans)
	assert.True(t, resp.Truncated)

	// Without at, the current month is used.
	resp = decode[spanResponse](t, f.get(t, "/api/span"))
	assert.Equal(t, "2024-02", resp.Start)
}

func TestSpanEndpointBoundsWeeks(t *testing.T) {
	f := newFixture(t, nil)

	resp := decode[spanResponse](t, f.get(t, "/api/span?at=2024"))
	assert.Len(t, resp.Weeks, 53)
	assert.False(t, resp.Truncated)

	rec := f.get(t, "/api/span?at=0001&stop=9999")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[spanResponse](t, rec)
	assert.Equal(t, 9998*12, resp.Len)
	assert.Len(t, resp.SubSpans, maxSubSpans)
	assert.Empty(t, resp.Weeks)
	assert.True(t, resp.Truncated)

	resp = decode[spanResponse](t, f.get(t, "/api/span?at=2022&stop=2025"))
	assert.Len(t, resp.SubSpans, 36)
	assert.Empty(t, resp.Weeks)
	assert.True(t, resp.Truncated)
}

func TestSpanEndpointErrors(t *testing.T) {
	f := newFixture(t, nil)
	for _, target := range []string{
		"/api/span?at=2024-02-30",
		"/api/span?at=tomorrow",
		"/api/span?at=2024-02&stop=2024-01",
		"/api/span?at=2024-02&stop=2024-03&duration=1h",
		"/api/span?at=2024-02&duration=soon",
		"/api/span?at=2024-02&period=monthly",
	} {
		rec := f.get(t, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		body := decode[map[string]string](t, rec)
		assert.NotEmpty(t, body["error"], target)
	}

	body := decode[map[string]string](t, f.get(t, "/api/span?at=2023-02-29"))
	assert.Contains(t, body["hint"], "28 days")
}

func TestEventsEndpoint(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.get(t, "/api/events?span=2024-02")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[eventsResponse](t, rec)
	assert.Equal(t, "2024-02", resp.Span.Start)
	assert.Equal(t, "UTC", resp.DisplayTimeZone)
	require.Len(t, resp.Buckets, 29)

	titles := map[string][]string{}
	for _, b := range resp.Buckets {
		for _, occ := range b.Occurrences {
			titles[b.Start] = append(titles[b.Start], occ.Summary)
		}
	}
	assert.Equal(t, map[string][]string{
		"2024-02-05": {"Standup"},
		"2024-02-12": {"Holiday", "Standup"},
		"2024-02-19": {"Standup"},
	}, titles)
	assert.Equal(t, int32(1), f.hits.Load())

	// Served from the cache.
	f.get(t, "/api/events?span=2024-02")
	assert.Equal(t, int32(1), f.hits.Load())

	// The default span is the current month, which shares the cache entry.
	resp = decode[eventsResponse](t, f.get(t, "/api/events"))
	assert.Equal(t, "2024-02", resp.Span.Start)
	assert.Equal(t, int32(1), f.hits.Load())

	f.srv.InvalidateEvents()
	f.get(t, "/api/events?span=2024-02")
	assert.Equal(t, int32(2), f.hits.Load())

	day := decode[eventsResponse](t, f.get(t, "/api/events?span=2024-02-12"))
	require.Len(t, day.Buckets, 24)
	assert.Len(t, day.Buckets[0].Occurrences, 1)
	assert.Len(t, day.Buckets[9].Occurrences, 2)
}

func TestEventsEndpointRejectsHugeWindows(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.get(t, "/api/events?span=2024-02-05T10:00:05")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.NotEmpty(t, body["hint"])
	assert.Equal(t, int32(0), f.hits.Load())
}
