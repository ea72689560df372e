package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/multierr"

	"circlecal/internal/calendar"
	"circlecal/internal/config"
	"circlecal/internal/ics"
	appLog "circlecal/internal/log"
	"circlecal/internal/span"
	"circlecal/internal/unit"
)

const (
	eventsCacheTTL = 30 * time.Second
	// maxSubSpans bounds the sub-span list and week days in /api/span and the
	// bucket count in /api/events.
	maxSubSpans = 1000
)

// Server provides the HTTP API over spans and the configured feeds.
type Server struct {
	cfg     *config.Config
	loc     *time.Location
	fetcher *ics.Fetcher
	mux     *http.ServeMux
	now     func() time.Time

	// Expanded /api/events responses keyed by window.
	eventsMu    sync.RWMutex
	eventsCache map[string]*eventsCache
}

// eventsCache holds a cached /api/events response and its timestamp.
type eventsCache struct {
	resp      eventsResponse
	updatedAt time.Time
}

// NewServer constructs a new Server. Feeds are fetched through fetcher.
func NewServer(cfg *config.Config, fetcher *ics.Fetcher) *Server {
	s := &Server{
		cfg:         cfg,
		loc:         resolveLocationOrLocal(cfg),
		fetcher:     fetcher,
		mux:         http.NewServeMux(),
		now:         time.Now,
		eventsCache: make(map[string]*eventsCache),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Serve listens on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "web: listen")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "web: shutdown")
	}
	appLog.Info("HTTP server stopped")
	return nil
}

// InvalidateEvents drops all cached /api/events responses.
func (s *Server) InvalidateEvents() {
	s.eventsMu.Lock()
	clear(s.eventsCache)
	s.eventsMu.Unlock()
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="circlecal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/span", s.handleSpan)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleSpan describes a span and its sub-spans.
//
// GET /api/span?at=2024-02[&stop=2024-05|&duration=36h|&period=P1M]
func (s *Server) handleSpan(w http.ResponseWriter, r *http.Request) {
	sp, err := s.spanFromQuery(r, "at")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp := spanResponse{spanDTO: newSpanDTO(sp)}
	n := sp.Len()
	resp.SubSpans = make([]spanDTO, 0, min(n, maxSubSpans))
	for i, sub := range sp.Indexed() {
		if i == maxSubSpans {
			resp.Truncated = true
			break
		}
		resp.SubSpans = append(resp.SubSpans, newSpanDTO(sub))
	}
	// Week rows list every day, so they share the sub-span bound.
	if !sp.Unit().IsFinerThan(unit.Month) {
		if sp.Count(unit.Day) < maxSubSpans {
			resp.Weeks = calendar.Weeks(sp, calendar.ParseWeekday(s.cfg.WeekStart))
		} else {
			resp.Truncated = true
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEvents returns the configured feeds' occurrences within a span,
// grouped into its sub-spans.
//
// GET /api/events?span=2024-02[&stop=…|&duration=…|&period=…]
//
// Without span, the configured default_span or the current month is used.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	window, err := s.spanFromQuery(r, "span")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if window.Len() > maxSubSpans {
		writeError(w, http.StatusBadRequest,
			errors.WithHintf(errors.Newf("span %s has %d sub-spans", window, window.Len()),
				"request at most %d buckets, e.g. a coarser span", maxSubSpans))
		return
	}

	key := window.String()
	now := s.now()

	s.eventsMu.RLock()
	ec := s.eventsCache[key]
	s.eventsMu.RUnlock()
	if ec != nil && now.Sub(ec.updatedAt) < eventsCacheTTL {
		writeJSON(w, http.StatusOK, ec.resp)
		return
	}

	appLog.Info("api events request", "span", key, "timezone", s.loc.String())

	resp, err := s.buildEvents(r.Context(), window)
	if err != nil {
		appLog.Error("api events: build failed", err, "span", key)
		writeError(w, http.StatusInternalServerError, errors.New("failed to expand events"))
		return
	}

	s.eventsMu.Lock()
	for k, e := range s.eventsCache {
		if now.Sub(e.updatedAt) >= eventsCacheTTL {
			delete(s.eventsCache, k)
		}
	}
	s.eventsCache[key] = &eventsCache{resp: resp, updatedAt: now}
	s.eventsMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) buildEvents(ctx context.Context, window span.Span) (eventsResponse, error) {
	resp := eventsResponse{
		Span:            newSpanDTO(window),
		DisplayTimeZone: s.loc.String(),
		WeekStart:       s.cfg.WeekStart,
	}

	var parsed []ics.ParsedEvent
	if sources := ics.Sources(s.cfg.ICS); len(sources) > 0 {
		var errs []error
		parsed, _, errs = s.fetcher.Collect(ctx, sources)
		if len(errs) > 0 {
			appLog.Error("api events: one or more feeds failed", multierr.Combine(errs...), "error_count", len(errs))
		}
	}

	expanded, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{
		DisplayLocation: s.loc,
		Window:          window,
	})
	if err != nil {
		return resp, err
	}
	resp.TruncatedUIDs = expanded.TruncatedEvents

	buckets, err := calendar.Agenda(window, expanded.Occurrences)
	if err != nil {
		return resp, err
	}
	resp.Buckets = make([]bucketDTO, 0, len(buckets))
	for _, b := range buckets {
		dto := bucketDTO{
			Start:       b.Span.Start().String(),
			Stop:        b.Span.Stop().String(),
			Occurrences: make([]occurrenceDTO, 0, len(b.Occurrences)),
		}
		for _, occ := range b.Occurrences {
			dto.Occurrences = append(dto.Occurrences, newOccurrenceDTO(occ))
		}
		resp.Buckets = append(resp.Buckets, dto)
	}
	return resp, nil
}

func resolveLocationOrLocal(cfg *config.Config) *time.Location {
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", cfg.Timezone)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	type errResp struct {
		Error string `json:"error"`
		Hint  string `json:"hint,omitempty"`
	}
	writeJSON(w, status, errResp{Error: err.Error(), Hint: errors.FlattenHints(err)})
}
