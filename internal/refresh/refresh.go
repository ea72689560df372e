// Package refresh pre-fetches the configured feeds on a cron schedule so
// the fetcher's disk cache stays warm between requests.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"

	"circlecal/internal/config"
	"circlecal/internal/ics"
	appLog "circlecal/internal/log"
)

// Scheduler runs RunOnce on the configured refresh schedule.
type Scheduler struct {
	spec    string
	sources []ics.Source
	fetcher *ics.Fetcher
	cron    *cron.Cron

	// OnRefresh, if set, is called after every run with the number of
	// feeds that produced a body.
	OnRefresh func(fetched int)

	mu      sync.Mutex
	started bool
}

// New builds a Scheduler for cfg's feeds and refresh schedule.
func New(cfg *config.Config, fetcher *ics.Fetcher, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	logger := cronLogger{}
	return &Scheduler{
		spec:    cfg.RefreshCron,
		sources: ics.Sources(cfg.ICS),
		fetcher: fetcher,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
}

// Start schedules refreshes and returns. The scheduler stops when ctx is
// canceled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("refresh: already started")
	}

	if _, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			appLog.Error("refresh run failed", err)
		}
	}); err != nil {
		return errors.WithHint(
			errors.Wrapf(err, "refresh: schedule %q", s.spec),
			"use a five-field cron expression such as */15 * * * * or a descriptor such as @hourly")
	}

	s.cron.Start()
	s.started = true
	appLog.Info("refresh scheduler started", "schedule", s.spec, "feeds", len(s.sources))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	appLog.Info("refresh scheduler stopped")
}

// RunOnce fetches every feed and checks it parses. It returns the number of
// feeds that produced a body and the combined per-feed errors.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	events, fetched, errs := s.fetcher.Collect(ctx, s.sources)

	appLog.Info("refresh completed", "fetched", fetched, "events", len(events), "errors", len(errs))
	if s.OnRefresh != nil {
		s.OnRefresh(fetched)
	}
	return fetched, multierr.Combine(errs...)
}

// cronLogger routes cron's own messages through the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
