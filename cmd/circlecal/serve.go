package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"circlecal/internal/ics"
	appLog "circlecal/internal/log"
	"circlecal/internal/refresh"
	"circlecal/internal/web"
)

func serveCmd(root *rootOptions) *cobra.Command {
	var listen string
	var once bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the span and events API and refresh feeds on schedule",
		Long: `Start the HTTP API and the feed refresh scheduler.

Examples:
  circlecal serve --config ./config.yaml
  circlecal serve --listen :9090
  circlecal serve --once`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loc, err := root.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			defer appLog.Sync()

			appLog.Info("effective config",
				"listen", cfg.Listen,
				"timezone", loc.String(),
				"refresh", cfg.RefreshCron,
				"cache_dir", cfg.CacheDir,
				"ics_count", len(cfg.ICS),
			)

			fetcher := ics.NewFetcher(cfg.CacheDir)
			sched := refresh.New(cfg, fetcher, loc)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if once {
				_, err := sched.RunOnce(ctx)
				return err
			}

			srv := web.NewServer(cfg, fetcher)
			sched.OnRefresh = func(int) { srv.InvalidateEvents() }

			// Warm the cache before the first request.
			go func() {
				if _, err := sched.RunOnce(ctx); err != nil {
					appLog.Error("initial refresh failed", err)
				}
			}()
			if err := sched.Start(ctx); err != nil {
				return err
			}
			defer sched.Stop()

			return srv.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	cmd.Flags().BoolVar(&once, "once", false, "refresh all feeds once and exit")
	return cmd
}
