package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"circlecal/internal/calendar"
	"circlecal/internal/ics"
	appLog "circlecal/internal/log"
	"circlecal/internal/moment"
)

func eventsCmd(root *rootOptions) *cobra.Command {
	var stops stopFlags
	var at string
	var empty bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the configured feeds' agenda for a span",
		Long: `Fetch every configured feed and print its occurrences grouped into
the sub-spans of a span: a month lists days, a day lists hours.

Examples:
  circlecal events
  circlecal events --span 2024-02
  circlecal events --span 2024-02-12 --empty`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loc, err := root.load()
			if err != nil {
				return err
			}

			var start moment.Moment
			if at != "" {
				start, err = moment.Parse(at)
			} else {
				start, err = cfg.Span(time.Now(), loc)
			}
			if err != nil {
				return err
			}
			window, err := stops.build(start)
			if err != nil {
				return err
			}

			fetcher := ics.NewFetcher(cfg.CacheDir)
			parsed, _, errs := fetcher.Collect(cmd.Context(), ics.Sources(cfg.ICS))
			if len(errs) > 0 {
				appLog.Error("some feeds could not be read", multierr.Combine(errs...), "count", len(errs))
			}

			expanded, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{DisplayLocation: loc, Window: window})
			if err != nil {
				return err
			}
			buckets, err := calendar.Agenda(window, expanded.Occurrences)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", window, loc)
			for _, b := range buckets {
				if len(b.Occurrences) == 0 && !empty {
					continue
				}
				fmt.Fprintln(out, b.Span.Start())
				for _, occ := range b.Occurrences {
					when := "all day"
					if !occ.AllDay {
						when = occ.Start.Format("15:04") + "-" + occ.End.Format("15:04")
					}
					fmt.Fprintf(out, "  %-11s  %s  [%s]\n", when, occ.Summary, occ.SourceID)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "span", "", "span start moment (default: default_span or the current month)")
	stops.register(cmd)
	cmd.Flags().BoolVar(&empty, "empty", false, "also print sub-spans without occurrences")
	return cmd
}
