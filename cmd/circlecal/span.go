package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"circlecal/internal/calendar"
	"circlecal/internal/moment"
	"circlecal/internal/span"
)

// stopFlags are the mutually exclusive ways to end a span on the command
// line.
type stopFlags struct {
	stop     string
	duration string
	period   string
}

func (f *stopFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.stop, "stop", "", "explicit stop moment, e.g. 2024-05")
	cmd.Flags().StringVar(&f.duration, "duration", "", "stop after a duration, e.g. 36h")
	cmd.Flags().StringVar(&f.period, "period", "", "stop after an ISO-8601 period, e.g. P1M")
	cmd.MarkFlagsMutuallyExclusive("stop", "duration", "period")
}

func (f *stopFlags) build(start moment.Moment) (span.Span, error) {
	opts, err := span.ParseOptions(f.stop, f.duration, f.period)
	if err != nil {
		return span.Span{}, err
	}
	return span.New(start, opts...)
}

func spanCmd() *cobra.Command {
	var stops stopFlags
	var days bool
	var limit int

	cmd := &cobra.Command{
		Use:   "span <moment>",
		Short: "Show a span and its sub-spans",
		Long: `Show the span starting at a moment and how it divides.

A moment is an ISO-8601 prefix: 2024, 2024-02, 2024-02-29T13:05 and so on.
Without a stop flag the span covers one step at the moment's own precision.

Examples:
  circlecal span 2024
  circlecal span 2024-02 --days
  circlecal span 2024-01-15 --period P6W
  circlecal span 2024-03-10T22 --duration 5h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := moment.Parse(args[0])
			if err != nil {
				return err
			}
			s, err := stops.build(start)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s unit=%s len=%d end=%s\n", s, s.Unit(), s.Len(), s.End().Format("2006-01-02T15:04:05.000000"))

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			if days {
				for _, d := range calendar.Days(s) {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", d.Ordinal, d.Date, d.WeekdayName, d.MonthName)
				}
				return w.Flush()
			}
			for i, sub := range s.Indexed() {
				if limit > 0 && i == limit {
					fmt.Fprintf(w, "...\t%d more\n", s.Len()-limit)
					break
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", i, sub.Start(), sub.Stop())
			}
			return w.Flush()
		},
	}

	stops.register(cmd)
	cmd.Flags().BoolVar(&days, "days", false, "list calendar days instead of sub-spans")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum sub-spans to list (0 for all)")
	return cmd
}
