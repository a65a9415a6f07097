package history

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/go-porcupine/internal/analysis"
	"github.com/tphakala/go-porcupine/internal/conf"
	"github.com/tphakala/go-porcupine/internal/datastore"
	"github.com/tphakala/go-porcupine/internal/errors"
)

// Command creates the history command reading stored detections.
func Command() *cobra.Command {
	var (
		limit   int
		format  string
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show stored detections",
		Long:  "Print recent detections from the detection database, or per-keyword totals with --summary.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings := conf.GetSettings()
			if !settings.Database.Enabled {
				return errors.Newf("detection database is not enabled; set database.enabled in the config").
					Component("cmd").
					Category(errors.CategoryConfiguration).
					Build()
			}
			if limit < 1 {
				return errors.Newf("limit must be at least 1, got %d", limit).
					Component("cmd").
					Category(errors.CategoryValidation).
					Build()
			}

			store, err := datastore.New(&settings.Database)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if summary {
				counts, err := store.CountByKeyword(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "KEYWORD\tDETECTIONS")
				for _, c := range counts {
					fmt.Fprintf(tw, "%s\t%d\n", c.Keyword, c.Count)
				}
				return tw.Flush()
			}

			detections, err := store.Recent(ctx, limit)
			if err != nil {
				return err
			}
			return analysis.WriteDetections(out, format, detections)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of detections to show")
	cmd.Flags().StringVarP(&format, "format", "f", analysis.FormatTable, "Output format: table, csv, json")
	cmd.Flags().BoolVar(&summary, "summary", false, "Show detection totals per keyword")

	return cmd
}
