package keywords

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/go-porcupine/internal/bundle"
	"github.com/tphakala/go-porcupine/internal/conf"
	"github.com/tphakala/go-porcupine/pkg/porcupine"
)

// Command creates the keywords command listing built-in keywords.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "keywords",
		Short: "List built-in keywords",
		Long:  "List the built-in keywords and the keyword file each one resolves to on this platform.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var dirs []string
			if settings := conf.GetSettings(); settings != nil {
				dirs = settings.Porcupine.ResourceDirs
			}
			res := bundle.New(bundle.WithDirs(dirs...))
			platform := bundle.Platform()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEYWORD\tFILE")
			for _, k := range porcupine.BuiltInKeywords {
				path, err := res.KeywordPath(k.FileName(platform))
				if err != nil {
					path = "(not found: " + k.FileName(platform) + ")"
				}
				fmt.Fprintf(tw, "%s\t%s\n", k, path)
			}
			return tw.Flush()
		},
	}
}
