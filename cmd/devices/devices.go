package devices

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/go-porcupine/internal/myaudio"
)

// Command creates the devices command listing capture devices.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio capture devices",
		Long:  "List the capture devices that can be used as the realtime audio source.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sources, err := myaudio.ListAudioSources()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tNAME\tID\tDEFAULT")
			for _, s := range sources {
				def := ""
				if s.IsDefault {
					def = "*"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Index, s.Name, s.ID, def)
			}
			return tw.Flush()
		},
	}
}
