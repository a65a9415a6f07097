package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/go-porcupine/internal/buildinfo"
	"github.com/tphakala/go-porcupine/internal/conf"
	"github.com/tphakala/go-porcupine/pkg/porcupine"
)

// Command creates the version command reporting build and engine versions.
func Command(build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print the program version and the native engine version, frame length and sample rate.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "porcupine %s\n", build)

			var (
				libraryPath string
				opts        []porcupine.Option
			)
			if settings := conf.GetSettings(); settings != nil {
				libraryPath = settings.Porcupine.LibraryPath
				if len(settings.Porcupine.ResourceDirs) > 0 {
					opts = append(opts, porcupine.WithResourceDirs(settings.Porcupine.ResourceDirs...))
				}
			}

			info, err := porcupine.Info(libraryPath, opts...)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "engine %s\n", info.Version)
			fmt.Fprintf(out, "  library:      %s\n", info.LibraryPath)
			fmt.Fprintf(out, "  frame length: %d samples\n", info.FrameLength)
			fmt.Fprintf(out, "  sample rate:  %d Hz\n", info.SampleRate)
			return nil
		},
	}
}
