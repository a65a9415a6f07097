package file

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tphakala/go-porcupine/internal/analysis"
	"github.com/tphakala/go-porcupine/internal/conf"
	"github.com/tphakala/go-porcupine/internal/errors"
)

// Command creates the file command for detecting keywords in one audio file.
func Command() *cobra.Command {
	var (
		format string
		output string
		quiet  bool
	)

	cmd := &cobra.Command{
		Use:   "file [input.wav|input.flac]",
		Short: "Detect keywords in an audio file",
		Long:  "Run the wake word engine over a WAV or FLAC file and print every detection with its offset.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := analysis.FileOptions{
				Path:   args[0],
				Format: format,
				Output: cmd.OutOrStdout(),
			}
			if !quiet && isatty.IsTerminal(os.Stderr.Fd()) {
				opts.Progress = cmd.ErrOrStderr()
			}
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return errors.New(err).
						Component("cmd").
						Category(errors.CategoryFileIO).
						Context("file", output).
						Build()
				}
				defer f.Close()
				opts.Output = f
			}
			return analysis.FileAnalysis(cmd.Context(), conf.GetSettings(), opts)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", analysis.FormatTable, "Output format: table, csv, json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write results to this file instead of stdout")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not show progress")
	return cmd
}
