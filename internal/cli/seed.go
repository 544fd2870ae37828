package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"indexwatch/internal/seed"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed <targets.yaml>",
		Short: "Load targets and past runs from a YAML file",
		Long: `Upsert the targets listed in the file and import any runs it carries.
Runs that already have results are skipped unless --force is given, in which
case their results are replaced. Existing notes are kept when the file has none.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.LoadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid seed file", err)
			}

			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := seed.Apply(cmd.Context(), a.store, f, seed.Options{Force: force})
			if err != nil {
				return WrapExitError(ExitFailure, "seed failed", err)
			}
			out := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			return out.print(sum, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "targets: %d\nruns imported: %d (skipped %d)\nresults: %d (skipped %d)\n",
					sum.Targets, sum.RunsImported, sum.RunsSkipped, sum.Results, sum.ResultsSkipped)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace results of runs that already exist")
	return cmd
}
