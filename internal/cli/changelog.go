package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"indexwatch/internal/diff"
)

// NewChangelogCommand creates the changelog command.
func NewChangelogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "changelog",
		Short: "Show what changed in each run",
		Long: `Compare every run with the run before it. The first run is compared with
the answer set. Dates without changes are omitted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			changes, err := newReporter(a).Changelog(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "changelog failed", err)
			}
			out := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			return out.print(changes, func(w io.Writer) error {
				return writeChangelog(w, changes)
			})
		},
	}
}

func writeChangelog(w io.Writer, changes map[string][]diff.TargetDiff) error {
	if len(changes) == 0 {
		_, err := fmt.Fprintln(w, "no changes")
		return err
	}
	dates := make([]string, 0, len(changes))
	for date := range changes {
		dates = append(dates, date)
	}
	slices.Sort(dates)

	for _, date := range dates {
		if _, err := fmt.Fprintln(w, date); err != nil {
			return err
		}
		for _, td := range changes[date] {
			for _, d := range td.Diffs {
				if _, err := fmt.Fprintf(w, "  %s\t%s: %v -> %v\n", td.TargetID, d.Field, show(d.OldValue), show(d.NewValue)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func show(v any) any {
	if v == nil {
		return "null"
	}
	return v
}
