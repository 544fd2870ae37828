package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"indexwatch/internal/checker"
	"indexwatch/internal/models"
)

type checkOptions struct {
	date   string
	target string
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe all targets once and store the run",
		Long: `Probe every target in priority order (YY > YN > NY > NN) and store the
results in the run for the given date, today by default. Re-running a date
overwrites that date's results. With --target only one target is probed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, rootOpts, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.date, "date", "d", "", "run date (YYYY-MM-DD), defaults to today in RUN_TIMEZONE")
	cmd.Flags().StringVarP(&opts.target, "target", "t", "", "probe only this target id")
	return cmd
}

func runCheck(cmd *cobra.Command, rootOpts *RootOptions, opts *checkOptions) error {
	a, err := openApp(cmd.Context(), rootOpts)
	if err != nil {
		return err
	}
	defer a.Close()

	date := opts.date
	if date == "" {
		date = a.svc.Today()
	}
	if err := checker.ValidateRunDate(date); err != nil {
		return WrapExitError(ExitCommandError, "invalid --date", err)
	}
	out := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}

	if opts.target != "" {
		result, err := a.svc.CheckTarget(cmd.Context(), opts.target, date)
		if err != nil {
			return WrapExitError(ExitFailure, "check failed", err)
		}
		return out.print(result, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, describeResult(result))
			return err
		})
	}

	summary, err := a.svc.RunDate(cmd.Context(), date)
	if err != nil {
		return WrapExitError(ExitFailure, "run failed", err)
	}
	if err := out.print(summary, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "run %s: %d/%d results saved\n", summary.RunDate, summary.CheckedCount, summary.TotalTargets)
		return err
	}); err != nil {
		return err
	}
	if summary.CheckedCount < summary.TotalTargets {
		return NewExitError(ExitFailure, fmt.Sprintf("%d results could not be saved", summary.TotalTargets-summary.CheckedCount))
	}
	return nil
}

func describeResult(r *models.RunResult) string {
	s := fmt.Sprintf("%s exposed=%t pdf=%t", r.TargetID, r.FoundExposed, r.IsPDF)
	if r.HTTPStatus != nil {
		s += fmt.Sprintf(" status=%d", *r.HTTPStatus)
	}
	if r.FinalURL != nil {
		s += " final_url=" + *r.FinalURL
	}
	if r.ErrorMessage != nil {
		s += fmt.Sprintf(" error=%q", *r.ErrorMessage)
	}
	return s
}
