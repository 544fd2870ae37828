package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"indexwatch/internal/report"
)

type exportOptions struct {
	date     string
	fileType string
	output   string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a run's result table as xlsx or csv",
		Long: `Write the priority-ordered result table of a run. Without --date the latest
run is exported. Use --output - to write to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, rootOpts, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.date, "date", "d", "", "run date (YYYY-MM-DD), defaults to the latest run")
	cmd.Flags().StringVar(&opts.fileType, "type", "xlsx", "file type (xlsx|csv)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output path, defaults to indexwatch-<date>.<type>")
	return cmd
}

func runExport(cmd *cobra.Command, rootOpts *RootOptions, opts *exportOptions) error {
	var write func(io.Writer, *report.Dashboard) error
	switch opts.fileType {
	case "xlsx":
		write = report.WriteXLSX
	case "csv":
		write = report.WriteCSV
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --type %q: must be xlsx or csv", opts.fileType))
	}

	a, err := openApp(cmd.Context(), rootOpts)
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := newReporter(a).Dashboard(cmd.Context(), opts.date)
	if err != nil {
		return WrapExitError(ExitFailure, "export failed", err)
	}
	if d.RunDate == "" {
		return NewExitError(ExitFailure, "no runs to export")
	}
	if opts.date != "" && d.RunDate != opts.date {
		return NewExitError(ExitFailure, fmt.Sprintf("no run for %s", opts.date))
	}

	if opts.output == "-" {
		return write(cmd.OutOrStdout(), d)
	}
	path := opts.output
	if path == "" {
		path = fmt.Sprintf("indexwatch-%s.%s", d.RunDate, opts.fileType)
	}
	f, err := os.Create(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot create output file", err)
	}
	if err := write(f, d); err != nil {
		f.Close()
		return WrapExitError(ExitFailure, "export failed", err)
	}
	if err := f.Close(); err != nil {
		return WrapExitError(ExitFailure, "export failed", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
	return nil
}
