package cli

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/vizgen/internal/pipeline"
	"github.com/roach88/vizgen/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Status string
	Limit  int
}

// NewHistoryCommand creates the history command and its show subcommand.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `List runs recorded in the history database, newest first.

The history is a debug record, written only when --db (or db in the
config) is set. It keeps prompts, generated outputs and scene sources
that a normal request discards once it finishes.

Examples:
  vizgen history --db runs.db
  vizgen history --db runs.db --status degraded --limit 5
  vizgen history show <request-id> --db runs.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Status, "status", "", "only runs with this status (ok|degraded|validation_failed|render_failed)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of runs")

	cmd.AddCommand(&cobra.Command{
		Use:           "show <request-id>",
		Short:         "Show one recorded run with its attempts and sources",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(opts, args[0], cmd)
		},
	})
	return cmd
}

var validStatuses = []pipeline.Status{
	pipeline.StatusOK, pipeline.StatusDegraded,
	pipeline.StatusValidationFailed, pipeline.StatusRenderFailed,
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	status := pipeline.Status(opts.Status)
	if status != "" && !slices.Contains(validStatuses, status) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid status %q: must be one of %v", opts.Status, validStatuses))
	}

	st, err := openHistory(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.Recent(cmd.Context(), store.Filter{Status: status, Limit: opts.Limit})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}

	if opts.Format == "json" {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}
	writeSummaries(formatter.Writer, runs)
	return nil
}

func runHistoryShow(opts *HistoryOptions, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := openHistory(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.Run(cmd.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		if ferr := formatter.Error(ErrCodeNotFound, fmt.Sprintf("run %s not found", id), nil); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	if opts.Format == "json" {
		return formatter.Success(run)
	}
	writeRun(formatter.Writer, run, opts.Verbose)
	return nil
}

func writeSummaries(w io.Writer, runs []store.Summary) {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "REQUEST\tMODE\tSTATUS\tDOMAIN\tPATTERN\tTOKENS\tSTARTED\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.RequestID, r.Mode, r.Status, dash(r.Domain), dash(r.Pattern), r.Tokens,
			r.StartedAt.Local().Format(time.DateTime), r.Duration.Round(time.Millisecond))
	}
	_ = tw.Flush()
}

func writeRun(w io.Writer, run pipeline.RunRecord, verbose bool) {
	fmt.Fprintf(w, "Request:  %s (%s)\n", run.RequestID, run.Mode)
	fmt.Fprintf(w, "Input:    %s\n", run.Text)
	fmt.Fprintf(w, "Status:   %s\n", run.Status)
	if run.Domain != "" {
		fmt.Fprintf(w, "Domain:   %s\n", run.Domain)
		fmt.Fprintf(w, "Pattern:  %s\n", run.Pattern)
	}
	if run.VideoPath != "" {
		fmt.Fprintf(w, "Video:    %s (fallback: %t)\n", run.VideoPath, run.Fallback)
	}
	fmt.Fprintf(w, "Tokens:   %d\n", run.Usage.TotalTokens)
	fmt.Fprintf(w, "Duration: %s\n", run.Duration.Round(time.Millisecond))

	if len(run.Attempts) > 0 {
		fmt.Fprintln(w, "Attempts:")
		for _, a := range run.Attempts {
			mark := "✓"
			if !a.Valid() {
				mark = "✗"
			}
			fmt.Fprintf(w, "  %s %s #%d t=%.1f\n", mark, a.Stage, a.Index, a.Temperature)
			if a.ParseError != "" {
				fmt.Fprintf(w, "      %s\n", a.ParseError)
			}
			for _, e := range a.Errors {
				fmt.Fprintf(w, "      %s\n", e)
			}
		}
	}
	if len(run.Renders) > 0 {
		fmt.Fprintln(w, "Renders:")
		for _, r := range run.Renders {
			fmt.Fprintf(w, "  #%d %s", r.Index, r.State)
			if r.Failure != nil {
				fmt.Fprintf(w, " [%s] %s", r.Failure.Tag, r.Failure.Message)
			}
			fmt.Fprintln(w)
		}
	}
	writeErrors(w, run.Errors)
	if verbose {
		for _, s := range run.Sources {
			fmt.Fprintf(w, "--- %s ---\n%s\n", s.Kind, s.Text)
		}
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
