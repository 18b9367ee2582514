package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vizgen/internal/ir"
	"github.com/roach88/vizgen/internal/sorting"
	"github.com/roach88/vizgen/internal/validate"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Sequence bool // print the derived sequence IR instead of the trace
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <algorithm> <array>",
		Short: "Expand a sorting algorithm into its compare/swap trace",
		Long: `Run bubble, selection or insertion sort locally and print every
comparison. Unknown algorithm names fall back to bubble sort. The trace is
checked with the sorting_trace validator before it is printed.

Examples:
  vizgen trace bubble "[5, 2, 8, 1]"
  vizgen trace insertion 3,1,2 --sequence --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], args[1], cmd)
		},
	}
	cmd.Flags().BoolVar(&opts.Sequence, "sequence", false, "print the sequence IR derived from the trace")
	return cmd
}

func runTrace(opts *TraceOptions, algorithm, array string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	values, ok := parseArray(array)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid array %q: want integers like [5, 2, 8, 1]", array))
	}

	tr := sorting.Expand(algorithm, values)
	doc, err := ir.FromValue(tr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode trace", err)
	}
	if errs := validate.ValidateKind(ir.KindSortingTrace, doc); len(errs) > 0 {
		return WrapExitError(ExitFailure, "expanded trace is invalid", errors.New(strings.Join(errs.Strings(), "; ")))
	}
	formatter.VerboseLog("%s: %d step(s)", tr.Algorithm, len(tr.Trace))

	if opts.Sequence {
		seq, err := sorting.ToSequenceIR(tr)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to build sequence IR", err)
		}
		if opts.Format == "json" {
			return formatter.Success(seq)
		}
		fmt.Fprintln(formatter.Writer, seq.Indent())
		return nil
	}

	if opts.Format == "json" {
		return formatter.Success(tr)
	}
	writeTrace(formatter.Writer, tr)
	return nil
}

// parseArray accepts "[5, 2, 8]" or "5,2,8".
func parseArray(s string) ([]int, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		s = "[" + s + "]"
	}
	return sorting.ArrayFromText(s)
}

func writeTrace(w io.Writer, tr ir.SortingTrace) {
	fmt.Fprintf(w, "%s %v\n", tr.Algorithm, tr.Input.Array)
	for _, st := range tr.Trace {
		action := "keep"
		if st.Swap {
			action = "swap"
		}
		fmt.Fprintf(w, "  %3d  compare %v  %-4s  %v\n", st.Step, st.Compare, action, st.Array)
	}
	fmt.Fprintf(w, "final %v\n", tr.Final())
}
