package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vizgen/internal/pipeline"
)

// GenerateOptions holds flags for the generate and baseline commands.
type GenerateOptions struct {
	*RootOptions
	File string
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate [text...]",
		Short: "Turn a description into an animation",
		Long: `Classify the text, build and validate the staged IR documents, generate
scene source and render it. Falls back to a known-good scene when every
render attempt fails.

Exit codes:
  0 - rendered
  1 - an IR stage failed validation
  2 - command error
  3 - degraded (fallback scene rendered)
  4 - nothing rendered

Examples:
  vizgen generate "show bubble sort on [5, 2, 8, 1]"
  vizgen generate --file request.txt --format json
  echo "explain a hash table" | vizgen generate -`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, args, cmd)
		},
	}
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read the request text from a file")
	return cmd
}

// NewBaselineCommand creates the baseline command.
func NewBaselineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "baseline [text...]",
		Short: "Single-shot text to scene source, for comparison",
		Long: `Generate scene source in one call with no IR stages, render it once
and report the outcome. There is no retry and no fallback.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBaseline(opts, args, cmd)
		},
	}
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read the request text from a file")
	return cmd
}

func runGenerate(opts *GenerateOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	text, err := readText(args, opts.File, cmd.InOrStdin())
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.coord.Run(cmd.Context(), text)
	if resp == nil {
		return requestError(err)
	}

	if opts.Format == "json" {
		if err := formatter.Result(resp.RequestID, resp.Status, resp); err != nil {
			return err
		}
	} else {
		writeResponse(formatter.Writer, resp)
	}
	return statusError(resp.Status, resp.Errors)
}

func runBaseline(opts *GenerateOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	text, err := readText(args, opts.File, cmd.InOrStdin())
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.coord.Baseline(cmd.Context(), text)
	if err != nil {
		return requestError(err)
	}

	if opts.Format == "json" {
		if err := formatter.Result(resp.RequestID, resp.Status, resp); err != nil {
			return err
		}
	} else {
		writeBaseline(formatter.Writer, resp)
	}
	return statusError(resp.Status, nil)
}

// statusError turns a finished request into the command's exit status.
func statusError(status pipeline.Status, errs []string) error {
	code := ExitCodeFor(status)
	if code == ExitSuccess {
		return nil
	}
	msg := string(status)
	if len(errs) > 0 {
		msg = fmt.Sprintf("%s: %s", status, errs[0])
	}
	return NewExitError(code, msg)
}

func writeResponse(w io.Writer, resp *pipeline.Response) {
	fmt.Fprintf(w, "Request:  %s\n", resp.RequestID)
	fmt.Fprintf(w, "Status:   %s\n", resp.Status)
	fmt.Fprintf(w, "Domain:   %s\n", resp.Domain)
	fmt.Fprintf(w, "Pattern:  %s\n", resp.Pattern)
	if resp.VideoPath != "" {
		label := "Video:"
		if resp.Fallback {
			label = "Fallback:"
		}
		fmt.Fprintf(w, "%-9s %s\n", label, resp.VideoPath)
	}
	if resp.DebugCodePath != "" {
		fmt.Fprintf(w, "Source:   %s\n", resp.DebugCodePath)
	}
	writeAttempts(w, resp)
	fmt.Fprintf(w, "Tokens:   %d (%d ms)\n", resp.Stats.Usage.TotalTokens, resp.Stats.DurationMS)
	writeErrors(w, resp.Errors)
}

func writeAttempts(w io.Writer, resp *pipeline.Response) {
	if len(resp.RenderAttempts) == 0 {
		return
	}
	states := make([]string, len(resp.RenderAttempts))
	for i, a := range resp.RenderAttempts {
		states[i] = fmt.Sprintf("#%d %s", a.Index, a.State)
	}
	fmt.Fprintf(w, "Renders:  %s\n", strings.Join(states, ", "))
}

func writeBaseline(w io.Writer, resp *pipeline.BaselineResponse) {
	fmt.Fprintf(w, "Request:  %s\n", resp.RequestID)
	fmt.Fprintf(w, "Status:   %s\n", resp.Status)
	if resp.VideoPath != "" {
		fmt.Fprintf(w, "Video:    %s\n", resp.VideoPath)
	}
	if resp.DebugCodePath != "" {
		fmt.Fprintf(w, "Source:   %s\n", resp.DebugCodePath)
	}
	fmt.Fprintf(w, "Tokens:   %d (%d ms)\n", resp.Tokens.TotalTokens, resp.DurationMS)
	if len(resp.Issues) > 0 {
		fmt.Fprintln(w, "Issues:")
		for _, issue := range resp.Issues {
			fmt.Fprintf(w, "  - %s\n", issue)
		}
	}
}

func writeErrors(w io.Writer, errs []string) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintln(w, "Errors:")
	for _, e := range errs {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}
