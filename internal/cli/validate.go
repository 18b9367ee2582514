package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/vizgen/internal/ir"
	"github.com/roach88/vizgen/internal/validate"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Kind string
}

// ValidationResult holds validation results.
type ValidationResult struct {
	File   string                     `json:"file"`
	Kind   string                     `json:"kind"`
	Valid  bool                       `json:"valid"`
	Errors []validate.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <file.json>",
		Short: "Validate an IR document offline",
		Long: `Check an IR document against the structural schema and cross-field
invariants for its kind. Variant documents are dispatched on their
pattern discriminator; stage documents need --kind.

Kinds: grid, sequence, flow, graph, seq_attention, hash_table,
       pseudocode, animation, sorting_trace, cnn_param

Examples:
  vizgen validate anim.json --kind animation
  vizgen validate ir.json --format json
  cat trace.json | vizgen validate - --kind sorting_trace`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVarP(&opts.Kind, "kind", "k", "", "document kind (default: from the pattern discriminator)")
	return cmd
}

func runValidate(opts *ValidateOptions, file string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if opts.Kind != "" && !ir.Kind(opts.Kind).Known() {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("unknown kind %q: must be one of %v", opts.Kind, validate.Kinds()))
	}

	data, err := readDocument(file, cmd.InOrStdin())
	if err != nil {
		return err
	}
	formatter.VerboseLog("Read %d bytes from %s", len(data), file)

	doc, err := ir.ParseDocument(string(data))
	if err != nil {
		result := ValidationResult{
			File: file,
			Kind: opts.Kind,
			Errors: []validate.ValidationError{{
				Field:   "$",
				Message: err.Error(),
				Code:    validate.ErrParse,
			}},
		}
		return outputValidation(formatter, result)
	}

	var errs validate.Errors
	kind := opts.Kind
	if kind != "" {
		errs = validate.ValidateKind(ir.Kind(kind), doc)
	} else {
		kind = doc.Discriminator()
		errs = validate.Validate(doc)
	}

	return outputValidation(formatter, ValidationResult{
		File:   file,
		Kind:   kind,
		Valid:  len(errs) == 0,
		Errors: errs,
	})
}

func readDocument(file string, stdin io.Reader) ([]byte, error) {
	if file == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read stdin", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read document", err)
	}
	return data, nil
}

func outputValidation(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		if result.Valid {
			if err := formatter.Success(result); err != nil {
				return err
			}
		} else if err := formatter.Error(ErrCodeValidation,
			fmt.Sprintf("%d validation error(s)", len(result.Errors)), result); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		if result.Valid {
			fmt.Fprintf(w, "✓ %s is a valid %s document\n", result.File, result.Kind)
		} else {
			fmt.Fprintf(w, "✗ %s: %d error(s)\n", result.File, len(result.Errors))
			for _, e := range result.Errors {
				fmt.Fprintf(w, "  %s\n", e.Error())
			}
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%s failed validation", result.File))
	}
	return nil
}
