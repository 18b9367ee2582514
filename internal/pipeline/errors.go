package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/vizgen/internal/validate"
)

// ErrEmptyText is returned when a request carries no text.
var ErrEmptyText = errors.New("pipeline: request text is empty")

// StageError is a validated stage that exhausted its attempt budget.
type StageError struct {
	// Stage names the failed stage (e.g. "pseudocode").
	Stage string

	// Attempts is how many generations were tried.
	Attempts int

	// Errors is the last attempt's full error list.
	Errors validate.Errors
}

// Error implements the error interface.
func (e *StageError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pipeline: stage %s failed after %d attempts", e.Stage, e.Attempts)
	if len(e.Errors) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Errors.Strings(), "; "))
	}
	return b.String()
}

// IsStageError reports whether err is (or wraps) a StageError.
func IsStageError(err error) bool {
	var se *StageError
	return errors.As(err, &se)
}

// StageErrors returns the error list carried by a wrapped StageError.
func StageErrors(err error) validate.Errors {
	var se *StageError
	if errors.As(err, &se) {
		return se.Errors
	}
	return nil
}
