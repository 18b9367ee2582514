package harness

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/vizgen/internal/ir"
	"github.com/roach88/vizgen/internal/render"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		switch event.Type {
		case "generate":
			fmt.Fprintf(&buf, "  [%d] generate %s #%d valid=%v %v\n", i+1, event.Stage, event.Attempt, *event.Valid, event.Errors)
		case "render":
			fmt.Fprintf(&buf, "  [%d] render #%d %s fallback=%v %s\n", i+1, event.Attempt, event.State, event.Fallback, event.Tag)
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %s", i, err.Error()))
		}
	}
	return errs
}

func evaluate(r *Result, a Assertion) error {
	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Trace: r.Trace}
	}

	switch a.Type {
	case AssertStatus:
		if got := string(r.status()); got != a.Equals {
			return fail(a.Equals, got)
		}
	case AssertDomain:
		if r.Response == nil || r.Response.Domain != a.Equals {
			return fail(a.Equals, responseField(r, func() string { return r.Response.Domain }))
		}
	case AssertPattern:
		if r.Response == nil || r.Response.Pattern != a.Equals {
			return fail(a.Equals, responseField(r, func() string { return r.Response.Pattern }))
		}
	case AssertFallback:
		got := r.Response != nil && r.Response.Fallback
		if strconv.FormatBool(got) != a.Equals {
			return fail(a.Equals, strconv.FormatBool(got))
		}
	case AssertStageAttempts:
		n := 0
		for _, c := range r.Calls {
			if c.Stage == a.Stage {
				n++
			}
		}
		if n != a.Count {
			return fail(fmt.Sprintf("%d %s call(s)", a.Count, a.Stage), fmt.Sprintf("%d", n))
		}
	case AssertTemperatures:
		var got []float64
		for _, c := range r.Calls {
			if c.Stage == a.Stage {
				got = append(got, c.Temperature)
			}
		}
		if !slices.Equal(got, a.Values) {
			return fail(fmt.Sprint(a.Values), fmt.Sprint(got))
		}
	case AssertRenderAttempts:
		if n := len(r.Run.Renders); n != a.Count {
			return fail(fmt.Sprintf("%d render attempt(s)", a.Count), fmt.Sprintf("%d", n))
		}
	case AssertErrorContains:
		issues := r.issues()
		for _, e := range issues {
			if strings.Contains(e, a.Text) {
				return nil
			}
		}
		return fail(fmt.Sprintf("an error containing %q", a.Text), fmt.Sprint(issues))
	case AssertSourceContains:
		for _, src := range r.Sources {
			if src != render.FallbackSource && strings.Contains(src, a.Text) {
				return nil
			}
		}
		return fail(fmt.Sprintf("a rendered source containing %q", a.Text), fmt.Sprintf("%d source(s) without it", len(r.Sources)))
	case AssertFinalArray:
		if r.Response == nil || r.Response.SortingTrace == nil {
			return fail(fmt.Sprint(a.Array), "no sorting trace")
		}
		tr, err := ir.Decode[ir.SortingTrace](r.Response.SortingTrace)
		if err != nil {
			return fail(fmt.Sprint(a.Array), err.Error())
		}
		if got := tr.Final(); !slices.Equal(got, a.Array) {
			return fail(fmt.Sprint(a.Array), fmt.Sprint(got))
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func responseField(r *Result, get func() string) string {
	if r.Response == nil {
		return "no response"
	}
	return get()
}
