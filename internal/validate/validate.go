// Package validate checks IR documents in two layers.
//
// The structural layer unifies the document with a CUE definition for its
// kind and reports missing fields and primitive type mismatches. The
// invariant layer runs only when the structural layer found nothing, and
// checks cross-field rules: unique ids, resolvable references, ordered
// timelines and a few per-kind shape constraints.
//
// Geometry ranges and color names are never checked here. The scene
// templates clamp positions and the sanitizer rewrites colors, so rejecting
// those would only throw away renderable output.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/vizgen/internal/ir"
)

// Validation error codes.
const (
	// General (E100)
	ErrUnsupportedKind = "E100" // missing or unknown discriminator

	// Structural (E201-E209)
	ErrMissingField = "E201" // required field absent
	ErrTypeMismatch = "E202" // primitive type mismatch
	ErrShape        = "E203" // bound or list arity violated

	// Invariants (E301-E319)
	ErrDuplicateID      = "E301"
	ErrDanglingRef      = "E302"
	ErrOrder            = "E303" // timestamps or steps decrease
	ErrPositionArity    = "E304" // spatial position is not a 3-tuple
	ErrIndexRange       = "E305"
	ErrWeightsShape     = "E306"
	ErrLengthMismatch   = "E307"
	ErrUnknownAnimation = "E308"
	ErrNotPermutation   = "E309"
	ErrCompareRange     = "E310"
	ErrNotSorted        = "E311"
	ErrKernelTooLarge   = "E312"

	// Generation (E400)
	ErrParse      = "E400" // generated text did not decode
	ErrGeneration = "E401" // generative service call failed
)

// ValidationError is a single violation with a path-like locator.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Errors is an ordered list of violations. Empty means valid.
type Errors []ValidationError

// Strings renders each violation for feedback prompts and responses.
func (es Errors) Strings() []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Error()
	}
	return out
}

// Structural reports whether any violation came from the structural layer.
func (es Errors) Structural() bool {
	for _, e := range es {
		if strings.HasPrefix(e.Code, "E2") || e.Code == ErrUnsupportedKind {
			return true
		}
	}
	return false
}

// HasCode reports whether any violation carries code.
func (es Errors) HasCode(code string) bool {
	for _, e := range es {
		if e.Code == code {
			return true
		}
	}
	return false
}

// Validate checks a variant document, dispatching on its discriminator.
func Validate(doc ir.Document) Errors {
	kind := ir.Kind(doc.Discriminator())
	if !kind.IsVariant() {
		field := "pattern"
		if _, ok := doc["pattern_type"]; ok {
			field = "pattern_type"
		}
		msg := "discriminator is missing"
		if kind != "" {
			msg = fmt.Sprintf("unsupported pattern %q", string(kind))
		}
		return Errors{{Field: field, Message: msg, Code: ErrUnsupportedKind}}
	}
	return ValidateKind(kind, doc)
}

// ValidateKind checks doc against the rules for kind, ignoring any
// discriminator the document carries. Stage documents use this directly.
func ValidateKind(kind ir.Kind, doc ir.Document) Errors {
	if !kind.Known() {
		return Errors{{Field: "kind", Message: fmt.Sprintf("unsupported kind %q", string(kind)), Code: ErrUnsupportedKind}}
	}
	if doc == nil {
		return Errors{{Field: "$", Message: "document is empty", Code: ErrMissingField}}
	}

	errs := structural(kind, doc)
	if len(errs) > 0 {
		return errs
	}
	return invariants(kind, doc)
}

// Kinds returns every kind a validator exists for, sorted.
func Kinds() []ir.Kind {
	out := append([]ir.Kind{}, ir.VariantKinds...)
	out = append(out, ir.StageKinds...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
