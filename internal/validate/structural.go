package validate

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/vizgen/internal/ir"
)

//go:embed schemas.cue
var schemaSource string

// definitions maps each kind to its CUE definition.
var definitions = map[ir.Kind]string{
	ir.KindGrid:         "#Grid",
	ir.KindSequence:     "#Sequence",
	ir.KindFlow:         "#Flow",
	ir.KindGraph:        "#Graph",
	ir.KindSeqAttention: "#SeqAttention",
	ir.KindHashTable:    "#HashTable",
	ir.KindPseudocode:   "#Pseudocode",
	ir.KindAnimation:    "#Animation",
	ir.KindSortingTrace: "#SortingTrace",
	ir.KindCNNParam:     "#CNNParam",
}

// aliasPair is a pair of keys where exactly one spelling is expected.
type aliasPair struct{ a, b string }

var (
	entityKeys   = aliasPair{"components", "nodes"}
	timelineKeys = aliasPair{"actions", "events"}
)

// requiredPairs lists alias pairs each variant must carry.
var requiredPairs = map[ir.Kind][]aliasPair{
	ir.KindGrid:      {entityKeys, timelineKeys},
	ir.KindSequence:  {entityKeys, timelineKeys},
	ir.KindFlow:      {entityKeys, timelineKeys},
	ir.KindGraph:     {entityKeys},
	ir.KindHashTable: {entityKeys},
}

// structural runs the CUE layer plus alias-pair presence checks.
// A fresh cue.Context is built per call; contexts are not safe to share
// between concurrent requests.
func structural(kind ir.Kind, doc ir.Document) Errors {
	var errs Errors

	for _, p := range requiredPairs[kind] {
		_, hasA := doc[p.a]
		_, hasB := doc[p.b]
		if !hasA && !hasB {
			errs = append(errs, ValidationError{
				Field:   p.a,
				Message: fmt.Sprintf("one of %s or %s is required", p.a, p.b),
				Code:    ErrMissingField,
			})
		}
	}

	raw, err := doc.Bytes()
	if err != nil {
		return append(errs, ValidationError{Field: "$", Message: err.Error(), Code: ErrTypeMismatch})
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schemas.cue"))
	if schema.Err() != nil {
		// The schema is embedded; failing to compile it is a build defect.
		panic(fmt.Sprintf("validate: compile schemas.cue: %v", schema.Err()))
	}
	def := schema.LookupPath(cue.ParsePath(definitions[kind]))

	expr, err := cuejson.Extract(string(kind)+".json", raw)
	if err != nil {
		return append(errs, ValidationError{Field: "$", Message: err.Error(), Code: ErrTypeMismatch})
	}
	data := ctx.BuildExpr(expr)
	if data.Err() != nil {
		return append(errs, fromCUE(data.Err())...)
	}

	unified := def.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		errs = append(errs, fromCUE(err)...)
	}
	return dedupe(errs)
}

// fromCUE flattens a CUE error tree into validation errors.
func fromCUE(err error) Errors {
	var out Errors
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		out = append(out, ValidationError{
			Field:   fieldPath(e.Path()),
			Message: msg,
			Code:    codeFor(msg),
		})
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Field: "$", Message: err.Error(), Code: ErrShape})
	}
	return out
}

// fieldPath renders CUE selectors as `components[0].id`.
// Leading definition selectors are dropped.
func fieldPath(sel []string) string {
	for len(sel) > 0 && strings.HasPrefix(sel[0], "#") {
		sel = sel[1:]
	}
	if len(sel) == 0 {
		return "$"
	}
	var b strings.Builder
	for i, s := range sel {
		if _, err := strconv.Atoi(s); err == nil {
			b.WriteString("[" + s + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s)
	}
	return b.String()
}

func codeFor(msg string) string {
	switch {
	case strings.Contains(msg, "required"):
		return ErrMissingField
	case strings.Contains(msg, "mismatched types"),
		strings.Contains(msg, "conflicting values"),
		strings.Contains(msg, "disjunction"):
		return ErrTypeMismatch
	default:
		return ErrShape
	}
}

func dedupe(errs Errors) Errors {
	seen := make(map[string]bool, len(errs))
	out := errs[:0]
	for _, e := range errs {
		key := e.Code + "\x00" + e.Field + "\x00" + e.Message
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
