package validate

import (
	"fmt"
	"math"
	"slices"

	"github.com/roach88/vizgen/internal/ir"
)

// Animations the code generation prompt and scene builders understand.
var Animations = []string{
	"fade_in", "move", "highlight", "swap", "fade_out", "create", "transform", "indicate",
}

// spatialKeys are component fields that must be 3-tuples when present.
var spatialKeys = []string{"position", "grid_pos", "seq_pos"}

// invariants assumes the structural layer passed, so type assertions on
// required fields hold. Optional fields are still checked before use.
func invariants(kind ir.Kind, doc ir.Document) Errors {
	switch kind {
	case ir.KindGrid, ir.KindSequence, ir.KindFlow, ir.KindHashTable:
		return checkCommon(doc)
	case ir.KindGraph:
		errs := checkCommon(doc)
		items, _ := entities(doc)
		ids := idSet(items)
		for i, e := range doc.Items("edges") {
			for _, k := range []string{"from", "to"} {
				errs = append(errs, checkRef(ids, e, k, fmt.Sprintf("edges[%d]", i))...)
			}
		}
		return errs
	case ir.KindSeqAttention:
		return append(checkCommon(doc), checkAttention(doc)...)
	case ir.KindPseudocode:
		return checkPseudocode(doc)
	case ir.KindAnimation:
		return checkAnimation(doc)
	case ir.KindSortingTrace:
		return checkSortingTrace(doc)
	case ir.KindCNNParam:
		return checkCNN(doc)
	}
	return nil
}

// entities returns the entity list and the key it was found under.
func entities(doc ir.Document) ([]map[string]any, string) {
	if _, ok := doc["components"]; ok {
		return doc.Items("components"), "components"
	}
	return doc.Items("nodes"), "nodes"
}

func timeline(doc ir.Document) ([]map[string]any, string) {
	if _, ok := doc["actions"]; ok {
		return doc.Items("actions"), "actions"
	}
	return doc.Items("events"), "events"
}

func idSet(items []map[string]any) map[string]bool {
	ids := make(map[string]bool, len(items))
	for _, it := range items {
		if id, ok := it["id"].(string); ok {
			ids[id] = true
		}
	}
	return ids
}

// checkCommon covers unique ids, references, ordering and 3-tuple positions.
func checkCommon(doc ir.Document) Errors {
	var errs Errors

	items, ekey := entities(doc)
	errs = append(errs, checkUnique(items, "id", ekey)...)
	for i, c := range items {
		for _, k := range spatialKeys {
			if p, ok := c[k].([]any); ok && len(p) != 3 {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s[%d].%s", ekey, i, k),
					Message: fmt.Sprintf("position must have exactly 3 coordinates, got %d", len(p)),
					Code:    ErrPositionArity,
				})
			}
		}
	}

	ids := idSet(items)
	acts, akey := timeline(doc)
	for i, a := range acts {
		for _, k := range []string{"from", "to", "target"} {
			errs = append(errs, checkRef(ids, a, k, fmt.Sprintf("%s[%d]", akey, i))...)
		}
	}
	errs = append(errs, checkOrder(acts, "t", akey)...)
	return errs
}

func checkUnique(items []map[string]any, key, listKey string) Errors {
	var errs Errors
	first := map[string]int{}
	for i, it := range items {
		id, ok := it[key].(string)
		if !ok {
			continue
		}
		if j, dup := first[id]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s[%d].%s", listKey, i, key),
				Message: fmt.Sprintf("duplicate id %q (first at %s[%d])", id, listKey, j),
				Code:    ErrDuplicateID,
			})
			continue
		}
		first[id] = i
	}
	return errs
}

// checkRef reports item[key] when it is a string that names no id.
// Absent and null references are fine.
func checkRef(ids map[string]bool, item map[string]any, key, at string) Errors {
	ref, ok := item[key].(string)
	if !ok || ids[ref] {
		return nil
	}
	return Errors{{
		Field:   at + "." + key,
		Message: fmt.Sprintf("references unknown id %q", ref),
		Code:    ErrDanglingRef,
	}}
}

// checkOrder reports every element whose key value is below its predecessor.
func checkOrder(items []map[string]any, key, listKey string) Errors {
	var errs Errors
	prev := math.Inf(-1)
	for i, it := range items {
		v, ok := number(it[key])
		if !ok {
			continue
		}
		if v < prev {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s[%d].%s", listKey, i, key),
				Message: fmt.Sprintf("%s %v is less than previous %v; sequence must be non-decreasing", key, v, prev),
				Code:    ErrOrder,
			})
		}
		prev = v
	}
	return errs
}

func checkAttention(doc ir.Document) Errors {
	var errs Errors
	tokens, _ := doc["tokens"].([]any)
	n := len(tokens)

	// Compared as float64: int(q) overflows for huge JSON numbers.
	if q, ok := number(doc["query_index"]); ok && (q < 0 || q >= float64(n)) {
		errs = append(errs, ValidationError{
			Field:   "query_index",
			Message: fmt.Sprintf("query_index %v out of range for %d tokens", q, n),
			Code:    ErrIndexRange,
		})
	}

	weights, _ := doc["weights"].([]any)
	rows, flat := 0, 0
	for _, w := range weights {
		if _, ok := w.([]any); ok {
			rows++
		} else {
			flat++
		}
	}
	switch {
	case rows > 0 && flat > 0:
		errs = append(errs, ValidationError{
			Field:   "weights",
			Message: "weights must be all numbers or all rows, not a mix",
			Code:    ErrWeightsShape,
		})
	case rows > 0:
		if rows != n {
			errs = append(errs, ValidationError{
				Field:   "weights",
				Message: fmt.Sprintf("2-D weights need one row per token: %d rows for %d tokens", rows, n),
				Code:    ErrWeightsShape,
			})
		}
		width := len(weights[0].([]any))
		for i, w := range weights[1:] {
			if l := len(w.([]any)); l != width {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("weights[%d]", i+1),
					Message: fmt.Sprintf("row has %d entries, row 0 has %d", l, width),
					Code:    ErrWeightsShape,
				})
			}
		}
	default:
		if flat != n {
			errs = append(errs, ValidationError{
				Field:   "weights",
				Message: fmt.Sprintf("flat weights need one entry per token: %d for %d tokens", flat, n),
				Code:    ErrWeightsShape,
			})
		}
	}

	if nt, ok := doc["next_token"].(map[string]any); ok {
		c, _ := nt["candidates"].([]any)
		p, _ := nt["probs"].([]any)
		if len(c) != len(p) {
			errs = append(errs, ValidationError{
				Field:   "next_token.probs",
				Message: fmt.Sprintf("%d probs for %d candidates", len(p), len(c)),
				Code:    ErrLengthMismatch,
			})
		}
	}
	return errs
}

func checkPseudocode(doc ir.Document) Errors {
	ents := doc.Items("entities")
	errs := checkUnique(ents, "id", "entities")
	ids := idSet(ents)
	ops := doc.Items("operations")
	for i, op := range ops {
		at := fmt.Sprintf("operations[%d]", i)
		errs = append(errs, checkRef(ids, op, "subject", at)...)
		errs = append(errs, checkRef(ids, op, "target", at)...)
	}
	return append(errs, checkOrder(ops, "step", "operations")...)
}

func checkAnimation(doc ir.Document) Errors {
	layout := doc.Items("layout")
	errs := checkUnique(layout, "id", "layout")
	for i, it := range layout {
		if p, ok := it["position"].([]any); ok && len(p) != 3 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("layout[%d].position", i),
				Message: fmt.Sprintf("position must have exactly 3 coordinates, got %d", len(p)),
				Code:    ErrPositionArity,
			})
		}
	}
	ids := idSet(layout)
	acts := doc.Items("actions")
	for i, a := range acts {
		at := fmt.Sprintf("actions[%d]", i)
		errs = append(errs, checkRef(ids, a, "target", at)...)
		if name, _ := a["animation"].(string); !slices.Contains(Animations, name) {
			errs = append(errs, ValidationError{
				Field:   at + ".animation",
				Message: fmt.Sprintf("unknown animation %q; use one of %v", name, Animations),
				Code:    ErrUnknownAnimation,
			})
		}
	}
	return append(errs, checkOrder(acts, "step", "actions")...)
}

func checkSortingTrace(doc ir.Document) Errors {
	tr, err := ir.Decode[ir.SortingTrace](doc)
	if err != nil {
		return Errors{{Field: "$", Message: err.Error(), Code: ErrTypeMismatch}}
	}

	var errs Errors
	want := slices.Clone(tr.Input.Array)
	slices.Sort(want)
	n := len(tr.Input.Array)

	for i, st := range tr.Trace {
		at := fmt.Sprintf("trace[%d]", i)
		got := slices.Clone(st.Array)
		slices.Sort(got)
		if !slices.Equal(got, want) {
			errs = append(errs, ValidationError{
				Field:   at + ".array",
				Message: fmt.Sprintf("state %v is not a permutation of input %v", st.Array, tr.Input.Array),
				Code:    ErrNotPermutation,
			})
		}
		for _, idx := range st.Compare {
			if idx < 0 || idx >= n {
				errs = append(errs, ValidationError{
					Field:   at + ".compare",
					Message: fmt.Sprintf("index %d out of range for %d items", idx, n),
					Code:    ErrCompareRange,
				})
			}
		}
	}
	errs = append(errs, checkOrder(doc.Items("trace"), "step", "trace")...)

	if final := tr.Final(); !slices.IsSorted(final) {
		errs = append(errs, ValidationError{
			Field:   "trace",
			Message: fmt.Sprintf("final state %v is not sorted ascending", final),
			Code:    ErrNotSorted,
		})
	}
	return errs
}

func checkCNN(doc ir.Document) Errors {
	d, err := ir.Decode[ir.CNNDocument](doc)
	if err != nil {
		return Errors{{Field: "$", Message: err.Error(), Code: ErrTypeMismatch}}
	}
	p := d.IR.Params
	if padded := p.InputSize + 2*p.Padding; p.KernelSize > padded {
		return Errors{{
			Field:   "ir.params.kernel_size",
			Message: fmt.Sprintf("kernel %d does not fit padded input %d", p.KernelSize, padded),
			Code:    ErrKernelTooLarge,
		}}
	}
	return nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
