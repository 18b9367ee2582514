package validate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vizgen/internal/ir"
)

func mustDoc(t *testing.T, text string) ir.Document {
	t.Helper()
	doc, err := ir.ParseDocument(text)
	require.NoError(t, err)
	return doc
}

// minimal holds one hand-built valid document per kind.
var minimal = map[ir.Kind]string{
	ir.KindGrid: `{
		"pattern": "grid",
		"metadata": {"domain": "dynamic_programming"},
		"grid": {"n_rows": 2, "n_cols": 2, "cell_size": 0.5},
		"components": [
			{"id": "c00", "type": "cell", "grid_pos": [0, 0, 0], "value": 1},
			{"id": "c01", "type": "cell", "grid_pos": [0, 1, 0], "value": 1}
		],
		"actions": [
			{"t": 0, "op": "highlight", "target": "c00"},
			{"t": 0.5, "op": "compute", "from": "c00", "to": "c01"}
		]
	}`,
	ir.KindSequence: `{
		"pattern": "sequence",
		"metadata": {"domain": "sorting"},
		"sequence": {"n_items": 2, "item_size": 0.8},
		"components": [{"id": "arr0", "label": "5"}, {"id": "arr1", "label": "2"}],
		"events": [
			{"t": 0.0, "op": "compare", "from": "arr0", "to": "arr1"},
			{"t": 0.2, "op": "swap", "from": "arr0", "to": "arr1"}
		]
	}`,
	ir.KindFlow: `{
		"pattern": "flow",
		"metadata": {"domain": "cache"},
		"flow": {"direction": "right"},
		"nodes": [{"id": "in", "type": "stage"}, {"id": "out", "type": "stage", "position": [2, 0, 0]}],
		"actions": [{"t": 1, "op": "move", "from": "in", "to": "out"}]
	}`,
	ir.KindGraph: `{
		"pattern": "graph",
		"metadata": {"domain": "graph_traversal"},
		"nodes": [{"id": "a"}, {"id": "b"}],
		"edges": [{"from": "a", "to": "b", "weight": 2}],
		"directed": true,
		"events": [{"t": 0, "op": "visit", "target": "a"}]
	}`,
	ir.KindSeqAttention: `{
		"pattern_type": "seq_attention",
		"raw_text": "I want to play",
		"tokens": ["I", "want", "to", "play"],
		"weights": [0.1, 0.2, 0.3, 0.4],
		"query_index": 3,
		"next_token": {"candidates": ["games", "music"], "probs": [0.6, 0.4]}
	}`,
	ir.KindHashTable: `{
		"pattern": "hash_table",
		"metadata": {"domain": "hash_table"},
		"components": [{"id": "b0", "type": "bucket"}, {"id": "k1", "type": "key"}],
		"buckets": {"b0": ["k1"]}
	}`,
	ir.KindPseudocode: `{
		"metadata": {"title": "Swap"},
		"entities": [{"id": "arr", "type": "array"}, {"id": "i", "type": "index"}],
		"operations": [
			{"step": 1, "subject": "arr", "action": "create"},
			{"step": 2, "subject": "i", "action": "move", "target": "arr", "description": null}
		]
	}`,
	ir.KindAnimation: `{
		"metadata": {"domain": "generic", "title": "Demo"},
		"layout": [{"id": "box", "shape": "Rectangle", "position": [0, 0, 0], "color": "DARK_BLUE"}],
		"actions": [
			{"step": 1, "target": "box", "animation": "fade_in"},
			{"step": 2, "target": "box", "animation": "fade_out"}
		]
	}`,
	ir.KindSortingTrace: `{
		"algorithm": "bubble_sort",
		"input": {"array": [2, 1]},
		"trace": [{"step": 1, "compare": [0, 1], "swap": true, "array": [1, 2]}]
	}`,
	ir.KindCNNParam: `{
		"ir": {"metadata": {"domain": "cnn_param"}, "params": {"input_size": 5, "kernel_size": 3, "stride": 1, "padding": 0, "seed": 1}},
		"basename": "cnn_forward_param",
		"out_format": "mp4"
	}`,
}

// ---------------------------------------------------------------------------
// Soundness: minimal documents pass
// ---------------------------------------------------------------------------

func TestMinimalDocumentsPass(t *testing.T) {
	for _, kind := range Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			src, ok := minimal[kind]
			require.True(t, ok, "no minimal document for %s", kind)
			errs := ValidateKind(kind, mustDoc(t, src))
			assert.Empty(t, errs, errs.Strings())
		})
	}
}

func TestValidateDispatchesOnDiscriminator(t *testing.T) {
	for _, kind := range ir.VariantKinds {
		t.Run(string(kind), func(t *testing.T) {
			errs := Validate(mustDoc(t, minimal[kind]))
			assert.Empty(t, errs, errs.Strings())
		})
	}
}

func TestValidateUnsupportedDiscriminator(t *testing.T) {
	errs := Validate(ir.Document{"components": []any{}})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedKind, errs[0].Code)
	assert.Equal(t, "pattern", errs[0].Field)

	errs = Validate(ir.Document{"pattern_type": "heatmap"})
	require.Len(t, errs, 1)
	assert.Equal(t, "pattern_type", errs[0].Field)
	assert.Contains(t, errs[0].Message, "heatmap")

	// Stage kinds are not discriminated variants.
	errs = Validate(ir.Document{"pattern": "pseudocode"})
	assert.True(t, errs.HasCode(ErrUnsupportedKind))
}

// ---------------------------------------------------------------------------
// Structural layer
// ---------------------------------------------------------------------------

func TestStructuralMissingField(t *testing.T) {
	doc := mustDoc(t, minimal[ir.KindGrid])
	delete(doc, "grid")

	errs := Validate(doc)
	require.NotEmpty(t, errs)
	assert.True(t, errs.HasCode(ErrMissingField), errs.Strings())
	assert.Equal(t, "grid", errs[0].Field)
}

func TestStructuralAliasPair(t *testing.T) {
	doc := mustDoc(t, minimal[ir.KindSequence])
	delete(doc, "components")

	errs := Validate(doc)
	require.NotEmpty(t, errs)
	assert.Equal(t, ErrMissingField, errs[0].Code)
	assert.Contains(t, errs[0].Message, "components or nodes")
}

func TestStructuralTypeMismatch(t *testing.T) {
	doc := mustDoc(t, minimal[ir.KindSequence])
	doc.Items("components")[1]["id"] = 7.0

	errs := Validate(doc)
	require.NotEmpty(t, errs)
	assert.Equal(t, ErrTypeMismatch, errs[0].Code)
	assert.Equal(t, "components[1].id", errs[0].Field)
}

func TestStructuralSkipsInvariants(t *testing.T) {
	// Both a type error and a duplicate id: only the structural error is reported.
	doc := mustDoc(t, minimal[ir.KindGrid])
	comps := doc.Items("components")
	comps[1]["id"] = "c00"
	doc["grid"].(map[string]any)["n_rows"] = "two"

	errs := Validate(doc)
	require.NotEmpty(t, errs)
	assert.True(t, errs.Structural())
	assert.False(t, errs.HasCode(ErrDuplicateID))
}

func TestStructuralCNNBounds(t *testing.T) {
	doc := mustDoc(t, `{"ir": {"params": {"input_size": 5, "kernel_size": 0, "stride": 1, "padding": 0}}}`)

	errs := ValidateKind(ir.KindCNNParam, doc)
	require.NotEmpty(t, errs)
	assert.Equal(t, "ir.params.kernel_size", errs[0].Field)
}

func TestStructuralSizeCaps(t *testing.T) {
	countdown := func(n int) []any {
		out := make([]any, n)
		for i := range out {
			out[i] = float64(n - i)
		}
		return out
	}

	tests := []struct {
		name   string
		kind   ir.Kind
		mutate func(ir.Document)
		field  string
	}{
		{
			name: "cnn input too large",
			kind: ir.KindCNNParam,
			mutate: func(d ir.Document) {
				d["ir"].(map[string]any)["params"].(map[string]any)["input_size"] = 100000.0
			},
			field: "ir.params.input_size",
		},
		{
			name: "cnn padding too large",
			kind: ir.KindCNNParam,
			mutate: func(d ir.Document) {
				d["ir"].(map[string]any)["params"].(map[string]any)["padding"] = 50.0
			},
			field: "ir.params.padding",
		},
		{
			name: "sorting input too long",
			kind: ir.KindSortingTrace,
			mutate: func(d ir.Document) {
				d["input"].(map[string]any)["array"] = countdown(33)
			},
			field: "input.array",
		},
		{
			name: "sorting trace too long",
			kind: ir.KindSortingTrace,
			mutate: func(d ir.Document) {
				step := d.Items("trace")[0]
				steps := make([]any, 1025)
				for i := range steps {
					steps[i] = step
				}
				d["trace"] = steps
			},
			field: "trace",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustDoc(t, minimal[tt.kind])
			tt.mutate(doc)

			errs := ValidateKind(tt.kind, doc)
			require.NotEmpty(t, errs)
			assert.True(t, errs.Structural(), errs.Strings())
			assert.Equal(t, tt.field, errs[0].Field, errs.Strings())
		})
	}
}

func TestStructuralOpenShapes(t *testing.T) {
	doc := mustDoc(t, minimal[ir.KindFlow])
	doc["unexpected"] = map[string]any{"anything": true}
	doc.Items("nodes")[0]["style"] = "bold"

	assert.Empty(t, Validate(doc))
}

// ---------------------------------------------------------------------------
// Invariant layer: one mutation per rule
// ---------------------------------------------------------------------------

func TestInvariantViolations(t *testing.T) {
	tests := []struct {
		name   string
		kind   ir.Kind
		mutate func(ir.Document)
		code   string
		field  string
	}{
		{
			name: "duplicate id",
			kind: ir.KindGrid,
			mutate: func(d ir.Document) {
				d.Items("components")[1]["id"] = "c00"
			},
			code:  ErrDuplicateID,
			field: "components[1].id",
		},
		{
			name: "dangling reference",
			kind: ir.KindSequence,
			mutate: func(d ir.Document) {
				d.Items("events")[1]["to"] = "arr9"
			},
			code:  ErrDanglingRef,
			field: "events[1].to",
		},
		{
			name: "decreasing timestamp",
			kind: ir.KindSequence,
			mutate: func(d ir.Document) {
				d.Items("events")[1]["t"] = -1.0
			},
			code:  ErrOrder,
			field: "events[1].t",
		},
		{
			name: "graph edge to unknown node",
			kind: ir.KindGraph,
			mutate: func(d ir.Document) {
				d.Items("edges")[0]["to"] = "z"
			},
			code:  ErrDanglingRef,
			field: "edges[0].to",
		},
		{
			name: "position not a 3-tuple",
			kind: ir.KindFlow,
			mutate: func(d ir.Document) {
				d.Items("nodes")[1]["position"] = []any{2.0, 0.0}
			},
			code:  ErrPositionArity,
			field: "nodes[1].position",
		},
		{
			name: "query_index out of range",
			kind: ir.KindSeqAttention,
			mutate: func(d ir.Document) {
				d["query_index"] = 4.0
			},
			code:  ErrIndexRange,
			field: "query_index",
		},
		{
			name: "query_index beyond int64",
			kind: ir.KindSeqAttention,
			mutate: func(d ir.Document) {
				d["query_index"] = 1e20
			},
			code:  ErrIndexRange,
			field: "query_index",
		},
		{
			name: "mismatched row lengths",
			kind: ir.KindSeqAttention,
			mutate: func(d ir.Document) {
				d["weights"] = []any{
					[]any{1.0, 0.0, 0.0, 0.0},
					[]any{0.5, 0.5, 0.0, 0.0},
					[]any{0.3, 0.3, 0.4},
					[]any{0.25, 0.25, 0.25, 0.25},
				}
			},
			code:  ErrWeightsShape,
			field: "weights[2]",
		},
		{
			name: "one row per token",
			kind: ir.KindSeqAttention,
			mutate: func(d ir.Document) {
				d["weights"] = []any{[]any{1.0}}
			},
			code:  ErrWeightsShape,
			field: "weights",
		},
		{
			name: "next_token lengths differ",
			kind: ir.KindSeqAttention,
			mutate: func(d ir.Document) {
				d["next_token"].(map[string]any)["probs"] = []any{1.0}
			},
			code:  ErrLengthMismatch,
			field: "next_token.probs",
		},
		{
			name: "pseudocode subject unknown",
			kind: ir.KindPseudocode,
			mutate: func(d ir.Document) {
				d.Items("operations")[0]["subject"] = "ghost"
			},
			code:  ErrDanglingRef,
			field: "operations[0].subject",
		},
		{
			name: "pseudocode steps decrease",
			kind: ir.KindPseudocode,
			mutate: func(d ir.Document) {
				d.Items("operations")[1]["step"] = 0.0
			},
			code:  ErrOrder,
			field: "operations[1].step",
		},
		{
			name: "animation outside vocabulary",
			kind: ir.KindAnimation,
			mutate: func(d ir.Document) {
				d.Items("actions")[0]["animation"] = "explode"
			},
			code:  ErrUnknownAnimation,
			field: "actions[0].animation",
		},
		{
			name: "sorting state not a permutation",
			kind: ir.KindSortingTrace,
			mutate: func(d ir.Document) {
				d.Items("trace")[0]["array"] = []any{1.0, 3.0}
			},
			code:  ErrNotPermutation,
			field: "trace[0].array",
		},
		{
			name: "sorting compare out of range",
			kind: ir.KindSortingTrace,
			mutate: func(d ir.Document) {
				d.Items("trace")[0]["compare"] = []any{0.0, 2.0}
			},
			code:  ErrCompareRange,
			field: "trace[0].compare",
		},
		{
			name: "sorting final state unsorted",
			kind: ir.KindSortingTrace,
			mutate: func(d ir.Document) {
				d.Items("trace")[0]["array"] = []any{2.0, 1.0}
				d.Items("trace")[0]["swap"] = false
			},
			code:  ErrNotSorted,
			field: "trace",
		},
		{
			name: "kernel larger than padded input",
			kind: ir.KindCNNParam,
			mutate: func(d ir.Document) {
				d["ir"].(map[string]any)["params"].(map[string]any)["kernel_size"] = 7.0
			},
			code:  ErrKernelTooLarge,
			field: "ir.params.kernel_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustDoc(t, minimal[tt.kind])
			tt.mutate(doc)

			errs := ValidateKind(tt.kind, doc)
			require.NotEmpty(t, errs)
			assert.False(t, errs.Structural(), "expected invariant errors only: %v", errs.Strings())

			var found bool
			for _, e := range errs {
				if e.Code == tt.code && e.Field == tt.field {
					found = true
				}
			}
			assert.True(t, found, "want %s at %s, got %v", tt.code, tt.field, errs.Strings())
		})
	}
}

func TestInvariantsIgnoreGeometryAndColor(t *testing.T) {
	doc := mustDoc(t, minimal[ir.KindAnimation])
	doc.Items("layout")[0]["position"] = []any{40.0, -99.0, 0.0}
	doc.Items("layout")[0]["color"] = "#ff00ff"

	assert.Empty(t, ValidateKind(ir.KindAnimation, doc))
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "events[1].t", Message: "bad", Code: ErrOrder}
	assert.Equal(t, "[E303] events[1].t: bad", e.Error())
	assert.Equal(t, []string{"[E303] events[1].t: bad"}, Errors{e}.Strings())
}

func TestValidateConcurrentCalls(t *testing.T) {
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, kind := range ir.VariantKinds {
				doc, err := ir.ParseDocument(minimal[kind])
				if !assert.NoError(t, err) {
					return
				}
				assert.Empty(t, Validate(doc))
			}
		}()
	}
	wg.Wait()
}
