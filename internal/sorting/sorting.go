// Package sorting expands a named sorting algorithm over a concrete array into
// a full compare/swap trace, and converts traces into sequence IR documents.
package sorting

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/vizgen/internal/ir"
)

// Algorithm names understood by Expand.
const (
	Bubble    = "bubble_sort"
	Selection = "selection_sort"
	Insertion = "insertion_sort"
)

// EventStep is the timestamp increment between sequence events.
const EventStep = 0.2

// MaxReferenceItems caps arrays expanded for a prompt. Every step copies
// the array, so a trace grows with the cube of its length.
const MaxReferenceItems = 16

// Normalize maps loose algorithm names ("Bubble Sort", "insertion") to the
// canonical names. Anything unrecognized becomes Bubble.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer(" ", "_", "-", "_").Replace(n)
	switch {
	case strings.HasPrefix(n, "selection"):
		return Selection
	case strings.HasPrefix(n, "insertion"):
		return Insertion
	default:
		return Bubble
	}
}

// Expand runs the algorithm over a copy of array and records every
// comparison. Each step holds the array state after the step.
func Expand(algorithm string, array []int) ir.SortingTrace {
	algorithm = Normalize(algorithm)
	tr := ir.SortingTrace{
		Algorithm: algorithm,
		Input:     ir.SortingInput{Array: slices.Clone(array)},
		Trace:     []ir.SortStep{},
		Metadata:  map[string]any{"domain": "sorting"},
	}
	a := slices.Clone(array)
	record := func(i, j int, swapped bool) {
		tr.Trace = append(tr.Trace, ir.SortStep{
			Step:    len(tr.Trace) + 1,
			Compare: []int{i, j},
			Swap:    swapped,
			Array:   slices.Clone(a),
		})
	}

	switch algorithm {
	case Selection:
		for i := 0; i < len(a)-1; i++ {
			lo := i
			for j := i + 1; j < len(a); j++ {
				record(lo, j, false)
				if a[j] < a[lo] {
					lo = j
				}
			}
			if lo != i {
				a[i], a[lo] = a[lo], a[i]
				record(i, lo, true)
			}
		}
	case Insertion:
		for i := 1; i < len(a); i++ {
			for j := i; j > 0; j-- {
				swapped := a[j-1] > a[j]
				if swapped {
					a[j-1], a[j] = a[j], a[j-1]
				}
				record(j-1, j, swapped)
				if !swapped {
					break
				}
			}
		}
	default:
		for pass := 0; pass < len(a)-1; pass++ {
			moved := false
			for j := 0; j < len(a)-1-pass; j++ {
				swapped := a[j] > a[j+1]
				if swapped {
					a[j], a[j+1] = a[j+1], a[j]
					moved = true
				}
				record(j, j+1, swapped)
			}
			if !moved {
				break
			}
		}
	}
	return tr
}

// ToSequenceIR converts a trace into a `sequence` document: one component per
// input item (arr0, arr1, ...) centered on a row and, per step, a compare event at T followed by
// a swap event at T+EventStep when the step swapped.
func ToSequenceIR(tr ir.SortingTrace) (ir.Document, error) {
	n := len(tr.Input.Array)
	seq := ir.SequenceIR{
		Pattern:    "sequence",
		Metadata:   map[string]any{"domain": "sorting", "algorithm": tr.Algorithm, "view": "sequence"},
		Sequence:   ir.SequenceShape{NItems: n, ItemSize: 0.8},
		Components: make([]ir.Component, n),
		Events:     []ir.Action{},
	}
	spacing := 1.4
	if n > 0 && float64(n)*spacing > 12 {
		spacing = 12 / float64(n)
	}
	for i, v := range tr.Input.Array {
		x := (float64(i) - float64(n-1)/2) * spacing
		seq.Components[i] = ir.Component{
			ID:     itemID(i),
			Type:   "item",
			Label:  strconv.Itoa(v),
			Value:  v,
			SeqPos: []float64{round(x), 0, 0},
		}
	}

	t := 0.0
	for _, st := range tr.Trace {
		if len(st.Compare) != 2 {
			continue
		}
		from, to := itemID(st.Compare[0]), itemID(st.Compare[1])
		seq.Events = append(seq.Events, ir.Action{T: round(t), Op: "compare", From: from, To: to})
		t += EventStep
		if st.Swap {
			seq.Events = append(seq.Events, ir.Action{T: round(t), Op: "swap", From: from, To: to, Data: st.Array})
			t += EventStep
		}
	}
	return ir.FromValue(seq)
}

func itemID(i int) string { return fmt.Sprintf("arr%d", i) }

// round trims float accumulation noise so timestamps read 0.6, not 0.6000000000000001.
func round(t float64) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(t, 'f', 6, 64), 64)
	return v
}

var arrayPattern = regexp.MustCompile(`\[\s*(-?\d+(?:\s*,\s*-?\d+)*)\s*\]`)

// ArrayFromText extracts the first bracketed integer list from free text,
// e.g. "bubble sort [5, 2, 8, 1]".
func ArrayFromText(text string) ([]int, bool) {
	m := arrayPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	parts := strings.Split(m[1], ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

// AlgorithmFromText guesses the algorithm named in free text.
func AlgorithmFromText(text string) string {
	lower := strings.ToLower(text)
	for _, name := range []string{Selection, Insertion, Bubble} {
		if strings.Contains(lower, strings.TrimSuffix(name, "_sort")) {
			return name
		}
	}
	return Bubble
}
