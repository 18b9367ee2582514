package ir

import (
	"encoding/json"
	"fmt"
)

// Component is one entity of a variant document (`components` or `nodes`).
type Component struct {
	ID       string    `json:"id"`
	Type     string    `json:"type,omitempty"`
	Label    string    `json:"label,omitempty"`
	Position []float64 `json:"position,omitempty"`
	GridPos  []float64 `json:"grid_pos,omitempty"`
	SeqPos   []float64 `json:"seq_pos,omitempty"`
	Value    any       `json:"value,omitempty"`
	Color    string    `json:"color,omitempty"`
}

// Action is one timed operation of a variant document (`actions` or `events`).
type Action struct {
	T      float64 `json:"t"`
	Op     string  `json:"op,omitempty"`
	Type   string  `json:"type,omitempty"`
	From   string  `json:"from,omitempty"`
	To     string  `json:"to,omitempty"`
	Target string  `json:"target,omitempty"`
	Data   any     `json:"data,omitempty"`
}

// SequenceIR is the typed view of a `sequence` variant as produced by the
// sorting fast path.
type SequenceIR struct {
	Pattern    string         `json:"pattern"`
	Metadata   map[string]any `json:"metadata"`
	Sequence   SequenceShape  `json:"sequence"`
	Components []Component    `json:"components"`
	Events     []Action       `json:"events"`
}

// SequenceShape carries the sequence layout hints.
type SequenceShape struct {
	NItems   int     `json:"n_items"`
	ItemSize float64 `json:"item_size,omitempty"`
}

// AttentionIR is the typed view of a `seq_attention` variant.
type AttentionIR struct {
	PatternType string           `json:"pattern_type,omitempty"`
	Pattern     string           `json:"pattern,omitempty"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
	RawText     string           `json:"raw_text,omitempty"`
	Tokens      []string         `json:"tokens"`
	Weights     AttentionWeights `json:"weights"`
	QueryIndex  int              `json:"query_index"`
	NextToken   *NextToken       `json:"next_token,omitempty"`
}

// NextToken holds next-token candidates and their probabilities.
type NextToken struct {
	Candidates []string  `json:"candidates"`
	Probs      []float64 `json:"probs"`
}

// AttentionWeights holds either one weight per token (Flat) or a full
// token-by-token matrix (Matrix). Exactly one is non-nil after decoding.
type AttentionWeights struct {
	Flat   []float64
	Matrix [][]float64
}

// Row returns the weights the query token assigns to every token.
// For a matrix that is the row at query; a flat list is returned as is.
func (w AttentionWeights) Row(query int) []float64 {
	if w.Matrix != nil {
		if query < 0 || query >= len(w.Matrix) {
			return nil
		}
		return w.Matrix[query]
	}
	return w.Flat
}

func (w AttentionWeights) MarshalJSON() ([]byte, error) {
	if w.Matrix != nil {
		return json.Marshal(w.Matrix)
	}
	if w.Flat == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(w.Flat)
}

func (w *AttentionWeights) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("weights: %w", err)
	}
	if len(raw) == 0 {
		w.Flat = []float64{}
		return nil
	}
	if len(raw[0]) > 0 && raw[0][0] == '[' {
		return json.Unmarshal(data, &w.Matrix)
	}
	return json.Unmarshal(data, &w.Flat)
}

// SortingTrace is the specialized document for the sorting domain.
type SortingTrace struct {
	Algorithm string         `json:"algorithm"`
	Input     SortingInput   `json:"input"`
	Trace     []SortStep     `json:"trace"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SortingInput is the array the trace starts from.
type SortingInput struct {
	Array []int `json:"array"`
}

// SortStep is one compare (and optional swap) of a sorting trace.
// Array is the full state after the step.
type SortStep struct {
	Step    int   `json:"step"`
	Compare []int `json:"compare,omitempty"`
	Swap    bool  `json:"swap"`
	Array   []int `json:"array"`
}

// Final returns the last array state, or the input when the trace is empty.
func (s SortingTrace) Final() []int {
	if len(s.Trace) == 0 {
		return s.Input.Array
	}
	return s.Trace[len(s.Trace)-1].Array
}

// CNNDocument is the specialized document for the cnn_param domain.
type CNNDocument struct {
	IR        CNNIR  `json:"ir"`
	Basename  string `json:"basename,omitempty"`
	OutFormat string `json:"out_format,omitempty"`
}

// CNNIR wraps the convolution parameters.
type CNNIR struct {
	Metadata map[string]any `json:"metadata,omitempty"`
	Params   CNNParams      `json:"params"`
}

// CNNParams describes a single convolution over a square input.
type CNNParams struct {
	InputSize  int `json:"input_size"`
	KernelSize int `json:"kernel_size"`
	Stride     int `json:"stride"`
	Padding    int `json:"padding"`
	Seed       int `json:"seed,omitempty"`
}

// OutputSize returns the side length of the feature map.
func (p CNNParams) OutputSize() int {
	if p.Stride <= 0 {
		return 0
	}
	return (p.InputSize+2*p.Padding-p.KernelSize)/p.Stride + 1
}
