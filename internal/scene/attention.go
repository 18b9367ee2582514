package scene

import (
	"fmt"
	"strings"

	"github.com/roach88/vizgen/internal/ir"
)

type attentionToken struct {
	X, Y    float64
	Label   string
	Weight  string
	Stroke  float64
	Opacity float64
	Bar     float64
}

type attentionCandidate struct {
	Label  string
	Weight string
	Bar    float64
}

type attentionData struct {
	Sentence   string
	Radius     float64
	Query      int
	Tokens     []attentionToken
	Candidates []attentionCandidate
}

// Attention renders the query token's attention row: edge thickness,
// opacity and bar height scale with the weight relative to the row maximum.
func Attention(a ir.AttentionIR) (string, error) {
	n := len(a.Tokens)
	if n == 0 {
		return "", fmt.Errorf("scene: attention: no tokens")
	}
	if a.QueryIndex < 0 || a.QueryIndex >= n {
		return "", fmt.Errorf("scene: attention: query_index %d out of range", a.QueryIndex)
	}
	row := a.Weights.Row(a.QueryIndex)
	if len(row) != n {
		return "", fmt.Errorf("scene: attention: %d weights for %d tokens", len(row), n)
	}

	maxW := 0.0
	for _, w := range row {
		maxW = max(maxW, w)
	}
	if maxW <= 0 {
		maxW = 1
	}

	pos, width := RowLayout(n, 1.0, 11, 0.5)
	sentence := a.RawText
	if sentence == "" {
		sentence = strings.Join(a.Tokens, " ")
	}
	data := attentionData{Sentence: sentence, Radius: round(width * 0.45), Query: a.QueryIndex}
	for i, tok := range a.Tokens {
		r := max(row[i], 0) / maxW
		data.Tokens = append(data.Tokens, attentionToken{
			X:       round(pos[i][0]),
			Y:       round(pos[i][1]),
			Label:   tok,
			Weight:  fmt.Sprintf("%.2f", row[i]),
			Stroke:  round(2 + 6*r),
			Opacity: round(0.25 + 0.75*r),
			Bar:     round(0.35 + 1.2*r),
		})
	}

	if nt := a.NextToken; nt != nil && len(nt.Candidates) == len(nt.Probs) {
		for i, c := range nt.Candidates {
			data.Candidates = append(data.Candidates, attentionCandidate{
				Label:  c,
				Weight: fmt.Sprintf("%.2f", nt.Probs[i]),
				Bar:    round(0.1 + 3*clamp(nt.Probs[i], 0, 1)),
			})
		}
	}
	return render("attention.py.tmpl", data)
}
