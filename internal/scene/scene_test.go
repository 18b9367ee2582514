package scene

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vizgen/internal/ir"
	"github.com/roach88/vizgen/internal/sanitize"
	"github.com/roach88/vizgen/internal/sorting"
)

func TestClampPosition(t *testing.T) {
	tests := []struct {
		in   []float64
		want [3]float64
	}{
		{[]float64{1, 2, 0}, [3]float64{1, 2, 0}},
		{[]float64{-20, 9, 1}, [3]float64{XMin, YMax, 1}},
		{[]float64{7}, [3]float64{XMax, 0, 0}},
		{nil, [3]float64{}},
		{[]float64{0, -3.6, 0, 99}, [3]float64{0, YMin, 0}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampPosition(tt.in), "%v", tt.in)
	}
}

func TestColorName(t *testing.T) {
	assert.Equal(t, "TEAL", ColorName("cyan"))
	assert.Equal(t, "BLUE_B", ColorName("LIGHT_BLUE"))
	assert.Equal(t, "RED", ColorName(" red "))
	assert.Equal(t, "GOLD_E", ColorName("GOLD_E"))
	assert.Equal(t, sanitize.SafeColor, ColorName("#ff0000"))
	assert.Equal(t, sanitize.SafeColor, ColorName("light blue"))
	assert.Equal(t, sanitize.SafeColor, ColorName(""))
}

func TestRowLayout(t *testing.T) {
	pos, width := RowLayout(3, 1, 12, 0)
	assert.Equal(t, 1.0, width)
	require.Len(t, pos, 3)
	assert.InDelta(t, -1.1, pos[0][0], 1e-9)
	assert.InDelta(t, 0, pos[1][0], 1e-9)
	assert.InDelta(t, 1.1, pos[2][0], 1e-9)

	pos, width = RowLayout(40, 1.2, 12, 5)
	assert.InDelta(t, 0.3, width, 1e-9)
	for _, p := range pos {
		assert.GreaterOrEqual(t, p[0], XMin)
		assert.LessOrEqual(t, p[0], XMax)
		assert.Equal(t, YMax, p[1], "y is clamped into the frame")
	}

	pos, _ = RowLayout(0, 1, 12, 0)
	assert.Empty(t, pos)
}

func TestSorting(t *testing.T) {
	tr := sorting.Expand("bubble", []int{5, 2, 8, 1})
	doc, err := sorting.ToSequenceIR(tr)
	require.NoError(t, err)
	seq, err := ir.Decode[ir.SequenceIR](doc)
	require.NoError(t, err)

	src, err := Sorting(seq)
	require.NoError(t, err)

	assert.Empty(t, sanitize.Check(src), src)
	assert.Equal(t, src, sanitize.Sanitize(src))
	assert.Contains(t, src, `Text("Bubble Sort"`)
	assert.Equal(t, 4, strings.Count(src, "Circle(radius="))

	swaps, compares := 0, 0
	for _, e := range seq.Events {
		switch e.Op {
		case "swap":
			swaps++
		case "compare":
			compares++
		}
	}
	assert.Equal(t, 4, swaps)
	assert.Equal(t, swaps, strings.Count(src, "animate.move_to(pj)"))
	assert.Equal(t, 2*compares, strings.Count(src, "animate.shift(UP * 0.25)"))
}

func TestSortingKeepsClampedPositionsAndColors(t *testing.T) {
	seq := ir.SequenceIR{
		Components: []ir.Component{
			{ID: "a", Label: "3", SeqPos: []float64{-30, 0, 0}, Color: "CYAN"},
			{ID: "b", Value: 1},
		},
		Events: []ir.Action{
			{T: 0, Op: "compare", From: "a", To: "b"},
			{T: 0.2, Op: "swap", From: "a", To: "ghost"},
		},
	}
	src, err := Sorting(seq)
	require.NoError(t, err)
	assert.Contains(t, src, "color=TEAL, fill_opacity=0.6).move_to([-6.5, 0, 0])")
	assert.Contains(t, src, `Text("1"`)
	assert.NotContains(t, src, "move_to(pj)", "unresolved events are dropped")

	_, err = Sorting(ir.SequenceIR{})
	assert.Error(t, err)
}

func TestCNN(t *testing.T) {
	p := ir.CNNParams{InputSize: 4, KernelSize: 3, Stride: 1, Padding: 1, Seed: 7}
	a, err := CNN(p)
	require.NoError(t, err)
	b, err := CNN(p)
	require.NoError(t, err)
	assert.Equal(t, a, b, "same params render the same source")
	assert.Empty(t, sanitize.Check(a), a)
	assert.Contains(t, a, "total, k, out, stride, pad = 6, 3, 4, 1, 1")
	assert.Contains(t, a, "for i, j in [[0,0],[0,1],")
	assert.Contains(t, a, "for i, j in []", "16 patches are all animated")

	p.Seed = 8
	c, err := CNN(p)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	big, err := CNN(ir.CNNParams{InputSize: 6, KernelSize: 3, Stride: 1, Padding: 1})
	require.NoError(t, err)
	assert.Contains(t, big, "[3,4],[3,5]", "patches past the animation cap are listed for the bulk reveal")

	_, err = CNN(ir.CNNParams{InputSize: 2, KernelSize: 5, Stride: 1})
	assert.Error(t, err)
	_, err = CNN(ir.CNNParams{InputSize: 2, KernelSize: 1})
	assert.Error(t, err)
	_, err = CNN(ir.CNNParams{InputSize: 100000, KernelSize: 3, Stride: 1})
	assert.ErrorContains(t, err, "exceeds 48")
}

func TestConvolve(t *testing.T) {
	padded := [][]int{
		{1, 2, 3},
		{4, 5, 6},
		{7, 8, 9},
	}
	kernel := [][]int{
		{1, 0},
		{0, -1},
	}
	assert.Equal(t, [][]int{{-4, -4}, {-4, -4}}, Convolve(padded, kernel, 1))
	assert.Equal(t, [][]int{{-4}}, Convolve(padded, kernel, 2))
	assert.Nil(t, Convolve([][]int{{1}}, kernel, 1))
}

func TestAttention(t *testing.T) {
	a := ir.AttentionIR{
		Tokens:     []string{"I", "want", "to", "eat"},
		Weights:    ir.AttentionWeights{Matrix: [][]float64{{1, 0, 0, 0}, {0.5, 0.5, 0, 0}, {0.2, 0.3, 0.5, 0}, {0.1, 0.2, 0.3, 0.4}}},
		QueryIndex: 3,
		NextToken:  &ir.NextToken{Candidates: []string{"pizza", "now"}, Probs: []float64{0.7, 0.3}},
	}
	src, err := Attention(a)
	require.NoError(t, err)
	assert.Empty(t, sanitize.Check(src), src)
	assert.Contains(t, src, `Text("I want to eat"`)
	assert.Contains(t, src, "query = nodes[3]")
	assert.Contains(t, src, "stroke_width=8, stroke_opacity=1", "the heaviest weight gets the thickest edge")
	assert.Contains(t, src, `Text("0.40"`)
	assert.Contains(t, src, `Text("pizza"`)

	a.NextToken = nil
	a.Weights = ir.AttentionWeights{Flat: []float64{0, 0, 0, 0}}
	src, err = Attention(a)
	require.NoError(t, err)
	assert.NotContains(t, src, "next token")
	assert.Contains(t, src, "stroke_width=2, stroke_opacity=0.25")

	a.QueryIndex = 4
	_, err = Attention(a)
	assert.Error(t, err)

	a.QueryIndex = 0
	a.Weights = ir.AttentionWeights{Flat: []float64{1}}
	_, err = Attention(a)
	assert.Error(t, err)
}
