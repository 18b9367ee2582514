package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveDomainWins(t *testing.T) {
	tests := []struct {
		domain string
		rec    string
		want   Kind
	}{
		{"cnn_param", "sequence", Grid},
		{"sorting", "grid", Sequence},
		{"bubble_sort", "", Sequence},
		{"transformer", "flow", SeqAttention},
		{"cache", "graph", Flow},
		{"hash_table", "sequence", Grid},
		{"graph_traversal", "grid", Graph},
		{"tree", "flow", Graph},
		{"dynamic_programming", "sequence", Grid},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.domain, tt.rec))
		})
	}
}

func TestResolveFallsBackToRecommendation(t *testing.T) {
	assert.Equal(t, Graph, Resolve("generic", "graph"))
	assert.Equal(t, SeqAttention, Resolve("generic", "  SEQ_Attention "))
	assert.Equal(t, Sequence, Resolve("", "Sequence"))
}

func TestResolveDefaults(t *testing.T) {
	assert.Equal(t, Flow, Resolve("generic", "heatmap"))
	assert.Equal(t, Flow, Resolve("", ""))
}

func TestResolveTotal(t *testing.T) {
	inputs := []string{"", " ", "GRID", "grid\x00", "ünïcödé", "{\"pattern\":\"grid\"}", "sorting", "flow ", "\t\n", "cnn_param"}
	for _, d := range inputs {
		for _, r := range inputs {
			got := Resolve(d, r)
			assert.Contains(t, Kinds, got, "Resolve(%q, %q)", d, r)
		}
	}
}

func TestNormalizeDomain(t *testing.T) {
	assert.Equal(t, "sorting", NormalizeDomain(" Sorting "))
	assert.Equal(t, "generic", NormalizeDomain("astrology"))
	assert.Equal(t, "generic", NormalizeDomain(""))
}

func TestFastPath(t *testing.T) {
	assert.True(t, FastPath("cnn_param", Grid))
	assert.True(t, FastPath("sorting", Sequence))
	assert.True(t, FastPath("transformer", SeqAttention))
	assert.False(t, FastPath("hash_table", Grid))
	assert.False(t, FastPath("sorting", Flow))
}
