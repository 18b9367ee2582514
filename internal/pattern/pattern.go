// Package pattern resolves a classified domain and a recommended pattern
// label into one of the five visualization pattern kinds.
package pattern

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind is a visualization archetype.
type Kind string

const (
	Grid         Kind = "grid"
	Sequence     Kind = "sequence"
	Flow         Kind = "flow"
	Graph        Kind = "graph"
	SeqAttention Kind = "seq_attention"
)

// Default is returned when neither the domain nor the label decides.
const Default = Flow

// Kinds lists every pattern kind.
var Kinds = []Kind{Grid, Sequence, Flow, Graph, SeqAttention}

// Known domains accepted from the classifier.
const (
	DomainCNN         = "cnn_param"
	DomainSorting     = "sorting"
	DomainTransformer = "transformer"
	DomainCache       = "cache"
	DomainHashTable   = "hash_table"
	DomainGraph       = "graph_traversal"
	DomainDP          = "dynamic_programming"
	DomainMath        = "math"
	DomainGeneric     = "generic"
)

// Domains lists the classifier's allowed labels.
var Domains = []string{
	DomainCNN, DomainSorting, DomainTransformer, DomainCache, DomainHashTable,
	DomainGraph, DomainDP, DomainMath, DomainGeneric,
}

// overrides maps domains with a canonical visual treatment to their pattern.
// Aliases the classifier never emits are kept so callers can pass them directly.
var overrides = map[string]Kind{
	DomainCNN:          Grid,
	DomainSorting:      Sequence,
	"bubble_sort":      Sequence,
	"selection_sort":   Sequence,
	DomainTransformer:  SeqAttention,
	"transformer_attn": SeqAttention,
	"attention":        SeqAttention,

	DomainCache: Flow,
	DomainMath:  Flow,
	"pipeline":  Flow,

	DomainHashTable: Grid,

	DomainGraph:     Graph,
	"shortest_path": Graph,
	"graph":         Graph,
	"binary_tree":   Graph,
	"tree":          Graph,

	DomainDP: Grid,
}

var fold = cases.Lower(language.Und)

// Resolve picks the pattern for a request. A domain with an override always
// wins; otherwise a recognized recommendation is used; otherwise Default.
// Resolve is total: every input pair yields one of Kinds.
func Resolve(domain, recommended string) Kind {
	if k, ok := overrides[domain]; ok {
		return k
	}
	if k, ok := Parse(recommended); ok {
		return k
	}
	return Default
}

// Parse normalizes a pattern label and reports whether it names a Kind.
func Parse(label string) (Kind, bool) {
	k := Kind(fold.String(strings.TrimSpace(label)))
	for _, known := range Kinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// NormalizeDomain folds a classifier label and maps anything unknown to generic.
func NormalizeDomain(label string) string {
	d := fold.String(strings.TrimSpace(label))
	for _, known := range Domains {
		if d == known {
			return d
		}
	}
	return DomainGeneric
}

// Override reports the forced pattern for domain, if any.
func Override(domain string) (Kind, bool) {
	k, ok := overrides[domain]
	return k, ok
}

// FastPath reports whether the domain/pattern pair has a dedicated
// specialization stage and renderer instead of the generic code path.
func FastPath(domain string, k Kind) bool {
	switch {
	case domain == DomainCNN && k == Grid:
		return true
	case domain == DomainSorting && k == Sequence:
		return true
	case domain == DomainTransformer && k == SeqAttention:
		return true
	}
	return false
}
