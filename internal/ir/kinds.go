package ir

// Kind names a document shape that a validator knows how to check.
// The first six are visualization variants carried in the `pattern` or
// `pattern_type` discriminator; the remaining four are stage documents that
// carry no discriminator and are validated by the stage that produced them.
type Kind string

const (
	KindGrid         Kind = "grid"
	KindSequence     Kind = "sequence"
	KindFlow         Kind = "flow"
	KindGraph        Kind = "graph"
	KindSeqAttention Kind = "seq_attention"
	KindHashTable    Kind = "hash_table"

	KindPseudocode   Kind = "pseudocode"
	KindAnimation    Kind = "animation"
	KindSortingTrace Kind = "sorting_trace"
	KindCNNParam     Kind = "cnn_param"
)

// VariantKinds lists the discriminated variants in a stable order.
var VariantKinds = []Kind{
	KindGrid, KindSequence, KindFlow, KindGraph, KindSeqAttention, KindHashTable,
}

// StageKinds lists the stage documents in pipeline order.
var StageKinds = []Kind{
	KindPseudocode, KindAnimation, KindSortingTrace, KindCNNParam,
}

// IsVariant reports whether k is carried in a document discriminator.
func (k Kind) IsVariant() bool {
	for _, v := range VariantKinds {
		if v == k {
			return true
		}
	}
	return false
}

// Known reports whether k names any validated document shape.
func (k Kind) Known() bool {
	if k.IsVariant() {
		return true
	}
	for _, s := range StageKinds {
		if s == k {
			return true
		}
	}
	return false
}

func (k Kind) String() string { return string(k) }
