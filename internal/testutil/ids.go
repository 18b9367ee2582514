package testutil

// FixedIDGenerator returns the same request ID every time.
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario with the same FixedIDGenerator produces byte-identical
// responses.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a new fixed ID generator.
//
// The ID is typically set in the scenario YAML:
//
//	request_id: "test-request-0001"
//
// If id is empty, NewID() returns "test-request-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-request-default"
	}
	return &FixedIDGenerator{id: id}
}

// NewID returns the fixed ID.
func (g *FixedIDGenerator) NewID() string {
	return g.id
}
