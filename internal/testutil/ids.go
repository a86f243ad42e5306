package testutil

// FixedIDGenerator returns the same id every time.
//
// Session ids are random in production; fixing them keeps golden traces
// byte-identical across runs. Stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator for id.
// An empty id yields "test-session-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-session-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
