package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDGenerator generates "<prefix>-1", "<prefix>-2", ...
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario produces the same run and listener IDs every time.
//
// Thread-safety: SequenceIDGenerator is safe for concurrent use via internal mutex.
type SequenceIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDGenerator creates a generator. If prefix is empty, "test" is used.
func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	if prefix == "" {
		prefix = "test"
	}
	return &SequenceIDGenerator{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
