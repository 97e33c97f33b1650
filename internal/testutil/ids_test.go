package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceIDGenerator_Sequence(t *testing.T) {
	gen := NewSequenceIDGenerator("run")

	assert.Equal(t, "run-1", gen.Generate())
	assert.Equal(t, "run-2", gen.Generate())
	assert.Equal(t, "run-3", gen.Generate())
}

func TestSequenceIDGenerator_EmptyPrefixDefault(t *testing.T) {
	gen := NewSequenceIDGenerator("")
	assert.Equal(t, "test-1", gen.Generate())
}

func TestSequenceIDGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequenceIDGenerator("id")
	const numGoroutines = 10
	const callsPerGoroutine = 100

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, numGoroutines*callsPerGoroutine)
}
