package kb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/roach88/stratalog/internal/ir"
)

// ErrClosed is returned by operations on a closed knowledge base.
var ErrClosed = errors.New("knowledge base closed")

// batch is one AddFacts call, stamped when it was accepted.
type batch struct {
	atoms []ir.Atom
	at    time.Time
}

// factBuffer is a bounded, thread-safe FIFO of fact batches.
//
// Producers enqueue from any goroutine; whoever holds the knowledge base lock
// drains. When the buffer is full Enqueue blocks until a drain frees space or
// ctx is done.
//
// Waiters block on a channel that each drain closes and replaces, so a
// single drain wakes every blocked producer.
type factBuffer struct {
	mu      sync.Mutex
	batches []batch
	size    int
	closed  bool
	space   chan struct{} // closed when space frees up
}

// newFactBuffer creates a buffer holding at most size batches.
func newFactBuffer(size int) *factBuffer {
	if size < 1 {
		size = 1
	}
	return &factBuffer{
		batches: make([]batch, 0, size),
		size:    size,
		space:   make(chan struct{}),
	}
}

// Enqueue adds a batch to the back of the buffer.
// Thread-safe: may be called from any goroutine.
// Returns ErrClosed if the buffer is closed, or ctx.Err() if ctx ends first.
func (b *factBuffer) Enqueue(ctx context.Context, bt batch) error {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return ErrClosed
		}
		if len(b.batches) < b.size {
			b.batches = append(b.batches, bt)
			b.mu.Unlock()
			return nil
		}
		wait := b.space
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
	}
}

// Drain removes and returns every buffered batch in arrival order.
func (b *factBuffer) Drain() []batch {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.batches) == 0 {
		return nil
	}
	out := b.batches
	b.batches = make([]batch, 0, b.size)
	if !b.closed {
		close(b.space)
		b.space = make(chan struct{})
	}
	return out
}

// Len returns the number of buffered batches.
func (b *factBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.batches)
}

// Close rejects further batches and wakes every blocked producer.
// Batches already buffered stay drainable.
func (b *factBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return // Already closed
	}

	b.closed = true
	close(b.space)
}
