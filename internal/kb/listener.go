package kb

import (
	"context"

	"github.com/roach88/stratalog/internal/engine"
	"github.com/roach88/stratalog/internal/ir"
)

// Listener receives the answer to its query after every evaluation.
// It runs on the goroutine that triggered the evaluation, outside the
// knowledge base lock, and may call back into the knowledge base.
type Listener func(*engine.Answer)

type listener struct {
	id    string
	query ir.Query
	fn    Listener
}

type notification struct {
	fn     Listener
	answer *engine.Answer
}

func notify(notes []notification) {
	for _, n := range notes {
		n.fn(n.answer)
	}
}

// Register calls fn with the answer to q after every evaluation, starting
// with the current facts, and returns an ID for Unregister. A lazy
// knowledge base evaluates eagerly while it has listeners.
func (kb *KnowledgeBase) Register(ctx context.Context, q ir.Query, fn Listener) (string, error) {
	if kb.closed.Load() {
		return "", ErrClosed
	}
	q = q.RemoveDuplicateLiterals()
	if err := engine.CheckQuery(q, kb.builtins, kb.cfg); err != nil {
		return "", err
	}

	notes := kb.lock(ctx)
	l := &listener{id: kb.ids.Generate(), query: q, fn: fn}
	kb.listeners = append(kb.listeners, l)

	var err error
	if kb.snapshot == nil {
		// Evaluating notifies every listener, l included.
		var more []notification
		more, err = kb.refreshLocked(ctx)
		notes = append(notes, more...)
	} else {
		var ans *engine.Answer
		if ans, err = kb.snapshot.Answer(q, kb.cfg); err == nil {
			notes = append(notes, notification{fn: fn, answer: ans})
		}
	}
	if err != nil {
		kb.listeners = kb.listeners[:len(kb.listeners)-1]
		kb.unlock(ctx, notes)
		return "", err
	}
	kb.logger.Debug("listener registered", "listener", l.id, "query", q.String())
	kb.unlock(ctx, notes)
	return l.id, nil
}

// Unregister removes a listener. It reports whether id was registered.
func (kb *KnowledgeBase) Unregister(id string) bool {
	kb.mu.Lock()
	defer kb.unlock(context.Background(), nil)
	for i, l := range kb.listeners {
		if l.id == id {
			kb.listeners = append(kb.listeners[:i], kb.listeners[i+1:]...)
			return true
		}
	}
	return false
}
