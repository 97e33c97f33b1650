package compiler

import (
	"fmt"
	"log/slog"

	"github.com/roach88/stratalog/internal/builtin"
	"github.com/roach88/stratalog/internal/config"
	"github.com/roach88/stratalog/internal/ir"
)

// HeadEqualityHandler deals with rules whose head is the equality built-in,
// such as ?X = ?Y :- same(?X, ?Y). The evaluator cannot derive equalities.
type HeadEqualityHandler interface {
	Name() string
	Handle(rules []ir.Rule) ([]ir.Rule, error)
}

// NewHeadEqualityHandler builds the handler registered under name.
func NewHeadEqualityHandler(name string, reg *builtin.Registry, logger *slog.Logger) (HeadEqualityHandler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch name {
	case config.HeadEqualityReject:
		return RejectHeadEquality{Builtins: reg}, nil
	case config.HeadEqualityDrop:
		return DropHeadEquality{Builtins: reg, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown head equality handler %q: %w", name, ErrInvalidArgument)
	}
}

// HandleHeadEquality runs handlers in order and returns the result of the
// first that accepts the rules, or the last error.
func HandleHeadEquality(rules []ir.Rule, handlers []HeadEqualityHandler) ([]ir.Rule, error) {
	if len(handlers) == 0 {
		return rules, nil
	}
	var lastErr error
	for _, h := range handlers {
		out, err := h.Handle(rules)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func hasEqualityHead(r ir.Rule, reg *builtin.Registry) bool {
	b, ok := reg.Lookup(r.HeadPredicate())
	return ok && b.Kind() == builtin.Equality
}

// RejectHeadEquality fails on the first rule with an equality head.
type RejectHeadEquality struct {
	Builtins *builtin.Registry
}

func (RejectHeadEquality) Name() string { return config.HeadEqualityReject }

func (h RejectHeadEquality) Handle(rules []ir.Rule) ([]ir.Rule, error) {
	for _, r := range rules {
		if hasEqualityHead(r, h.Builtins) {
			return nil, &HeadEqualityError{Rule: r}
		}
	}
	return rules, nil
}

// DropHeadEquality discards rules with an equality head and logs each one.
type DropHeadEquality struct {
	Builtins *builtin.Registry
	Logger   *slog.Logger
}

func (DropHeadEquality) Name() string { return config.HeadEqualityDrop }

func (h DropHeadEquality) Handle(rules []ir.Rule) ([]ir.Rule, error) {
	out := make([]ir.Rule, 0, len(rules))
	for _, r := range rules {
		if hasEqualityHead(r, h.Builtins) {
			h.Logger.Warn("dropping rule with equality head", "rule", r.String())
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
