package harness

import (
	"context"
	"errors"

	"github.com/roach88/stratalog/internal/compiler"
	"github.com/roach88/stratalog/internal/engine"
)

// Error codes for failures that are not evaluation limits. Evaluation
// errors use engine.EvalErrorCode values.
const (
	CodeRuleUnsafe      = "RULE_UNSAFE"
	CodeNotStratified   = "NOT_STRATIFIED"
	CodeHeadEquality    = "HEAD_EQUALITY"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeCancelled       = "CANCELLED"
	CodeError           = "ERROR"
)

// ErrorCode classifies err for scenario expectations and CLI output.
// It returns "" for a nil error.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if code := engine.Code(err); code != "" {
		return string(code)
	}
	var headEq *compiler.HeadEqualityError
	switch {
	case compiler.IsRuleUnsafe(err):
		return CodeRuleUnsafe
	case compiler.IsNotStratified(err):
		return CodeNotStratified
	case errors.As(err, &headEq):
		return CodeHeadEquality
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled
	case errors.Is(err, compiler.ErrInvalidArgument):
		return CodeInvalidArgument
	default:
		return CodeError
	}
}
