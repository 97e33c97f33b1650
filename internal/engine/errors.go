package engine

import (
	"errors"
	"fmt"
)

// EvalError reports an evaluation aborted before reaching a fixpoint. The
// relations computed so far are discarded; no partial answer accompanies it.
type EvalError struct {
	// Code identifies the error category.
	Code EvalErrorCode

	// Message is a human-readable description.
	Message string

	// Limit is the configured bound that was exceeded, 0 when not applicable.
	Limit uint64

	// Observed is the value that crossed Limit.
	Observed uint64

	// Stratum is the index of the stratum being evaluated.
	Stratum int

	// Err is the underlying cause, if any.
	Err error
}

// EvalErrorCode categorizes evaluation errors.
type EvalErrorCode string

const (
	// ErrCodeTimeout indicates evaluation ran past evaluation_timeout_ms.
	ErrCodeTimeout EvalErrorCode = "TIMEOUT"

	// ErrCodeTooManyTuples indicates more derived tuples than evaluation_max_tuples.
	ErrCodeTooManyTuples EvalErrorCode = "TOO_MANY_TUPLES"

	// ErrCodeTooComplex indicates a derived term nested deeper than evaluation_max_complexity.
	ErrCodeTooComplex EvalErrorCode = "TOO_COMPLEX"

	// ErrCodeDivideByZero indicates a built-in divided by zero under divide_by_zero: stop.
	ErrCodeDivideByZero EvalErrorCode = "DIVIDE_BY_ZERO"
)

// Error implements the error interface.
func (e *EvalError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("%s: %s (stratum=%d, limit=%d, observed=%d)", e.Code, e.Message, e.Stratum, e.Limit, e.Observed)
	}
	return fmt.Sprintf("%s: %s (stratum=%d)", e.Code, e.Message, e.Stratum)
}

func (e *EvalError) Unwrap() error { return e.Err }

func hasCode(err error, code EvalErrorCode) bool {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// IsTimeout returns true if the error is a timeout.
// Uses errors.As to handle wrapped errors.
func IsTimeout(err error) bool { return hasCode(err, ErrCodeTimeout) }

// IsTooManyTuples returns true if the error is a tuple limit error.
func IsTooManyTuples(err error) bool { return hasCode(err, ErrCodeTooManyTuples) }

// IsTooComplex returns true if the error is a term depth limit error.
func IsTooComplex(err error) bool { return hasCode(err, ErrCodeTooComplex) }

// IsDivideByZero returns true if evaluation stopped on a division by zero.
func IsDivideByZero(err error) bool { return hasCode(err, ErrCodeDivideByZero) }

// Code returns the EvalErrorCode of err, or "" when err is not an EvalError.
func Code(err error) EvalErrorCode {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// NewTimeoutError creates an EvalError for an exceeded timeout.
func NewTimeoutError(stratum int, limitMillis, elapsedMillis uint64) *EvalError {
	return &EvalError{
		Code:     ErrCodeTimeout,
		Message:  fmt.Sprintf("evaluation exceeded %dms", limitMillis),
		Limit:    limitMillis,
		Observed: elapsedMillis,
		Stratum:  stratum,
	}
}

// NewTooManyTuplesError creates an EvalError for an exceeded tuple limit.
func NewTooManyTuplesError(stratum int, limit, observed uint64) *EvalError {
	return &EvalError{
		Code:     ErrCodeTooManyTuples,
		Message:  fmt.Sprintf("derived more than %d tuples", limit),
		Limit:    limit,
		Observed: observed,
		Stratum:  stratum,
	}
}

// NewTooComplexError creates an EvalError for a derived term nested too deep.
func NewTooComplexError(stratum int, limit, depth uint64, tuple string) *EvalError {
	return &EvalError{
		Code:     ErrCodeTooComplex,
		Message:  fmt.Sprintf("derived tuple %s nests deeper than %d", tuple, limit),
		Limit:    limit,
		Observed: depth,
		Stratum:  stratum,
	}
}

// NewDivideByZeroError creates an EvalError for a division by zero.
func NewDivideByZeroError(stratum int, rule string, err error) *EvalError {
	return &EvalError{
		Code:    ErrCodeDivideByZero,
		Message: fmt.Sprintf("division by zero in %s", rule),
		Stratum: stratum,
		Err:     err,
	}
}
