// Package engine evaluates compiled Datalog programs bottom-up.
//
// Strata are saturated in order. Within a stratum the semi-naive evaluator
// first fires every rule once against the full relations, then repeats
// rounds in which each recursive rule fires once per recursive body literal,
// that literal reading only the tuples derived in the previous round. A
// stratum is done when a round derives nothing.
//
// Limits:
//
//	evaluation_max_tuples      checked on every derived tuple
//	evaluation_max_complexity  checked on every derived tuple
//	evaluation_timeout_ms      checked between rounds, with ctx
//
// Exceeding a limit aborts with an *EvalError and no result. Built-ins that
// divide by zero either abort (divide_by_zero: stop) or drop the binding
// (divide_by_zero: discard).
//
// Queries with a bound argument are answered through the magic-sets rewrite
// in package magic when enabled; everything else is evaluated in full and
// matched.
package engine
