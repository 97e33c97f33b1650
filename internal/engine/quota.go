package engine

import (
	"time"

	"github.com/roach88/stratalog/internal/config"
	"github.com/roach88/stratalog/internal/ir"
)

// Limits bounds one evaluation. Zero fields are unbounded.
type Limits struct {
	MaxTuples     uint64
	MaxComplexity uint64
	Timeout       time.Duration
}

// LimitsFrom reads the evaluation limits of cfg.
func LimitsFrom(cfg config.Config) Limits {
	return Limits{
		MaxTuples:     uint64(cfg.EvaluationMaxTuples),
		MaxComplexity: uint64(cfg.EvaluationMaxComplexity),
		Timeout:       cfg.Timeout(),
	}
}

// QuotaEnforcer counts derived tuples and watches the clock for one
// evaluation. The tuple and depth limits are checked on every new tuple, the
// timeout between rounds.
type QuotaEnforcer struct {
	limits  Limits
	clock   Clock
	start   time.Time
	stratum int
	tuples  uint64
}

// NewQuotaEnforcer starts the timeout clock.
func NewQuotaEnforcer(limits Limits, clock Clock) *QuotaEnforcer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &QuotaEnforcer{limits: limits, clock: clock, start: clock.Now()}
}

// Enter records the stratum reported in errors.
func (q *QuotaEnforcer) Enter(stratum int) { q.stratum = stratum }

// Add accounts for one newly derived tuple.
func (q *QuotaEnforcer) Add(t ir.Tuple) error {
	q.tuples++
	if q.limits.MaxTuples > 0 && q.tuples > q.limits.MaxTuples {
		return NewTooManyTuplesError(q.stratum, q.limits.MaxTuples, q.tuples)
	}
	if q.limits.MaxComplexity > 0 {
		if d := uint64(t.Depth()); d > q.limits.MaxComplexity {
			return NewTooComplexError(q.stratum, q.limits.MaxComplexity, d, t.String())
		}
	}
	return nil
}

// Check enforces the timeout.
func (q *QuotaEnforcer) Check() error {
	if q.limits.Timeout <= 0 {
		return nil
	}
	if elapsed := q.clock.Now().Sub(q.start); elapsed > q.limits.Timeout {
		return NewTimeoutError(q.stratum, uint64(q.limits.Timeout.Milliseconds()), uint64(elapsed.Milliseconds()))
	}
	return nil
}

// Current returns the number of tuples derived so far.
func (q *QuotaEnforcer) Current() uint64 { return q.tuples }

// Limits returns the enforced limits.
func (q *QuotaEnforcer) Limits() Limits { return q.limits }
