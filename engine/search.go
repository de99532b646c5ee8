package engine

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// SearchState is the terminal state of one policy search.
type SearchState string

const (
	// SearchCompleted means an exhaustive strategy finished a full pass.
	SearchCompleted SearchState = "completed"
	// SearchConverged means an iterative strategy met its convergence criterion.
	SearchConverged SearchState = "converged"
	// SearchMaxIterations means an iterative strategy ran out of iterations;
	// the last point reached is used. A warning, not a failure.
	SearchMaxIterations SearchState = "max-iterations-exceeded"
	// SearchCancelled means the search was cancelled at a candidate boundary;
	// the best candidate found so far is returned as a partial result.
	SearchCancelled SearchState = "cancelled"
)

// SearchResult is the outcome of one policy search.
type SearchResult struct {
	Best       AllocationPolicy
	BestValue  float64
	History    []CandidateEvaluation // evaluation order; nil unless history kept
	State      SearchState
	Iterations int  // iterative strategies: iterations run; exhaustive: candidates evaluated
	Partial    bool // true when cancelled before a complete pass
}

// Strategy searches an AllocationSpace for the best policy. GridSearch and
// GradientAscent are interchangeable behind this contract; the control-loop
// driver is agnostic to which is configured.
type Strategy interface {
	Search(ctx context.Context, space *AllocationSpace, eval *Evaluator) (*SearchResult, error)
}

// Evaluator scores one candidate policy end to end: isolated simulation,
// outcome aggregation, cost computation, net value. Safe for concurrent use
// by parallel grid workers — each call runs under its own simulation context.
type Evaluator struct {
	Runner      *SimulationRunner
	Costs       *CostModel
	NetValue    NetValueFunc
	TrialInputs [][]float64
	Timeout     time.Duration    // per-candidate; 0 means none
	Cache       *EvaluationCache // optional memoization; nil means off
}

// Evaluate scores the policy under a fresh random simulation context. For
// reproducible results with context-seeded agents, use EvaluateInContext with
// a numbered context.
func (e *Evaluator) Evaluate(ctx context.Context, policy AllocationPolicy) CandidateEvaluation {
	return e.EvaluateInContext(ctx, policy, NewSimulationContext())
}

// EvaluateInContext scores the policy under the given simulation context.
// A failed simulation yields NetValue -Inf and a non-empty Reason; the
// candidate is excluded from selection but the search continues.
func (e *Evaluator) EvaluateInContext(ctx context.Context, policy AllocationPolicy, simCtx ExecutionContext) CandidateEvaluation {
	if e.Cache != nil {
		if ce, ok := e.Cache.Get(policy); ok {
			return ce
		}
	}

	evalCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	ce := CandidateEvaluation{Policy: policy}
	outcomes, _, err := e.Runner.Evaluate(evalCtx, policy, e.TrialInputs, simCtx)
	if err != nil {
		ce.NetValue = math.Inf(-1)
		ce.Reason = err.Error()
		return ce
	}

	ce.Outcomes = outcomes
	ce.Outcome = stat.Mean(outcomes, nil)
	ce.Cost = e.Costs.PolicyCost(e.Runner.Signals, policy, e.Runner.Aggregator)

	netValue := e.NetValue
	if netValue == nil {
		netValue = DefaultNetValue
	}
	nv := netValue(ce.Outcome, ce.Cost)
	if math.IsNaN(nv) {
		nv = math.Inf(-1)
	}
	ce.NetValue = nv

	if e.Cache != nil {
		e.Cache.Add(ce)
	}
	return ce
}
