package engine

import (
	"context"
	"fmt"
)

// Agent is the controlled network: an opaque simulatable model the engine
// drives during both real execution and what-if evaluation. Implementations
// must honor execution-context isolation — state written or read under one
// context must never be visible through another.
type Agent interface {
	// Execute runs one trial of the network under ec with the given inputs.
	// Control signal values must be read through the signals' context-tagged
	// accessors for the same ec.
	Execute(ctx context.Context, ec ExecutionContext, inputs []float64) error

	// MonitoredOutputs returns the monitored values produced by the most
	// recent Execute under ec.
	MonitoredOutputs(ec ExecutionContext) []MonitoredValue
}

// SimulationRunner evaluates one candidate policy by running the agent under
// an isolated simulation context: it installs the candidate allocations in
// the signals' context overlay, runs each replicate trial, and collects the
// monitored outputs — without mutating any real state.
type SimulationRunner struct {
	Agent      Agent
	Signals    []*ControlSignal
	Aggregator OutcomeAggregator
}

// Evaluate runs the candidate policy for each trial input set under simCtx.
// Returns the per-trial scalar outcomes and the raw monitored values per
// trial. Replicate trials exist for stochastic agents; the caller averages
// the outcomes before scoring.
//
// A panic or error from the agent aborts this candidate only and surfaces as
// a *SimulationFailure.
func (r *SimulationRunner) Evaluate(ctx context.Context, policy AllocationPolicy, trialInputs [][]float64, simCtx ExecutionContext) (outcomes []float64, raw [][]MonitoredValue, err error) {
	if !simCtx.IsSimulation() {
		return nil, nil, fmt.Errorf("refusing to evaluate under non-simulation context %q", simCtx.ID())
	}
	if policy.Len() != len(r.Signals) {
		return nil, nil, fmt.Errorf("policy covers %d signals, runner has %d", policy.Len(), len(r.Signals))
	}
	if len(trialInputs) == 0 {
		trialInputs = [][]float64{nil}
	}

	for i, sig := range r.Signals {
		sig.applySimulation(simCtx.ID(), policy.Value(i))
	}
	defer func() {
		for _, sig := range r.Signals {
			sig.clearSimulation(simCtx.ID())
		}
	}()
	defer func() {
		if rec := recover(); rec != nil {
			outcomes, raw = nil, nil
			err = &SimulationFailure{Err: fmt.Errorf("agent panic: %v", rec)}
		}
	}()

	for t, inputs := range trialInputs {
		// Cooperative timeout/cancellation, checked at trial boundaries.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, &SimulationFailure{Trial: t, Err: ctxErr}
		}
		if execErr := r.Agent.Execute(ctx, simCtx, inputs); execErr != nil {
			return nil, nil, &SimulationFailure{Trial: t, Err: execErr}
		}
		values := r.Agent.MonitoredOutputs(simCtx)
		raw = append(raw, values)
		outcomes = append(outcomes, r.Aggregator.AggregateOutcome(values))
	}
	return outcomes, raw, nil
}
