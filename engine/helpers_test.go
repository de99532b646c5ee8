package engine

import (
	"context"
	"fmt"
	"sync"
)

// stubAgent is a minimal controlled network for search tests. Its single
// monitored output is computed from the signals' context-tagged allocations
// by outcomeFn, stored per execution context.
type stubAgent struct {
	signals []*ControlSignal

	// outcomeFn maps the allocations visible under the executing context to
	// the monitored outcome. Defaults to the sum of allocations.
	outcomeFn func(allocations []float64) float64

	// failAbove makes Execute error when any allocation exceeds it. Disabled
	// when nil.
	failAbove *float64

	// panicAbove makes Execute panic when any allocation exceeds it.
	// Disabled when nil.
	panicAbove *float64

	// block makes Execute wait for ctx cancellation before returning, to
	// exercise per-candidate timeouts.
	block bool

	mu       sync.Mutex
	outputs  map[string]float64
	executed map[string]int
}

func newStubAgent(signals []*ControlSignal, outcomeFn func([]float64) float64) *stubAgent {
	if outcomeFn == nil {
		outcomeFn = func(allocations []float64) float64 {
			total := 0.0
			for _, a := range allocations {
				total += a
			}
			return total
		}
	}
	return &stubAgent{
		signals:   signals,
		outcomeFn: outcomeFn,
		outputs:   make(map[string]float64),
		executed:  make(map[string]int),
	}
}

func (a *stubAgent) Execute(ctx context.Context, ec ExecutionContext, inputs []float64) error {
	if a.block {
		<-ctx.Done()
		return ctx.Err()
	}

	allocations := make([]float64, len(a.signals))
	for i, sig := range a.signals {
		allocations[i] = sig.Allocation(ec)
	}
	for _, alloc := range allocations {
		if a.panicAbove != nil && alloc > *a.panicAbove {
			panic(fmt.Sprintf("allocation %v out of range", alloc))
		}
		if a.failAbove != nil && alloc > *a.failAbove {
			return fmt.Errorf("allocation %v out of range", alloc)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.outputs[ec.ID()] = a.outcomeFn(allocations)
	a.executed[ec.ID()]++
	return nil
}

func (a *stubAgent) MonitoredOutputs(ec ExecutionContext) []MonitoredValue {
	a.mu.Lock()
	defer a.mu.Unlock()
	return []MonitoredValue{{Name: "outcome", Value: a.outputs[ec.ID()]}}
}

func (a *stubAgent) executions(ec ExecutionContext) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.executed[ec.ID()]
}

// zeroCostSignal builds an identity-transform signal with all cost options
// off, so the outcome alone drives selection.
func zeroCostSignal(owner, name string, samples []float64) *ControlSignal {
	sig := NewControlSignal(owner, name, samples)
	sig.Transform = IdentityTransform()
	sig.Options = CostNone
	return sig
}

// linearCostSignal builds an identity-transform signal whose cost equals its
// allocation value.
func linearCostSignal(owner, name string, samples []float64) *ControlSignal {
	sig := NewControlSignal(owner, name, samples)
	sig.Transform = IdentityTransform()
	sig.Options = CostIntensity
	sig.IntensityCost = LinearCost(1, 0)
	return sig
}

func floatPtr(v float64) *float64 { return &v }

func newTestEvaluator(agent Agent, signals []*ControlSignal) *Evaluator {
	return &Evaluator{
		Runner: &SimulationRunner{Agent: agent, Signals: signals, Aggregator: OutcomeAggregator{}},
		Costs:  NewCostModel(),
	}
}
