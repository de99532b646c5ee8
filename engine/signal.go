package engine

import (
	"fmt"
	"math"
	"sync"
)

// CostOption selects which cost terms are active for a ControlSignal.
// Options combine as a bitmask.
type CostOption uint8

const (
	// CostIntensity activates the intensity cost term.
	CostIntensity CostOption = 1 << iota
	// CostAdjustment activates the adjustment (change-of-intensity) cost term.
	CostAdjustment
	// CostDuration activates the duration cost term (integral of past costs).
	CostDuration
)

// CostNone disables all cost terms.
const CostNone CostOption = 0

// CostDefaults is the default cost option set for a new ControlSignal.
const CostDefaults = CostIntensity

// ControlSignal is one controllable parameter of the controlled network: an
// owning node plus a parameter name, with the current allocation and the
// machinery to derive its intensity and cost.
//
// The real allocation mutates only at commit time, once per control cycle.
// Exploratory evaluations write candidate allocations into a per-context
// overlay instead, so concurrent what-if runs never disturb the real value or
// each other.
type ControlSignal struct {
	// Name is the parameter name within the owning node.
	Name string
	// Owner is the node the parameter belongs to.
	Owner string

	// AllocationSamples is the finite ordered sample set enumerated by grid
	// search; its bounds double as feasibility bounds for gradient search.
	AllocationSamples []float64

	// Options selects the active cost terms.
	Options CostOption

	// Transform maps allocation to intensity. Must be monotonic.
	Transform Transform

	// IntensityCost, AdjustmentCost and DurationCost are the per-term cost
	// functions. AdjustmentCost is applied to |Δintensity| since the last
	// commit; DurationCost is applied to the running duration accumulator.
	IntensityCost  CostFunction
	AdjustmentCost CostFunction
	DurationCost   CostFunction

	// CombineCosts folds the active cost terms into one scalar. Nil means
	// summation. Must tolerate an empty term list.
	CombineCosts func(terms []float64) float64

	mu        sync.RWMutex
	real      float64
	overlay   map[string]float64 // simulation context id -> candidate allocation
	committed bool               // at least one real commit has happened
	lastInt   float64            // intensity at the last real commit
	duration  float64            // duration cost accumulator (integral of past costs)
}

// NewControlSignal creates a ControlSignal with default cost machinery:
// exponential intensity transform, exponential intensity cost, linear
// adjustment cost, identity duration cost, and intensity-only cost options.
func NewControlSignal(owner, name string, samples []float64) *ControlSignal {
	return &ControlSignal{
		Name:              name,
		Owner:             owner,
		AllocationSamples: samples,
		Options:           CostDefaults,
		Transform:         ExponentialTransform(1),
		IntensityCost:     ExponentialCost(1, 1),
		AdjustmentCost:    LinearCost(1, 0),
		DurationCost:      LinearCost(1, 0),
		overlay:           make(map[string]float64),
	}
}

// ID returns the stable identifier "owner.name" used for checkpointing.
func (cs *ControlSignal) ID() string { return cs.Owner + "." + cs.Name }

// Validate returns an error if the signal is not usable for search.
func (cs *ControlSignal) Validate() error {
	if cs.Name == "" {
		return fmt.Errorf("control signal must have a name")
	}
	if len(cs.AllocationSamples) == 0 {
		return fmt.Errorf("control signal %q has no allocation samples", cs.ID())
	}
	for i, s := range cs.AllocationSamples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return fmt.Errorf("control signal %q sample %d is not finite: %v", cs.ID(), i, s)
		}
	}
	if cs.Transform.F == nil {
		return fmt.Errorf("control signal %q has no intensity transform", cs.ID())
	}
	return nil
}

// Allocation returns the allocation visible under the given execution context.
// Under a simulation context the candidate overlay value is returned; reading
// a simulation context that has no overlay entry is an isolation violation
// and panics, since it would silently leak real state into a what-if run.
func (cs *ControlSignal) Allocation(ec ExecutionContext) float64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if !ec.IsSimulation() {
		return cs.real
	}
	v, ok := cs.overlay[ec.ID()]
	if !ok {
		panic(fmt.Sprintf("isolation violation: signal %q read under unknown simulation context %q", cs.ID(), ec.ID()))
	}
	return v
}

// Intensity returns the transformed allocation visible under ec.
func (cs *ControlSignal) Intensity(ec ExecutionContext) float64 {
	return cs.Transform.F(cs.Allocation(ec))
}

// applySimulation installs a candidate allocation for one simulation context.
func (cs *ControlSignal) applySimulation(contextID string, allocation float64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.overlay[contextID] = allocation
}

// clearSimulation removes a simulation context's overlay entry.
func (cs *ControlSignal) clearSimulation(contextID string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.overlay, contextID)
}

// Commit writes a new real allocation and folds the committed cycle's cost
// into the duration accumulator. Called exactly once per real control cycle,
// never during exploratory evaluation.
func (cs *ControlSignal) Commit(allocation, cycleCost float64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.real = allocation
	cs.lastInt = cs.Transform.F(allocation)
	cs.committed = true
	if cs.Options&CostDuration != 0 {
		cs.duration += cycleCost
	}
}

// LastIntensity returns the intensity at the last real commit, and whether a
// commit has happened yet.
func (cs *ControlSignal) LastIntensity() (float64, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.lastInt, cs.committed
}

// DurationAccumulator returns the running integral of past committed costs.
func (cs *ControlSignal) DurationAccumulator() float64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.duration
}

// RestoreCostState reinstates cross-cycle cost state from a checkpoint.
func (cs *ControlSignal) RestoreCostState(lastIntensity, durationAccumulator float64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.lastInt = lastIntensity
	cs.duration = durationAccumulator
	cs.committed = true
}

// SampleBounds returns the minimum and maximum of the allocation sample set.
func (cs *ControlSignal) SampleBounds() (lower, upper float64) {
	lower, upper = cs.AllocationSamples[0], cs.AllocationSamples[0]
	for _, s := range cs.AllocationSamples[1:] {
		if s < lower {
			lower = s
		}
		if s > upper {
			upper = s
		}
	}
	return lower, upper
}
