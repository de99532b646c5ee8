package engine

import (
	"math"
	"sync"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// CostModel computes per-signal costs for candidate allocations. It is a pure
// function of the candidate allocation and the signal's cross-cycle cost
// state (last committed intensity, duration accumulator); it never mutates
// that state, so it is safe to call from concurrent candidate evaluations.
//
// An invalid cost result (non-finite, or negative after combination) scores
// the term +Inf so the candidate is never selected, and is reported once per
// control cycle per signal.
type CostModel struct {
	mu       sync.Mutex
	reported map[string]bool
}

// NewCostModel returns a ready CostModel.
func NewCostModel() *CostModel {
	return &CostModel{reported: make(map[string]bool)}
}

// BeginCycle resets the once-per-cycle failure reporting. Called by the
// driver at the start of each real control cycle.
func (m *CostModel) BeginCycle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reported = make(map[string]bool)
}

// SignalCost computes the combined cost of assigning allocation to sig.
// Returns 0 when all cost options are off.
func (m *CostModel) SignalCost(sig *ControlSignal, allocation float64) float64 {
	return m.termCost(sig, allocation, true)
}

// commitCost is the portion of a committed allocation's cost folded into the
// duration accumulator: the active terms excluding the duration term itself.
func (m *CostModel) commitCost(sig *ControlSignal, allocation float64) float64 {
	return m.termCost(sig, allocation, false)
}

func (m *CostModel) termCost(sig *ControlSignal, allocation float64, includeDuration bool) float64 {
	intensity := sig.Transform.F(allocation)
	var terms []float64
	if sig.Options&CostIntensity != 0 && sig.IntensityCost.F != nil {
		terms = append(terms, sig.IntensityCost.F(intensity))
	}
	if sig.Options&CostAdjustment != 0 && sig.AdjustmentCost.F != nil {
		// Zero on the very first evaluation: no previous intensity exists.
		if last, ok := sig.LastIntensity(); ok {
			terms = append(terms, sig.AdjustmentCost.F(math.Abs(intensity-last)))
		}
	}
	if includeDuration && sig.Options&CostDuration != 0 && sig.DurationCost.F != nil {
		terms = append(terms, sig.DurationCost.F(sig.DurationAccumulator()))
	}
	if len(terms) == 0 {
		return 0
	}

	combine := sig.CombineCosts
	if combine == nil {
		combine = floats.Sum
	}
	cost := combine(terms)
	if math.IsNaN(cost) || math.IsInf(cost, 0) || cost < 0 {
		m.reportInvalid(sig, cost)
		return math.Inf(1)
	}
	return cost
}

// PolicyCost computes the aggregated cost of a full candidate policy.
func (m *CostModel) PolicyCost(signals []*ControlSignal, policy AllocationPolicy, agg OutcomeAggregator) float64 {
	costs := make([]float64, len(signals))
	for i, sig := range signals {
		costs[i] = m.SignalCost(sig, policy.Value(i))
	}
	return agg.AggregateCosts(costs)
}

func (m *CostModel) reportInvalid(sig *ControlSignal, cost float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reported[sig.ID()] {
		return
	}
	m.reported[sig.ID()] = true
	logrus.Warnf("invalid cost result %v for signal %q; scoring affected candidates +Inf", cost, sig.ID())
}
