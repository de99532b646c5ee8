package engine

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// MonitoredValue is one named scalar read from the controlled network's
// monitored outputs.
type MonitoredValue struct {
	Name  string
	Value float64
}

// MonitoredSpec optionally reweights one monitored value before combination:
// contribution = Weight * Value^Exponent. Values without a matching spec
// contribute with weight 1 and exponent 1.
type MonitoredSpec struct {
	Name     string  `yaml:"name"`
	Weight   float64 `yaml:"weight"`
	Exponent float64 `yaml:"exponent"`
}

// OutcomeAggregator combines monitored values into a single scalar outcome
// and per-signal costs into a single scalar cost.
//
// The default outcome combination is the element-wise product, not the sum:
// outcome components are modulators of one another (reward × accuracy), so a
// zero in any component zeroes the outcome.
type OutcomeAggregator struct {
	// Specs reweight monitored values by name before combination.
	Specs []MonitoredSpec
	// CombineOutcome folds contributions into one outcome. Nil means product.
	CombineOutcome func([]float64) float64
	// CombineCosts folds per-signal costs into one cost. Nil means sum.
	CombineCosts func([]float64) float64
}

// AggregateOutcome combines monitored values per the aggregator's spec.
// Returns 0 when there are no monitored values.
func (a OutcomeAggregator) AggregateOutcome(values []MonitoredValue) float64 {
	if len(values) == 0 {
		return 0
	}
	contribs := make([]float64, len(values))
	for i, mv := range values {
		weight, exponent := 1.0, 1.0
		for _, spec := range a.Specs {
			if spec.Name == mv.Name {
				weight, exponent = spec.Weight, spec.Exponent
				break
			}
		}
		contribs[i] = weight * math.Pow(mv.Value, exponent)
	}
	if a.CombineOutcome != nil {
		return a.CombineOutcome(contribs)
	}
	return floats.Prod(contribs)
}

// AggregateCosts combines per-signal costs. Returns 0 for an empty list.
func (a OutcomeAggregator) AggregateCosts(costs []float64) float64 {
	if len(costs) == 0 {
		return 0
	}
	if a.CombineCosts != nil {
		return a.CombineCosts(costs)
	}
	return floats.Sum(costs)
}

// NetValueFunc combines an aggregated outcome and an aggregated cost into the
// search objective.
type NetValueFunc func(outcome, cost float64) float64

// DefaultNetValue is outcome minus cost: the expected value of control.
func DefaultNetValue(outcome, cost float64) float64 { return outcome - cost }
