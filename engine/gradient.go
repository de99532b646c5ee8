package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// PredictiveModel is a learned linear model of the outcome as a function of
// feature values and control allocations. GradientAscent climbs this model in
// closed form instead of re-simulating the network at every step.
//
// Predicted net value =
//
//	Σ_j FeatureWeights[j]·FeatureValues[j]
//	+ Σ_i alloc[i]·(ControlWeights[i] + Σ_j InteractionWeights[i][j]·FeatureValues[j])
//	− Σ_i CostWeights[i]·cost[i]
type PredictiveModel struct {
	FeatureValues      []float64   `yaml:"feature_values"`
	FeatureWeights     []float64   `yaml:"feature_weights"`
	ControlWeights     []float64   `yaml:"control_weights"`
	InteractionWeights [][]float64 `yaml:"interaction_weights"` // [signal][feature]
	CostWeights        []float64   `yaml:"cost_weights"`
}

// Validate checks the model's dimensions against the number of signals.
func (m *PredictiveModel) Validate(numSignals int) error {
	if len(m.ControlWeights) != numSignals {
		return fmt.Errorf("predictive model has %d control weights, want %d", len(m.ControlWeights), numSignals)
	}
	if len(m.CostWeights) != numSignals {
		return fmt.Errorf("predictive model has %d cost weights, want %d", len(m.CostWeights), numSignals)
	}
	if len(m.FeatureWeights) != len(m.FeatureValues) {
		return fmt.Errorf("predictive model has %d feature weights for %d feature values", len(m.FeatureWeights), len(m.FeatureValues))
	}
	if m.InteractionWeights != nil {
		if len(m.InteractionWeights) != numSignals {
			return fmt.Errorf("predictive model has %d interaction rows, want %d", len(m.InteractionWeights), numSignals)
		}
		for i, row := range m.InteractionWeights {
			if len(row) != len(m.FeatureValues) {
				return fmt.Errorf("interaction row %d has %d weights for %d feature values", i, len(row), len(m.FeatureValues))
			}
		}
	}
	return nil
}

// gradientConstants precomputes the allocation-independent gradient term per
// signal: the control weight plus the feature-weighted interaction row. The
// feature values do not change during an ascent, so this is computed once.
func (m *PredictiveModel) gradientConstants() []float64 {
	consts := make([]float64, len(m.ControlWeights))
	for i, w := range m.ControlWeights {
		consts[i] = w
		if m.InteractionWeights != nil {
			consts[i] += floats.Dot(m.InteractionWeights[i], m.FeatureValues)
		}
	}
	return consts
}

// Outcome predicts the cost-free outcome for the given allocations.
func (m *PredictiveModel) Outcome(allocations []float64) float64 {
	outcome := 0.0
	if len(m.FeatureValues) > 0 {
		outcome = floats.Dot(m.FeatureWeights, m.FeatureValues)
	}
	return outcome + floats.Dot(allocations, m.gradientConstants())
}

// Value predicts the net value for the given allocations and per-signal costs.
func (m *PredictiveModel) Value(allocations, costs []float64) float64 {
	return m.Outcome(allocations) - floats.Dot(m.CostWeights, costs)
}

// GradientAscent iteratively improves an allocation policy using the
// predictive model's closed-form gradient: per signal, the model's linear and
// interaction contribution minus the derivative of the intensity cost at the
// current point. Allocations are clipped to the space's feasibility bounds.
//
// The ascent converges when successive net values differ by at most
// ConvergenceCriterion; exceeding MaxIterations first is a warning, not a
// failure, and the last point reached is used.
type GradientAscent struct {
	Model                *PredictiveModel
	LearningRate         float64
	ConvergenceCriterion float64
	MaxIterations        int
	KeepHistory          bool
}

// Search implements Strategy.
func (g *GradientAscent) Search(ctx context.Context, space *AllocationSpace, eval *Evaluator) (*SearchResult, error) {
	signals := space.Signals()
	if len(signals) == 0 {
		return nil, ErrEmptySearchSpace
	}
	if g.Model == nil {
		return nil, fmt.Errorf("gradient ascent requires a predictive model")
	}
	if err := g.Model.Validate(len(signals)); err != nil {
		return nil, err
	}
	if g.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %v", g.LearningRate)
	}
	if g.MaxIterations <= 0 {
		return nil, fmt.Errorf("max iterations must be positive, got %d", g.MaxIterations)
	}

	lower, upper := space.Bounds()
	alloc := space.InitialPoint().Values()
	consts := g.Model.gradientConstants()
	costs := make([]float64, len(signals))

	res := &SearchResult{}
	previous := math.Inf(1)
	for iter := 1; ; iter++ {
		if ctx.Err() != nil {
			res.State = SearchCancelled
			res.Partial = true
			break
		}

		for i, sig := range signals {
			intensity := sig.Transform.F(alloc[i])
			costGrad := g.Model.CostWeights[i] * sig.IntensityCost.Derivative(intensity) * sig.Transform.Derivative(alloc[i])
			alloc[i] += g.LearningRate * (consts[i] - costGrad)
			if alloc[i] < lower[i] {
				alloc[i] = lower[i]
			}
			if alloc[i] > upper[i] {
				alloc[i] = upper[i]
			}
			costs[i] = sig.IntensityCost.F(sig.Transform.F(alloc[i]))
		}

		value := g.Model.Value(alloc, costs)
		res.Iterations = iter
		if g.KeepHistory {
			res.History = append(res.History, CandidateEvaluation{
				Policy:   NewAllocationPolicy(alloc),
				Outcome:  g.Model.Outcome(alloc),
				Cost:     floats.Sum(costs),
				NetValue: value,
			})
		}

		if math.Abs(value-previous) <= g.ConvergenceCriterion {
			res.State = SearchConverged
			res.BestValue = value
			break
		}
		if iter >= g.MaxIterations {
			logrus.Warnf("gradient ascent failed to converge after %d iterations; using last point", g.MaxIterations)
			res.State = SearchMaxIterations
			res.BestValue = value
			break
		}
		previous = value
	}

	res.Best = NewAllocationPolicy(alloc)
	if res.State == SearchCancelled {
		// The point reached may predate any completed iteration, so the
		// value is recomputed rather than taken from the loop.
		for i, sig := range signals {
			costs[i] = sig.IntensityCost.F(sig.Transform.F(alloc[i]))
		}
		res.BestValue = g.Model.Value(alloc, costs)
	}
	return res, nil
}
