package engine

import "math"

// CostFunction is a scalar cost term with an analytic derivative. The
// derivative is only consulted by gradient-based search; grid search uses F
// alone.
type CostFunction struct {
	Name       string
	F          func(x float64) float64
	Derivative func(x float64) float64
}

// ExponentialCost returns scale * e^(rate*x).
func ExponentialCost(rate, scale float64) CostFunction {
	return CostFunction{
		Name:       "exponential",
		F:          func(x float64) float64 { return scale * math.Exp(rate*x) },
		Derivative: func(x float64) float64 { return rate * scale * math.Exp(rate*x) },
	}
}

// LinearCost returns slope*x + intercept.
func LinearCost(slope, intercept float64) CostFunction {
	return CostFunction{
		Name:       "linear",
		F:          func(x float64) float64 { return slope*x + intercept },
		Derivative: func(x float64) float64 { return slope },
	}
}

// QuadraticCost returns coefficient * x^2.
func QuadraticCost(coefficient float64) CostFunction {
	return CostFunction{
		Name:       "quadratic",
		F:          func(x float64) float64 { return coefficient * x * x },
		Derivative: func(x float64) float64 { return 2 * coefficient * x },
	}
}

// Transform maps a raw allocation to an intensity. It must be monotonic so
// that cost ordering is preserved under the transform.
type Transform struct {
	Name       string
	F          func(x float64) float64
	Derivative func(x float64) float64
}

// ExponentialTransform returns the intensity transform e^(rate*x).
func ExponentialTransform(rate float64) Transform {
	return Transform{
		Name:       "exponential",
		F:          func(x float64) float64 { return math.Exp(rate * x) },
		Derivative: func(x float64) float64 { return rate * math.Exp(rate*x) },
	}
}

// IdentityTransform returns the identity intensity transform.
func IdentityTransform() Transform {
	return Transform{
		Name:       "identity",
		F:          func(x float64) float64 { return x },
		Derivative: func(x float64) float64 { return 1 },
	}
}
