package engine

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Bundle holds the engine's unified configuration, loadable from a YAML file.
// Pointer fields mean "not set in YAML" and fall back to defaults.
type Bundle struct {
	Signals []SignalConfig `yaml:"signals"`
	Search  SearchConfig   `yaml:"search"`
	Outcome OutcomeConfig  `yaml:"outcome"`
	Control ControlConfig  `yaml:"control"`
}

// SignalConfig declares one control signal. Samples may be given explicitly
// or as a "start:stop:step" range string (stop inclusive within a half-step
// tolerance); exactly one of the two must be set.
type SignalConfig struct {
	Name        string    `yaml:"name"`
	Owner       string    `yaml:"owner"`
	Samples     []float64 `yaml:"samples"`
	Range       string    `yaml:"range"`
	CostOptions []string  `yaml:"cost_options"` // intensity, adjustment, duration; omitted = intensity
	Transform   string    `yaml:"transform"`    // exponential (default) or identity

	IntensityCost  *CostFnConfig `yaml:"intensity_cost"`
	AdjustmentCost *CostFnConfig `yaml:"adjustment_cost"`
	DurationCost   *CostFnConfig `yaml:"duration_cost"`
}

// CostFnConfig selects a cost function by name with optional parameters.
type CostFnConfig struct {
	Name        string   `yaml:"name"` // exponential, linear, quadratic
	Rate        *float64 `yaml:"rate"`
	Scale       *float64 `yaml:"scale"`
	Slope       *float64 `yaml:"slope"`
	Intercept   *float64 `yaml:"intercept"`
	Coefficient *float64 `yaml:"coefficient"`
}

// SearchConfig selects and tunes the policy search strategy.
type SearchConfig struct {
	Strategy              string           `yaml:"strategy"` // grid (default) or gradient
	Workers               int              `yaml:"workers"`
	KeepHistory           bool             `yaml:"keep_history"`
	PerCandidateTimeoutMs int64            `yaml:"per_candidate_timeout_ms"`
	LearningRate          float64          `yaml:"learning_rate"`
	ConvergenceCriterion  float64          `yaml:"convergence_criterion"`
	MaxIterations         int              `yaml:"max_iterations"`
	Model                 *PredictiveModel `yaml:"model"`
}

// OutcomeConfig declares the monitored-value weights and exponents.
type OutcomeConfig struct {
	Monitored []MonitoredSpec `yaml:"monitored"`
}

// ControlConfig tunes the control-loop driver.
type ControlConfig struct {
	Trials              int  `yaml:"trials"`
	ReconfigurationCost bool `yaml:"reconfiguration_cost"`
	CacheSize           int  `yaml:"cache_size"`
}

// validStrategies is the set of recognized search strategy names.
var validStrategies = map[string]bool{"": true, "grid": true, "gradient": true}

// validTransforms is the set of recognized intensity transform names.
var validTransforms = map[string]bool{"": true, "exponential": true, "identity": true}

// validCostFns is the set of recognized cost function names.
var validCostFns = map[string]bool{"exponential": true, "linear": true, "quadratic": true}

// validCostOptions maps cost option names to their flags.
var validCostOptions = map[string]CostOption{
	"intensity":  CostIntensity,
	"adjustment": CostAdjustment,
	"duration":   CostDuration,
	"none":       CostNone,
}

// LoadBundle reads and parses a YAML engine configuration file.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading engine config: %w", err)
	}
	var bundle Bundle
	if err := yaml.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("parsing engine config: %w", err)
	}
	return &bundle, nil
}

// Validate returns an error describing the first invalid field.
func (b *Bundle) Validate() error {
	if len(b.Signals) == 0 {
		return fmt.Errorf("at least one signal is required")
	}
	seen := make(map[string]bool, len(b.Signals))
	for i, sc := range b.Signals {
		if sc.Name == "" {
			return fmt.Errorf("signal %d has no name", i)
		}
		id := sc.Owner + "." + sc.Name
		if seen[id] {
			return fmt.Errorf("duplicate signal %q", id)
		}
		seen[id] = true
		if len(sc.Samples) == 0 && sc.Range == "" {
			return fmt.Errorf("signal %q needs samples or a range", id)
		}
		if len(sc.Samples) > 0 && sc.Range != "" {
			return fmt.Errorf("signal %q sets both samples and a range", id)
		}
		if sc.Range != "" {
			if _, err := ParseSampleRange(sc.Range); err != nil {
				return fmt.Errorf("signal %q: %w", id, err)
			}
		}
		if !validTransforms[sc.Transform] {
			return fmt.Errorf("signal %q has unknown transform %q", id, sc.Transform)
		}
		for _, opt := range sc.CostOptions {
			if _, ok := validCostOptions[opt]; !ok {
				return fmt.Errorf("signal %q has unknown cost option %q", id, opt)
			}
		}
		for _, fc := range []*CostFnConfig{sc.IntensityCost, sc.AdjustmentCost, sc.DurationCost} {
			if fc != nil && !validCostFns[fc.Name] {
				return fmt.Errorf("signal %q has unknown cost function %q", id, fc.Name)
			}
		}
	}

	if !validStrategies[b.Search.Strategy] {
		return fmt.Errorf("unknown search strategy %q", b.Search.Strategy)
	}
	if b.Search.Strategy == "gradient" {
		if b.Search.Model == nil {
			return fmt.Errorf("gradient strategy requires a predictive model")
		}
		if err := b.Search.Model.Validate(len(b.Signals)); err != nil {
			return err
		}
		if b.Search.LearningRate <= 0 {
			return fmt.Errorf("gradient strategy requires a positive learning_rate, got %v", b.Search.LearningRate)
		}
		if b.Search.MaxIterations <= 0 {
			return fmt.Errorf("gradient strategy requires positive max_iterations, got %d", b.Search.MaxIterations)
		}
	}
	if b.Search.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", b.Search.Workers)
	}
	if b.Control.Trials < 0 {
		return fmt.Errorf("trials must be non-negative, got %d", b.Control.Trials)
	}

	for _, spec := range b.Outcome.Monitored {
		if spec.Name == "" {
			return fmt.Errorf("monitored spec has no name")
		}
		if math.IsNaN(spec.Weight) || math.IsInf(spec.Weight, 0) {
			return fmt.Errorf("monitored %q weight must be finite, got %v", spec.Name, spec.Weight)
		}
	}
	return nil
}

// BuildSignals constructs the configured control signals in declaration order.
func (b *Bundle) BuildSignals() ([]*ControlSignal, error) {
	signals := make([]*ControlSignal, 0, len(b.Signals))
	for _, sc := range b.Signals {
		samples := sc.Samples
		if sc.Range != "" {
			parsed, err := ParseSampleRange(sc.Range)
			if err != nil {
				return nil, fmt.Errorf("signal %q: %w", sc.Name, err)
			}
			samples = parsed
		}

		sig := NewControlSignal(sc.Owner, sc.Name, samples)
		if sc.Transform == "identity" {
			sig.Transform = IdentityTransform()
		}
		if len(sc.CostOptions) > 0 {
			opts := CostNone
			for _, name := range sc.CostOptions {
				opts |= validCostOptions[name]
			}
			sig.Options = opts
		}
		if sc.IntensityCost != nil {
			sig.IntensityCost = sc.IntensityCost.build()
		}
		if sc.AdjustmentCost != nil {
			sig.AdjustmentCost = sc.AdjustmentCost.build()
		}
		if sc.DurationCost != nil {
			sig.DurationCost = sc.DurationCost.build()
		}
		signals = append(signals, sig)
	}
	return signals, nil
}

func (fc *CostFnConfig) build() CostFunction {
	deref := func(p *float64, fallback float64) float64 {
		if p != nil {
			return *p
		}
		return fallback
	}
	switch fc.Name {
	case "exponential":
		return ExponentialCost(deref(fc.Rate, 1), deref(fc.Scale, 1))
	case "linear":
		return LinearCost(deref(fc.Slope, 1), deref(fc.Intercept, 0))
	case "quadratic":
		return QuadraticCost(deref(fc.Coefficient, 1))
	}
	// Validate rejects unknown names before build is reached.
	panic(fmt.Sprintf("unknown cost function %q", fc.Name))
}

// BuildStrategy constructs the configured search strategy.
func (b *Bundle) BuildStrategy() (Strategy, error) {
	switch b.Search.Strategy {
	case "", "grid":
		return &GridSearch{Workers: b.Search.Workers, KeepHistory: b.Search.KeepHistory}, nil
	case "gradient":
		return &GradientAscent{
			Model:                b.Search.Model,
			LearningRate:         b.Search.LearningRate,
			ConvergenceCriterion: b.Search.ConvergenceCriterion,
			MaxIterations:        b.Search.MaxIterations,
			KeepHistory:          b.Search.KeepHistory,
		}, nil
	}
	return nil, fmt.Errorf("unknown search strategy %q", b.Search.Strategy)
}

// BuildDriverConfig constructs the driver configuration, including replicate
// trial inputs (Control.Trials empty input sets when positive).
func (b *Bundle) BuildDriverConfig() DriverConfig {
	cfg := DriverConfig{
		Aggregator:                OutcomeAggregator{Specs: b.Outcome.Monitored},
		EnableReconfigurationCost: b.Control.ReconfigurationCost,
		KeepHistory:               b.Search.KeepHistory,
		CacheSize:                 b.Control.CacheSize,
	}
	if b.Search.PerCandidateTimeoutMs > 0 {
		cfg.PerCandidateTimeout = time.Duration(b.Search.PerCandidateTimeoutMs) * time.Millisecond
	}
	for i := 0; i < b.Control.Trials; i++ {
		cfg.TrialInputs = append(cfg.TrialInputs, nil)
	}
	return cfg
}

// ParseSampleRange parses a "start:stop:step" range string into an inclusive
// sample list, e.g. "0:4.0:0.2". Step must be positive and start ≤ stop.
func ParseSampleRange(s string) ([]float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid sample range %q (expected start:stop:step)", s)
	}
	nums := make([]float64, 3)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid sample range %q: %w", s, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("sample range %q has non-finite bound", s)
		}
		nums[i] = v
	}
	start, stop, step := nums[0], nums[1], nums[2]
	if step <= 0 {
		return nil, fmt.Errorf("sample range %q needs a positive step", s)
	}
	if start > stop {
		return nil, fmt.Errorf("sample range %q has start > stop", s)
	}

	var samples []float64
	for v := start; v <= stop+step/2; v += step {
		samples = append(samples, v)
	}
	return samples, nil
}
