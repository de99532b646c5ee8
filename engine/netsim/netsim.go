// Package netsim provides a reference simulatable network for the
// control-allocation engine: two controlled stimulus pathways and an
// automatic pathway feed a noisy threshold decision stage, with reward,
// accuracy and response time as monitored outputs.
//
// State is kept strictly per execution context, so exploratory evaluations
// under simulation contexts never disturb the real run or each other.
package netsim

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/control-sim/control-sim/engine"
)

// Monitored output names exposed by the network.
const (
	MonitorReward       = "reward"
	MonitorAccuracy     = "accuracy"
	MonitorResponseTime = "response_time"
)

// Config holds the network's fixed parameters.
type Config struct {
	TargetWeight     float64 // drift contribution per unit of gained target input
	DistractorWeight float64 // drift contribution per unit of gained distractor input
	AutomaticWeight  float64 // uncontrolled pathway contribution
	Threshold        float64 // decision threshold
	Noise            float64 // diffusion noise; 0 makes the network deterministic
	NonDecisionTime  float64 // fixed response-time floor
	RewardMagnitude  float64 // reward for a correct response
	Seed             int64   // master seed for per-context RNG streams
}

// DefaultConfig returns the parameterization used by the demo CLI.
func DefaultConfig() Config {
	return Config{
		TargetWeight:     0.065,
		DistractorWeight: -0.065,
		AutomaticWeight:  0.01,
		Threshold:        0.21,
		Noise:            0.19,
		NonDecisionTime:  0.2,
		RewardMagnitude:  10,
		Seed:             42,
	}
}

// Validate returns an error if the config is invalid.
func (c Config) Validate() error {
	if c.Threshold <= 0 {
		return fmt.Errorf("Threshold must be positive, got %v", c.Threshold)
	}
	if c.Noise < 0 {
		return fmt.Errorf("Noise must be non-negative, got %v", c.Noise)
	}
	if c.NonDecisionTime < 0 {
		return fmt.Errorf("NonDecisionTime must be non-negative, got %v", c.NonDecisionTime)
	}
	return nil
}

// contextState is the per-execution-context trace of the last trial.
type contextState struct {
	reward       float64
	accuracy     float64
	responseTime float64
	trials       int
}

// Network is a small simulatable model implementing engine.Agent. The first
// two control signals gate the target and distractor pathways; additional
// signals are ignored by the dynamics but still honored for isolation.
type Network struct {
	cfg     Config
	signals []*engine.ControlSignal // referenced, not copied
	rng     *engine.PartitionedRNG

	mu     sync.Mutex
	states map[string]*contextState
}

// New builds a Network over the given control signals.
func New(cfg Config, signals []*engine.ControlSignal) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(signals) == 0 {
		return nil, fmt.Errorf("network requires at least one control signal")
	}
	return &Network{
		cfg:     cfg,
		signals: signals,
		rng:     engine.NewPartitionedRNG(engine.SimulationKey(cfg.Seed)),
		states:  make(map[string]*contextState),
	}, nil
}

// Execute runs one trial under ec. Inputs are [target, distractor]; missing
// entries default to 1.
func (n *Network) Execute(ctx context.Context, ec engine.ExecutionContext, inputs []float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, distractor := 1.0, 1.0
	if len(inputs) > 0 {
		target = inputs[0]
	}
	if len(inputs) > 1 {
		distractor = inputs[1]
	}

	// Pathway gains come from the signals' context-tagged intensities; this
	// is the isolation boundary for candidate evaluation.
	targetGain, distractorGain := 1.0, 1.0
	if len(n.signals) > 0 {
		targetGain = n.signals[0].Intensity(ec)
	}
	if len(n.signals) > 1 {
		distractorGain = n.signals[1].Intensity(ec)
	}

	drift := n.cfg.TargetWeight*target*targetGain +
		n.cfg.DistractorWeight*distractor*distractorGain +
		n.cfg.AutomaticWeight*(target+distractor)

	accuracy := n.accuracy(drift)
	responseTime := n.responseTime(drift)
	reward := n.cfg.RewardMagnitude * accuracy
	if n.cfg.Noise > 0 {
		// Stochastic trial outcome: sample correctness from the accuracy.
		rng := n.rng.ForContext(ec.ID())
		if rng.Float64() >= accuracy {
			reward = 0
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	st, ok := n.states[ec.ID()]
	if !ok {
		st = &contextState{}
		n.states[ec.ID()] = st
	}
	st.reward = reward
	st.accuracy = accuracy
	st.responseTime = responseTime
	st.trials++
	return nil
}

// accuracy is the closed-form probability of reaching the correct threshold
// for a drift-diffusion decision.
func (n *Network) accuracy(drift float64) float64 {
	if n.cfg.Noise == 0 {
		// Noise-free limit: the sign of the drift decides.
		switch {
		case drift > 0:
			return 1
		case drift < 0:
			return 0
		default:
			return 0.5
		}
	}
	return 1 / (1 + math.Exp(-2*drift*n.cfg.Threshold/(n.cfg.Noise*n.cfg.Noise)))
}

// responseTime approximates mean decision time: threshold crossing slows as
// drift weakens.
func (n *Network) responseTime(drift float64) float64 {
	const minDrift = 1e-6
	magnitude := math.Abs(drift)
	if magnitude < minDrift {
		magnitude = minDrift
	}
	return n.cfg.NonDecisionTime + n.cfg.Threshold/magnitude*math.Tanh(n.cfg.Threshold*magnitude)
}

// MonitoredOutputs returns the monitored values of the most recent trial
// under ec. A context that never executed reports zeros.
func (n *Network) MonitoredOutputs(ec engine.ExecutionContext) []engine.MonitoredValue {
	n.mu.Lock()
	defer n.mu.Unlock()

	st, ok := n.states[ec.ID()]
	if !ok {
		st = &contextState{}
	}
	return []engine.MonitoredValue{
		{Name: MonitorReward, Value: st.reward},
		{Name: MonitorAccuracy, Value: st.accuracy},
		{Name: MonitorResponseTime, Value: st.responseTime},
	}
}

// Trials returns how many trials have executed under ec. Diagnostic surface
// used by isolation tests.
func (n *Network) Trials(ec engine.ExecutionContext) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if st, ok := n.states[ec.ID()]; ok {
		return st.trials
	}
	return 0
}

// Discard drops the state and RNG stream of a finished context.
func (n *Network) Discard(ec engine.ExecutionContext) {
	n.mu.Lock()
	delete(n.states, ec.ID())
	n.mu.Unlock()
	n.rng.Release(ec.ID())
}
