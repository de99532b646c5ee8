package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/control-sim/control-sim/engine/checkpoint"
	"github.com/control-sim/control-sim/engine/trace"
)

// DriverConfig configures the control-loop driver.
type DriverConfig struct {
	// Aggregator combines monitored values and per-signal costs.
	Aggregator OutcomeAggregator
	// NetValue combines outcome and cost; nil means outcome - cost.
	NetValue NetValueFunc
	// TrialInputs are the predicted input sets simulated per candidate, one
	// entry per replicate trial. Empty means a single trial with nil inputs.
	TrialInputs [][]float64
	// PerCandidateTimeout bounds one candidate's evaluation; 0 means none.
	// On expiry the candidate is scored -Inf and the search continues.
	PerCandidateTimeout time.Duration
	// EnableReconfigurationCost tracks the distance between consecutive
	// committed policies.
	EnableReconfigurationCost bool
	// KeepHistory retains every candidate evaluation across cycles.
	KeepHistory bool
	// CacheSize enables evaluation memoization when positive. Only sound for
	// deterministic agents with static trial inputs.
	CacheSize int
}

// Driver runs the per-cycle control loop: read monitored state, search for
// the best allocation policy, commit it to the signals' real allocations, and
// track reconfiguration cost across cycles.
//
// A committed policy takes effect on the next cycle of the controlled
// network's execution; it never retroactively affects the cycle whose outcome
// triggered the search. Only the driver's commit step writes real state, and
// only after the cycle's search has fully completed.
type Driver struct {
	agent    Agent
	signals  []*ControlSignal
	space    *AllocationSpace
	strategy Strategy
	costs    *CostModel
	cfg      DriverConfig
	cache    *EvaluationCache

	mu          sync.Mutex
	cycle       int
	prevPolicy  *AllocationPolicy
	reconfCost  float64
	history     []CandidateEvaluation
	searchTrace *trace.SearchTrace
}

// NewDriver validates the configuration and builds a Driver.
func NewDriver(agent Agent, signals []*ControlSignal, strategy Strategy, cfg DriverConfig) (*Driver, error) {
	if agent == nil {
		return nil, fmt.Errorf("driver requires an agent")
	}
	if len(signals) == 0 {
		return nil, fmt.Errorf("driver requires at least one control signal")
	}
	for _, sig := range signals {
		if err := sig.Validate(); err != nil {
			return nil, err
		}
	}
	if strategy == nil {
		return nil, fmt.Errorf("driver requires a search strategy")
	}

	d := &Driver{
		agent:       agent,
		signals:     signals,
		space:       NewAllocationSpace(signals),
		strategy:    strategy,
		costs:       NewCostModel(),
		cfg:         cfg,
		searchTrace: trace.NewSearchTrace(),
	}
	if cfg.CacheSize > 0 {
		cache, err := NewEvaluationCache(cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		d.cache = cache
	}
	return d, nil
}

// Space returns the driver's allocation space.
func (d *Driver) Space() *AllocationSpace { return d.space }

// RunControlCycle executes one real control cycle under the given real
// execution context and returns the committed policy, which governs the
// network's next execution cycle.
func (d *Driver) RunControlCycle(ctx context.Context, real ExecutionContext) (AllocationPolicy, error) {
	if real.IsSimulation() {
		return AllocationPolicy{}, fmt.Errorf("control cycle requires a real execution context, got simulation %q", real.ID())
	}

	d.mu.Lock()
	d.cycle++
	cycle := d.cycle
	d.mu.Unlock()

	monitored := d.agent.MonitoredOutputs(real)
	logrus.Debugf("cycle %d: monitored outcome %.6g over %d values",
		cycle, d.cfg.Aggregator.AggregateOutcome(monitored), len(monitored))

	d.costs.BeginCycle()
	eval := &Evaluator{
		Runner: &SimulationRunner{
			Agent:      d.agent,
			Signals:    d.signals,
			Aggregator: d.cfg.Aggregator,
		},
		Costs:       d.costs,
		NetValue:    d.cfg.NetValue,
		TrialInputs: d.cfg.TrialInputs,
		Timeout:     d.cfg.PerCandidateTimeout,
		Cache:       d.cache,
	}

	res, err := d.strategy.Search(ctx, d.space, eval)
	if err != nil {
		return AllocationPolicy{}, fmt.Errorf("control cycle %d: %w", cycle, err)
	}

	// All candidate evaluations are done; commit is the only writer of real
	// state.
	d.commit(cycle, res)

	logrus.Infof("cycle %d: committed policy %s (net value %.6g, reconfiguration cost %.6g)",
		cycle, res.Best, res.BestValue, d.ReconfigurationCost())
	return res.Best, nil
}

func (d *Driver) commit(cycle int, res *SearchResult) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cfg.EnableReconfigurationCost && d.prevPolicy != nil {
		d.reconfCost = res.Best.Distance(*d.prevPolicy)
	} else {
		d.reconfCost = 0
	}

	for i, sig := range d.signals {
		value := res.Best.Value(i)
		sig.Commit(value, d.costs.commitCost(sig, value))
	}
	committed := res.Best
	d.prevPolicy = &committed

	if d.cfg.KeepHistory && res.History != nil {
		d.history = append(d.history, res.History...)
		selected := false
		for i, ce := range res.History {
			isBest := !selected && !ce.Failed() && ce.Policy.Equal(res.Best)
			if isBest {
				selected = true
			}
			d.searchTrace.Record(trace.CandidateRecord{
				Cycle:       cycle,
				Ordinal:     i,
				Allocations: ce.Policy.Values(),
				Outcome:     ce.Outcome,
				Cost:        ce.Cost,
				NetValue:    ce.NetValue,
				Selected:    isBest,
				Reason:      ce.Reason,
			})
		}
	}
}

// SearchHistory returns a copy of every retained candidate evaluation, in
// evaluation order across cycles. Empty unless KeepHistory is set and the
// strategy records history.
func (d *Driver) SearchHistory() []CandidateEvaluation {
	d.mu.Lock()
	defer d.mu.Unlock()
	history := make([]CandidateEvaluation, len(d.history))
	copy(history, d.history)
	return history
}

// Trace returns the accumulated search trace for diagnostic export.
func (d *Driver) Trace() *trace.SearchTrace {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.searchTrace
}

// ReconfigurationCost returns the distance between the two most recently
// committed policies. Zero on the first cycle and when tracking is disabled.
func (d *Driver) ReconfigurationCost() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reconfCost
}

// PreviousPolicy returns the most recently committed policy, if any.
func (d *Driver) PreviousPolicy() (AllocationPolicy, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.prevPolicy == nil {
		return AllocationPolicy{}, false
	}
	return *d.prevPolicy, true
}

// Cycle returns the number of completed control cycles.
func (d *Driver) Cycle() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cycle
}

// Checkpoint exports the driver's cross-cycle state.
func (d *Driver) Checkpoint() *checkpoint.State {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := &checkpoint.State{}
	if d.prevPolicy != nil {
		st.PreviousPolicy = d.prevPolicy.Values()
	}
	for _, sig := range d.signals {
		lastIntensity, _ := sig.LastIntensity()
		st.Signals = append(st.Signals, checkpoint.SignalRecord{
			ParameterID:         sig.ID(),
			PreviousIntensity:   lastIntensity,
			DurationAccumulator: sig.DurationAccumulator(),
		})
	}
	return st
}

// Restore reinstates cross-cycle state from a checkpoint. Signal records are
// matched by parameter ID; records for unknown signals are an error.
func (d *Driver) Restore(st *checkpoint.State) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	byID := make(map[string]*ControlSignal, len(d.signals))
	for _, sig := range d.signals {
		byID[sig.ID()] = sig
	}
	for _, record := range st.Signals {
		sig, ok := byID[record.ParameterID]
		if !ok {
			return fmt.Errorf("checkpoint references unknown signal %q", record.ParameterID)
		}
		sig.RestoreCostState(record.PreviousIntensity, record.DurationAccumulator)
	}
	if st.PreviousPolicy != nil {
		if len(st.PreviousPolicy) != len(d.signals) {
			return fmt.Errorf("checkpoint policy covers %d signals, driver has %d", len(st.PreviousPolicy), len(d.signals))
		}
		policy := NewAllocationPolicy(st.PreviousPolicy)
		d.prevPolicy = &policy
	}
	return nil
}
