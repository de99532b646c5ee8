// Package engine implements expected-value-of-control optimization for a
// controlled network of interdependent computational nodes: given a set of
// controllable parameters (control signals), it searches over candidate
// allocation policies, scores each one by simulating the network in an
// isolated execution context, and commits the best policy for the next
// real execution cycle.
//
// # Reading Guide
//
// Start with these three files to understand the optimization kernel:
//   - signal.go: ControlSignal state (real allocation + per-context overlays)
//   - runner.go: isolated what-if evaluation of one candidate policy
//   - driver.go: the per-cycle read → search → commit control loop
//
// # Architecture
//
// The engine package defines interfaces and value types; supporting
// implementations live in sub-packages:
//   - engine/netsim/: reference simulatable network honoring context isolation
//   - engine/trace/: search-history recording and JSONL export
//   - engine/checkpoint/: flat-file persistence of cross-cycle cost state
//
// # Key Interfaces
//
// The extension points are small interfaces and function-valued fields:
//   - Agent: the controlled network (execute under a context, read monitored outputs)
//   - Strategy: policy search (GridSearch exhaustive, GradientAscent iterative)
//   - CostFunction / Transform: differentiable cost terms and intensity transforms
//   - OutcomeAggregator / NetValueFunc: candidate scoring
//
// Exploratory evaluations run under SimulationContext identifiers so that two
// concurrent evaluations, or an evaluation and the real run, never observe
// each other's intermediate state.
package engine
