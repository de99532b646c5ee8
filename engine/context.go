package engine

import (
	"strconv"

	"github.com/google/uuid"
)

// defaultRealContextID is the execution context identifier used for the real
// (non-simulated) run when the caller does not supply one.
const defaultRealContextID = "real"

// ExecutionContext identifies one isolated execution scope of the controlled
// network. The real run and every in-flight what-if evaluation each carry a
// distinct context; state tagged with one context must never be visible
// through another.
type ExecutionContext struct {
	id         string
	simulation bool
}

// NewRealContext returns the execution context for the real run. An empty id
// selects the default real context.
func NewRealContext(id string) ExecutionContext {
	if id == "" {
		id = defaultRealContextID
	}
	return ExecutionContext{id: id}
}

// NewSimulationContext returns a fresh, unique context for one ad-hoc
// exploratory evaluation. The ID is random, so agents that seed randomness
// from the context ID are not reproducible under it; search strategies use
// NewNumberedSimulationContext instead.
func NewSimulationContext() ExecutionContext {
	return ExecutionContext{id: "sim-" + uuid.NewString(), simulation: true}
}

// NewNumberedSimulationContext returns the deterministic simulation context
// for one candidate ordinal. The ID depends only on the ordinal, so a
// candidate's context, and any context-seeded randomness in the agent,
// is identical across repeated searches over the same space.
func NewNumberedSimulationContext(ordinal int) ExecutionContext {
	return ExecutionContext{id: "sim-" + strconv.Itoa(ordinal), simulation: true}
}

// ID returns the context identifier string.
func (ec ExecutionContext) ID() string { return ec.id }

// IsSimulation reports whether this context scopes an exploratory evaluation.
func (ec ExecutionContext) IsSimulation() bool { return ec.simulation }
