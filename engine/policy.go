package engine

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// AllocationPolicy is one full assignment of allocations to all control
// signals, in fixed signal order. Immutable once constructed; compared by
// positional value.
type AllocationPolicy struct {
	values []float64
}

// NewAllocationPolicy copies values into an immutable policy.
func NewAllocationPolicy(values []float64) AllocationPolicy {
	cp := make([]float64, len(values))
	copy(cp, values)
	return AllocationPolicy{values: cp}
}

// Len returns the number of signals the policy covers.
func (p AllocationPolicy) Len() int { return len(p.values) }

// Value returns the allocation for the i-th signal.
func (p AllocationPolicy) Value(i int) float64 { return p.values[i] }

// Values returns a copy of the allocation vector.
func (p AllocationPolicy) Values() []float64 {
	cp := make([]float64, len(p.values))
	copy(cp, p.values)
	return cp
}

// Equal reports positional equality with another policy.
func (p AllocationPolicy) Equal(other AllocationPolicy) bool {
	if len(p.values) != len(other.values) {
		return false
	}
	for i, v := range p.values {
		if v != other.values[i] {
			return false
		}
	}
	return true
}

// Distance returns the Euclidean distance to another policy of the same
// length. Used for the reconfiguration cost between consecutive commits.
func (p AllocationPolicy) Distance(other AllocationPolicy) float64 {
	if len(p.values) != len(other.values) {
		panic(fmt.Sprintf("policy length mismatch: %d vs %d", len(p.values), len(other.values)))
	}
	return floats.Distance(p.values, other.values, 2)
}

// String renders the policy as "(v0, v1, ...)".
func (p AllocationPolicy) String() string {
	parts := make([]string, len(p.values))
	for i, v := range p.values {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// CandidateEvaluation pairs an AllocationPolicy with its simulated outcome,
// aggregated cost and net value. Created transiently during search; retained
// in the search history when history-keeping is enabled.
type CandidateEvaluation struct {
	Policy   AllocationPolicy
	Outcomes []float64 // per-trial outcomes (one entry per replicate trial)
	Outcome  float64   // trial-averaged outcome
	Cost     float64   // aggregated per-signal cost
	NetValue float64   // search objective; -Inf for failed candidates
	Reason   string    // non-empty when the candidate's evaluation failed
}

// Failed reports whether the candidate's simulation failed or timed out.
func (ce CandidateEvaluation) Failed() bool { return ce.Reason != "" }
