package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAllocationPolicy_Immutable verifies neither the constructor input nor
// the Values copy can mutate the policy.
func TestAllocationPolicy_Immutable(t *testing.T) {
	input := []float64{1, 2, 3}
	policy := NewAllocationPolicy(input)

	input[0] = 99
	assert.Equal(t, 1.0, policy.Value(0))

	out := policy.Values()
	out[1] = 99
	assert.Equal(t, 2.0, policy.Value(1))
}

// TestAllocationPolicy_Equal verifies positional comparison.
func TestAllocationPolicy_Equal(t *testing.T) {
	a := NewAllocationPolicy([]float64{1, 2})
	assert.True(t, a.Equal(NewAllocationPolicy([]float64{1, 2})))
	assert.False(t, a.Equal(NewAllocationPolicy([]float64{2, 1})))
	assert.False(t, a.Equal(NewAllocationPolicy([]float64{1, 2, 3})))
	assert.True(t, NewAllocationPolicy(nil).Equal(NewAllocationPolicy(nil)))
}

// TestAllocationPolicy_Distance verifies the Euclidean distance between
// policies and the panic on mismatched lengths.
func TestAllocationPolicy_Distance(t *testing.T) {
	a := NewAllocationPolicy([]float64{0, 0})
	b := NewAllocationPolicy([]float64{3, 4})
	assert.Equal(t, 5.0, a.Distance(b))
	assert.Equal(t, 0.0, b.Distance(b))

	assert.Panics(t, func() {
		a.Distance(NewAllocationPolicy([]float64{1}))
	})
}

// TestAllocationPolicy_String verifies the human-readable rendering used in
// logs.
func TestAllocationPolicy_String(t *testing.T) {
	assert.Equal(t, "(0, 0.5, 1)", NewAllocationPolicy([]float64{0, 0.5, 1}).String())
	assert.Equal(t, "()", NewAllocationPolicy(nil).String())
}

// TestCandidateEvaluation_Failed verifies the failure flag keys off Reason.
func TestCandidateEvaluation_Failed(t *testing.T) {
	assert.False(t, CandidateEvaluation{}.Failed())
	assert.True(t, CandidateEvaluation{Reason: "timed out"}.Failed())
}
