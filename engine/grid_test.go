package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGridSearch_SelectsMaxNetValue verifies that with zero costs the
// maximum-outcome candidate wins.
func TestGridSearch_SelectsMaxNetValue(t *testing.T) {
	// GIVEN a single cost-free signal whose outcome equals its allocation
	signals := []*ControlSignal{zeroCostSignal("decision", "gain", []float64{0, 0.5, 1.0})}
	agent := newStubAgent(signals, nil)
	eval := newTestEvaluator(agent, signals)

	// WHEN the grid is searched exhaustively
	grid := &GridSearch{}
	res, err := grid.Search(context.Background(), NewAllocationSpace(signals), eval)
	require.NoError(t, err)

	// THEN the largest allocation is selected
	assert.True(t, res.Best.Equal(NewAllocationPolicy([]float64{1.0})), "best policy: %s", res.Best)
	assert.Equal(t, 1.0, res.BestValue)
	assert.Equal(t, SearchCompleted, res.State)
	assert.Equal(t, 3, res.Iterations)
	assert.False(t, res.Partial)
}

// TestGridSearch_CostTiltsSelectionToCheapest verifies that under a constant
// outcome the lowest-cost policy maximizes net value.
func TestGridSearch_CostTiltsSelectionToCheapest(t *testing.T) {
	// GIVEN two signals whose cost equals their allocation, and an agent
	// whose outcome is the same for every candidate
	signals := []*ControlSignal{
		linearCostSignal("decision", "target", []float64{0.2, 0.5, 1.0}),
		linearCostSignal("decision", "distractor", []float64{0.2, 0.5, 1.0}),
	}
	agent := newStubAgent(signals, func([]float64) float64 { return 10 })
	eval := newTestEvaluator(agent, signals)

	// WHEN the grid is searched
	grid := &GridSearch{}
	res, err := grid.Search(context.Background(), NewAllocationSpace(signals), eval)
	require.NoError(t, err)

	// THEN the minimal-allocation policy wins
	assert.True(t, res.Best.Equal(NewAllocationPolicy([]float64{0.2, 0.2})), "best policy: %s", res.Best)
	assert.InDelta(t, 9.6, res.BestValue, 1e-12)
}

// TestGridSearch_TieBreaksToFirstSeen verifies the deterministic tie-break:
// when every candidate scores identically, the first one in enumeration
// order is selected.
func TestGridSearch_TieBreaksToFirstSeen(t *testing.T) {
	signals := []*ControlSignal{
		zeroCostSignal("a", "gain", []float64{0, 1}),
		zeroCostSignal("b", "gain", []float64{0, 1}),
	}
	agent := newStubAgent(signals, func([]float64) float64 { return 5 })
	eval := newTestEvaluator(agent, signals)

	grid := &GridSearch{}
	res, err := grid.Search(context.Background(), NewAllocationSpace(signals), eval)
	require.NoError(t, err)

	assert.True(t, res.Best.Equal(NewAllocationPolicy([]float64{0, 0})), "best policy: %s", res.Best)
	assert.Equal(t, 5.0, res.BestValue)
}

// TestGridSearch_FailedCandidatesExcluded verifies that a candidate whose
// simulation errors is skipped while the search continues over the rest.
func TestGridSearch_FailedCandidatesExcluded(t *testing.T) {
	// GIVEN an agent that rejects allocations above 0.9
	signals := []*ControlSignal{zeroCostSignal("decision", "gain", []float64{0, 0.5, 1.0})}
	agent := newStubAgent(signals, nil)
	agent.failAbove = floatPtr(0.9)
	eval := newTestEvaluator(agent, signals)

	// WHEN the grid is searched with history on
	grid := &GridSearch{KeepHistory: true}
	res, err := grid.Search(context.Background(), NewAllocationSpace(signals), eval)
	require.NoError(t, err)

	// THEN the best feasible candidate wins and the failure is recorded
	assert.True(t, res.Best.Equal(NewAllocationPolicy([]float64{0.5})), "best policy: %s", res.Best)
	assert.Equal(t, SearchCompleted, res.State)
	require.Len(t, res.History, 3)
	failed := 0
	for _, ce := range res.History {
		if ce.Failed() {
			failed++
			assert.True(t, ce.Policy.Equal(NewAllocationPolicy([]float64{1.0})))
		}
	}
	assert.Equal(t, 1, failed)
}

// TestGridSearch_AllCandidatesFail verifies the search surfaces
// ErrSearchExhausted when no candidate can be scored.
func TestGridSearch_AllCandidatesFail(t *testing.T) {
	signals := []*ControlSignal{zeroCostSignal("decision", "gain", []float64{0, 0.5})}
	agent := newStubAgent(signals, nil)
	agent.failAbove = floatPtr(-1)
	eval := newTestEvaluator(agent, signals)

	grid := &GridSearch{}
	res, err := grid.Search(context.Background(), NewAllocationSpace(signals), eval)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrSearchExhausted)
}

// TestGridSearch_EmptySpace verifies empty spaces are rejected up front.
func TestGridSearch_EmptySpace(t *testing.T) {
	agent := newStubAgent(nil, nil)
	grid := &GridSearch{}

	// No signals at all.
	res, err := grid.Search(context.Background(), NewAllocationSpace(nil), &Evaluator{
		Runner: &SimulationRunner{Agent: agent},
		Costs:  NewCostModel(),
	})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrEmptySearchSpace)

	// A signal with an empty sample set.
	signals := []*ControlSignal{zeroCostSignal("decision", "gain", nil)}
	res, err = grid.Search(context.Background(), NewAllocationSpace(signals), newTestEvaluator(newStubAgent(signals, nil), signals))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrEmptySearchSpace)
}

// TestGridSearch_ParallelMatchesSequential verifies worker-pool evaluation
// selects the same policy as a sequential pass, repeatedly.
func TestGridSearch_ParallelMatchesSequential(t *testing.T) {
	build := func() ([]*ControlSignal, *Evaluator) {
		signals := []*ControlSignal{
			linearCostSignal("decision", "target", []float64{0, 0.25, 0.5, 0.75, 1.0}),
			linearCostSignal("decision", "distractor", []float64{0, 0.25, 0.5, 0.75, 1.0}),
		}
		agent := newStubAgent(signals, func(allocations []float64) float64 {
			return 3*allocations[0] + allocations[1]
		})
		return signals, newTestEvaluator(agent, signals)
	}

	signals, eval := build()
	seq, err := (&GridSearch{}).Search(context.Background(), NewAllocationSpace(signals), eval)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		signals, eval = build()
		par, err := (&GridSearch{Workers: 4}).Search(context.Background(), NewAllocationSpace(signals), eval)
		require.NoError(t, err)
		assert.True(t, par.Best.Equal(seq.Best), "run %d: parallel best %s, sequential best %s", i, par.Best, seq.Best)
		assert.Equal(t, seq.BestValue, par.BestValue, "run %d", i)
	}
}

// TestGridSearch_RepeatedSearchesIdentical verifies determinism: the same
// space and agent produce the same selection every time.
func TestGridSearch_RepeatedSearchesIdentical(t *testing.T) {
	signals := []*ControlSignal{
		zeroCostSignal("a", "gain", []float64{0, 0.5, 1.0}),
		zeroCostSignal("b", "gain", []float64{0, 0.5, 1.0}),
	}
	agent := newStubAgent(signals, nil)
	eval := newTestEvaluator(agent, signals)
	space := NewAllocationSpace(signals)

	grid := &GridSearch{}
	first, err := grid.Search(context.Background(), space, eval)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		res, err := grid.Search(context.Background(), space, eval)
		require.NoError(t, err)
		assert.True(t, res.Best.Equal(first.Best))
		assert.Equal(t, first.BestValue, res.BestValue)
	}
}

// TestGridSearch_CancellationReturnsPartialBest verifies cancellation lands
// at a candidate boundary and the best-so-far is returned as a partial
// result.
func TestGridSearch_CancellationReturnsPartialBest(t *testing.T) {
	// GIVEN an agent that cancels the search after its second evaluation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := []*ControlSignal{zeroCostSignal("decision", "gain", []float64{0, 1, 2, 3})}
	evaluated := 0
	agent := newStubAgent(signals, func(allocations []float64) float64 {
		evaluated++
		if evaluated == 2 {
			cancel()
		}
		return allocations[0]
	})
	eval := newTestEvaluator(agent, signals)

	// WHEN the grid is searched sequentially
	grid := &GridSearch{}
	res, err := grid.Search(ctx, NewAllocationSpace(signals), eval)
	require.NoError(t, err)

	// THEN only the first two candidates were scored and the better of them
	// is returned as a partial best
	assert.Equal(t, SearchCancelled, res.State)
	assert.True(t, res.Partial)
	assert.Equal(t, 2, res.Iterations)
	assert.True(t, res.Best.Equal(NewAllocationPolicy([]float64{1})), "best policy: %s", res.Best)
	assert.Equal(t, 1.0, res.BestValue)
}

// TestGridSearch_CancellationMidEvaluationIsSkipNotFailure verifies a
// candidate interrupted by cancellation is counted as skipped, not recorded
// as a failed evaluation in the history.
func TestGridSearch_CancellationMidEvaluationIsSkipNotFailure(t *testing.T) {
	// GIVEN two replicate trials per candidate and an agent that cancels the
	// search during the second candidate's first trial
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := []*ControlSignal{zeroCostSignal("decision", "gain", []float64{0, 1, 2})}
	trials := 0
	agent := newStubAgent(signals, func(allocations []float64) float64 {
		trials++
		if trials == 3 {
			cancel()
		}
		return allocations[0]
	})
	eval := newTestEvaluator(agent, signals)
	eval.TrialInputs = [][]float64{nil, nil}

	// WHEN the grid is searched with history on
	grid := &GridSearch{KeepHistory: true}
	res, err := grid.Search(ctx, NewAllocationSpace(signals), eval)
	require.NoError(t, err)

	// THEN only the fully evaluated first candidate is recorded; the
	// interrupted one is a skip, not a failure
	assert.Equal(t, SearchCancelled, res.State)
	assert.True(t, res.Partial)
	assert.Equal(t, 1, res.Iterations)
	require.Len(t, res.History, 1)
	assert.False(t, res.History[0].Failed())
	assert.True(t, res.Best.Equal(NewAllocationPolicy([]float64{0})))
}

// TestGridSearch_CancelledBeforeAnyCandidate verifies a search with nothing
// scored reports the cancellation cause rather than a best.
func TestGridSearch_CancelledBeforeAnyCandidate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	signals := []*ControlSignal{zeroCostSignal("decision", "gain", []float64{0, 1})}
	agent := newStubAgent(signals, nil)

	grid := &GridSearch{}
	res, err := grid.Search(ctx, NewAllocationSpace(signals), newTestEvaluator(agent, signals))
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, context.Canceled))
}

// TestGridSearch_HistoryInEnumerationOrder verifies KeepHistory records every
// evaluation in candidate order.
func TestGridSearch_HistoryInEnumerationOrder(t *testing.T) {
	signals := []*ControlSignal{zeroCostSignal("decision", "gain", []float64{0, 0.5, 1.0})}
	agent := newStubAgent(signals, nil)
	eval := newTestEvaluator(agent, signals)
	space := NewAllocationSpace(signals)

	grid := &GridSearch{KeepHistory: true}
	res, err := grid.Search(context.Background(), space, eval)
	require.NoError(t, err)

	policies := space.Enumerate()
	require.Len(t, res.History, len(policies))
	for i, ce := range res.History {
		assert.True(t, ce.Policy.Equal(policies[i]), "history entry %d", i)
	}
}
