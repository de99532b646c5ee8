package engine

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// GridSearch exhaustively evaluates every candidate in the space and returns
// the maximum-net-value policy. Ties break to the first-seen candidate in the
// space's deterministic enumeration order, so repeated searches over the same
// space and agent return identical results.
//
// Candidate evaluations have no data dependency on each other, so with
// Workers > 1 they are fanned out across a worker pool, each evaluation under
// its own simulation context. Contexts are numbered by candidate ordinal, so
// agents that seed randomness from the context ID observe the same draws on
// every repeat of the search. Results are collected by candidate ordinal and
// scanned in enumeration order, which keeps the tie-break deterministic
// regardless of worker interleaving.
type GridSearch struct {
	// Workers is the number of parallel evaluation workers. 0 or 1 runs
	// sequentially.
	Workers int
	// KeepHistory retains every (policy, net value) evaluation in the result.
	KeepHistory bool
}

// Search implements Strategy.
func (g *GridSearch) Search(ctx context.Context, space *AllocationSpace, eval *Evaluator) (*SearchResult, error) {
	policies := space.Enumerate()
	if len(policies) == 0 {
		return nil, ErrEmptySearchSpace
	}

	results := make([]*CandidateEvaluation, len(policies))
	if g.Workers > 1 {
		g.runParallel(ctx, policies, results, eval)
	} else {
		g.runSequential(ctx, policies, results, eval)
	}

	// Select in enumeration order: stable first-seen tie-break.
	res := &SearchResult{State: SearchCompleted}
	var best *CandidateEvaluation
	evaluated, failed, skipped := 0, 0, 0
	for i := range results {
		ce := results[i]
		if ce == nil {
			skipped++
			continue
		}
		evaluated++
		if ce.Failed() {
			failed++
			continue
		}
		if best == nil || ce.NetValue > best.NetValue {
			best = ce
		}
	}

	if g.KeepHistory {
		history := make([]CandidateEvaluation, 0, evaluated)
		for _, ce := range results {
			if ce != nil {
				history = append(history, *ce)
			}
		}
		res.History = history
	}
	res.Iterations = evaluated

	if skipped > 0 {
		res.State = SearchCancelled
		res.Partial = true
		logrus.Warnf("grid search cancelled after %d of %d candidates; returning partial best", evaluated, len(policies))
	}

	if best == nil {
		if skipped > 0 {
			return nil, context.Cause(ctx)
		}
		return nil, ErrSearchExhausted
	}
	res.Best = best.Policy
	res.BestValue = best.NetValue
	return res, nil
}

func (g *GridSearch) runSequential(ctx context.Context, policies []AllocationPolicy, results []*CandidateEvaluation, eval *Evaluator) {
	for i, policy := range policies {
		if ctx.Err() != nil {
			return
		}
		ce := eval.EvaluateInContext(ctx, policy, NewNumberedSimulationContext(i))
		if ce.Failed() && ctx.Err() != nil {
			// Cancellation interrupted this evaluation: a skip, not a
			// candidate failure.
			return
		}
		results[i] = &ce
	}
}

func (g *GridSearch) runParallel(ctx context.Context, policies []AllocationPolicy, results []*CandidateEvaluation, eval *Evaluator) {
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < g.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				ce := eval.EvaluateInContext(ctx, policies[i], NewNumberedSimulationContext(i))
				if ce.Failed() && ctx.Err() != nil {
					continue
				}
				results[i] = &ce
			}
		}()
	}

feed:
	for i := range policies {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
}
