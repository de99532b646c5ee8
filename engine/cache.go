package engine

import (
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// EvaluationCache memoizes successful candidate evaluations keyed by policy.
// Simulation runs are expensive and repeated policies are common across
// cycles, so a deterministic agent can skip re-simulation entirely. Failed
// evaluations are never cached. Only sound for deterministic agents with
// static trial inputs; off by default.
type EvaluationCache struct {
	cache *lru.Cache[string, CandidateEvaluation]
}

// NewEvaluationCache creates a cache holding up to size evaluations.
func NewEvaluationCache(size int) (*EvaluationCache, error) {
	c, err := lru.New[string, CandidateEvaluation](size)
	if err != nil {
		return nil, fmt.Errorf("creating evaluation cache: %w", err)
	}
	return &EvaluationCache{cache: c}, nil
}

// Get returns a cached evaluation for the policy, if present.
func (c *EvaluationCache) Get(policy AllocationPolicy) (CandidateEvaluation, bool) {
	return c.cache.Get(policyKey(policy))
}

// Add stores a successful evaluation. Failed evaluations are ignored.
func (c *EvaluationCache) Add(ce CandidateEvaluation) {
	if ce.Failed() {
		return
	}
	c.cache.Add(policyKey(ce.Policy), ce)
}

// Len returns the number of cached evaluations.
func (c *EvaluationCache) Len() int { return c.cache.Len() }

// policyKey renders the exact bit pattern of each allocation, so distinct
// policies never collide.
func policyKey(p AllocationPolicy) string {
	var b strings.Builder
	for i := 0; i < p.Len(); i++ {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.FormatFloat(p.Value(i), 'b', -1, 64))
	}
	return b.String()
}
