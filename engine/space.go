package engine

// AllocationSpace enumerates candidate allocation policies as the Cartesian
// product of each signal's sample set, in fixed signal order. Enumeration is
// finite, deterministic and restartable: every call to Candidates returns a
// fresh iterator over the same sequence.
type AllocationSpace struct {
	signals []*ControlSignal
}

// NewAllocationSpace constructs the space over the given signals. Signal
// order fixes both policy layout and enumeration order.
func NewAllocationSpace(signals []*ControlSignal) *AllocationSpace {
	return &AllocationSpace{signals: signals}
}

// Signals returns the signals in policy order.
func (s *AllocationSpace) Signals() []*ControlSignal { return s.signals }

// Size returns the number of candidate policies: the product of the
// per-signal sample-set sizes. Zero when any signal has no samples.
func (s *AllocationSpace) Size() int {
	if len(s.signals) == 0 {
		return 0
	}
	size := 1
	for _, sig := range s.signals {
		size *= len(sig.AllocationSamples)
	}
	return size
}

// Candidates returns a fresh iterator over every candidate policy. Each
// combination of one sample per signal appears exactly once; the last signal
// varies fastest.
func (s *AllocationSpace) Candidates() *CandidateIterator {
	samples := make([][]float64, len(s.signals))
	for i, sig := range s.signals {
		samples[i] = sig.AllocationSamples
	}
	return &CandidateIterator{samples: samples, idx: make([]int, len(samples))}
}

// Enumerate materializes all candidate policies in iteration order.
func (s *AllocationSpace) Enumerate() []AllocationPolicy {
	policies := make([]AllocationPolicy, 0, s.Size())
	it := s.Candidates()
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		policies = append(policies, p)
	}
	return policies
}

// InitialPoint returns the starting point for continuous search strategies:
// the signals' current real allocations, clipped to the sample bounds.
func (s *AllocationSpace) InitialPoint() AllocationPolicy {
	real := NewRealContext("")
	values := make([]float64, len(s.signals))
	for i, sig := range s.signals {
		v := sig.Allocation(real)
		lower, upper := sig.SampleBounds()
		if v < lower {
			v = lower
		}
		if v > upper {
			v = upper
		}
		values[i] = v
	}
	return AllocationPolicy{values: values}
}

// Bounds returns per-signal feasibility bounds derived from the sample sets.
// Continuous strategies clip to these; they are not discrete steps.
func (s *AllocationSpace) Bounds() (lower, upper []float64) {
	lower = make([]float64, len(s.signals))
	upper = make([]float64, len(s.signals))
	for i, sig := range s.signals {
		lower[i], upper[i] = sig.SampleBounds()
	}
	return lower, upper
}

// CandidateIterator walks the Cartesian product of sample sets in odometer
// order. Not safe for concurrent use; obtain one iterator per consumer.
type CandidateIterator struct {
	samples [][]float64
	idx     []int
	done    bool
}

// Next returns the next candidate policy, or false when exhausted.
func (it *CandidateIterator) Next() (AllocationPolicy, bool) {
	if it.done || len(it.samples) == 0 {
		return AllocationPolicy{}, false
	}
	for _, set := range it.samples {
		if len(set) == 0 {
			return AllocationPolicy{}, false
		}
	}

	values := make([]float64, len(it.samples))
	for i, set := range it.samples {
		values[i] = set[it.idx[i]]
	}

	// Advance the odometer, last position fastest.
	for i := len(it.idx) - 1; i >= 0; i-- {
		it.idx[i]++
		if it.idx[i] < len(it.samples[i]) {
			break
		}
		it.idx[i] = 0
		if i == 0 {
			it.done = true
		}
	}

	return AllocationPolicy{values: values}, true
}
