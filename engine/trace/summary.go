package trace

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Summary aggregates statistics over a SearchTrace.
type Summary struct {
	Candidates    int
	Failed        int
	Cycles        int
	BestValue     float64
	WorstValue    float64
	MeanValue     float64 // mean over successful candidates
	SelectedCount int
}

// Summarize computes aggregate statistics from a SearchTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SearchTrace) *Summary {
	summary := &Summary{
		BestValue:  math.Inf(-1),
		WorstValue: math.Inf(1),
	}
	if st == nil || len(st.Records) == 0 {
		summary.BestValue, summary.WorstValue = 0, 0
		return summary
	}

	cycles := make(map[int]bool)
	values := make([]float64, 0, len(st.Records))
	for _, r := range st.Records {
		summary.Candidates++
		cycles[r.Cycle] = true
		if r.Selected {
			summary.SelectedCount++
		}
		if r.Reason != "" {
			summary.Failed++
			continue
		}
		values = append(values, r.NetValue)
		if r.NetValue > summary.BestValue {
			summary.BestValue = r.NetValue
		}
		if r.NetValue < summary.WorstValue {
			summary.WorstValue = r.NetValue
		}
	}
	summary.Cycles = len(cycles)

	if len(values) == 0 {
		summary.BestValue, summary.WorstValue = 0, 0
		return summary
	}
	summary.MeanValue = stat.Mean(values, nil)
	return summary
}
