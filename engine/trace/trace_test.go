package trace

import (
	"bufio"
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSearchTrace_WriteJSONL verifies one JSON object per record with the
// expected fields.
func TestSearchTrace_WriteJSONL(t *testing.T) {
	st := NewSearchTrace()
	st.Record(CandidateRecord{Cycle: 1, Ordinal: 0, Allocations: []float64{0, 0.5}, Outcome: 2, Cost: 0.5, NetValue: 1.5, Selected: true})
	st.Record(CandidateRecord{Cycle: 1, Ordinal: 1, Allocations: []float64{1, 0.5}, NetValue: math.Inf(-1), Reason: "timed out"})

	var buf bytes.Buffer
	require.NoError(t, st.WriteJSONL(&buf))

	scanner := bufio.NewScanner(&buf)
	var lines []map[string]any
	for scanner.Scan() {
		var obj map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &obj))
		lines = append(lines, obj)
	}
	require.Len(t, lines, 2)

	assert.Equal(t, 1.5, lines[0]["net_value"])
	assert.Equal(t, true, lines[0]["selected"])
	_, hasReason := lines[0]["reason"]
	assert.False(t, hasReason, "empty reason should be omitted")

	// -Inf is rendered as the large negative sentinel.
	assert.Equal(t, -math.MaxFloat64, lines[1]["net_value"])
	assert.Equal(t, "timed out", lines[1]["reason"])
}

// TestSearchTrace_WriteJSONLPreservesRecords verifies writing does not mutate
// the stored records.
func TestSearchTrace_WriteJSONLPreservesRecords(t *testing.T) {
	st := NewSearchTrace()
	st.Record(CandidateRecord{NetValue: math.Inf(-1), Reason: "failed"})

	var buf bytes.Buffer
	require.NoError(t, st.WriteJSONL(&buf))
	assert.True(t, math.IsInf(st.Records[0].NetValue, -1))
}

// TestSummarize verifies aggregate statistics over a mixed trace.
func TestSummarize(t *testing.T) {
	st := NewSearchTrace()
	st.Record(CandidateRecord{Cycle: 1, NetValue: 1})
	st.Record(CandidateRecord{Cycle: 1, NetValue: 3, Selected: true})
	st.Record(CandidateRecord{Cycle: 2, NetValue: 2, Selected: true})
	st.Record(CandidateRecord{Cycle: 2, NetValue: math.Inf(-1), Reason: "agent panic"})

	s := Summarize(st)
	assert.Equal(t, 4, s.Candidates)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 2, s.Cycles)
	assert.Equal(t, 2, s.SelectedCount)
	assert.Equal(t, 3.0, s.BestValue)
	assert.Equal(t, 1.0, s.WorstValue)
	assert.InDelta(t, 2.0, s.MeanValue, 1e-12)
}

// TestSummarize_EmptyAndNil verifies zero-value summaries for degenerate
// traces.
func TestSummarize_EmptyAndNil(t *testing.T) {
	for _, st := range []*SearchTrace{nil, NewSearchTrace()} {
		s := Summarize(st)
		assert.Equal(t, 0, s.Candidates)
		assert.Equal(t, 0.0, s.BestValue)
		assert.Equal(t, 0.0, s.WorstValue)
	}

	// All-failed traces also report zero value bounds.
	st := NewSearchTrace()
	st.Record(CandidateRecord{NetValue: math.Inf(-1), Reason: "failed"})
	s := Summarize(st)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 0.0, s.BestValue)
	assert.Equal(t, 0.0, s.WorstValue)
	assert.Equal(t, 0.0, s.MeanValue)
}
