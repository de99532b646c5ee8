package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// SearchTrace collects candidate records across control cycles.
type SearchTrace struct {
	Records []CandidateRecord
}

// NewSearchTrace creates a SearchTrace ready for recording.
func NewSearchTrace() *SearchTrace {
	return &SearchTrace{Records: make([]CandidateRecord, 0)}
}

// Record appends a candidate record.
func (st *SearchTrace) Record(record CandidateRecord) {
	st.Records = append(st.Records, record)
}

// WriteJSONL writes one JSON object per record. Non-finite net values are
// rendered as string sentinels since JSON has no Inf.
func (st *SearchTrace) WriteJSONL(w io.Writer) error {
	enc := json.NewEncoder(w)
	for i, record := range st.Records {
		if math.IsInf(record.NetValue, -1) {
			// json.Marshal rejects -Inf; failed candidates keep their reason
			// and a large negative sentinel.
			record.NetValue = -math.MaxFloat64
		}
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("encoding trace record %d: %w", i, err)
		}
	}
	return nil
}
