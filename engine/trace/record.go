// Package trace provides search-history recording for control-allocation
// diagnostics. This package has no dependencies on engine/ — it stores pure
// data types.
package trace

// CandidateRecord captures one candidate evaluation during a policy search.
type CandidateRecord struct {
	Cycle       int       `json:"cycle"`
	Ordinal     int       `json:"ordinal"` // position in evaluation order
	Allocations []float64 `json:"allocations"`
	Outcome     float64   `json:"outcome"`
	Cost        float64   `json:"cost"`
	NetValue    float64   `json:"net_value"`
	Selected    bool      `json:"selected"`         // true for the committed policy
	Reason      string    `json:"reason,omitempty"` // failure reason, empty on success
}
