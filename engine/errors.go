package engine

import (
	"errors"
	"fmt"
)

// ErrEmptySearchSpace is returned when a search is started over a space with
// no candidate policies. Fatal for the control cycle: no allocation can be
// chosen.
var ErrEmptySearchSpace = errors.New("empty search space: no candidate allocation policies")

// ErrSearchExhausted is returned when every candidate's evaluation failed, so
// no feasible policy exists for this cycle.
var ErrSearchExhausted = errors.New("search exhausted: every candidate evaluation failed")

// SimulationFailure wraps an error raised by the controlled network during
// one what-if trial. A single failing candidate is scored -Inf and skipped;
// the search continues.
type SimulationFailure struct {
	Trial int
	Err   error
}

func (f *SimulationFailure) Error() string {
	return fmt.Sprintf("simulation failed on trial %d: %v", f.Trial, f.Err)
}

func (f *SimulationFailure) Unwrap() error { return f.Err }
