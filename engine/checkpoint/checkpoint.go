// Package checkpoint persists the engine's only cross-cycle state — the
// previously committed policy and per-signal cost accumulators — as a flat
// JSON file, so a control loop can resume across process restarts.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SignalRecord is the persisted cost state of one control signal.
type SignalRecord struct {
	ParameterID         string  `json:"parameter_id"`
	PreviousIntensity   float64 `json:"previous_intensity"`
	DurationAccumulator float64 `json:"duration_accumulator"`
}

// State is the full checkpoint: the previously committed policy plus one
// record per signal.
type State struct {
	PreviousPolicy []float64      `json:"previous_policy,omitempty"`
	Signals        []SignalRecord `json:"signals"`
	SavedAt        time.Time      `json:"saved_at"`
}

// Save writes the state atomically: to a temp file in the target directory,
// then renamed over the destination.
func Save(path string, st *State) error {
	st.SavedAt = time.Now().UTC()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.json")
	if err != nil {
		return fmt.Errorf("creating temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming checkpoint into place: %w", err)
	}
	return nil
}

// Load reads a checkpoint file.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing checkpoint: %w", err)
	}
	return &st, nil
}
