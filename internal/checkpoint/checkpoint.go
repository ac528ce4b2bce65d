package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"

	"diagbench/internal/models"
	"diagbench/internal/util"
)

// Store persists the run's progress state as a JSON file, written atomically
// after every terminal paper transition. There is a single writer per run.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(runID string) string {
	return filepath.Join(s.dir, util.SafeJoin("", runID)+".progress.json")
}

// Load rehydrates the state for runID. A missing checkpoint returns (nil,
// nil): the run starts fresh.
func (s *Store) Load(runID string) (*models.ProgressState, error) {
	var state models.ProgressState
	err := util.ReadJSON(s.path(runID), &state)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint for run %s: %w", runID, err)
	}
	if state.Attempted == nil {
		state.Attempted = map[string]bool{}
	}
	return &state, nil
}

// Save overwrites the run's checkpoint.
func (s *Store) Save(state models.ProgressState) error {
	if state.RunID == "" {
		return fmt.Errorf("checkpoint requires a run id")
	}
	if err := util.WriteJSONAtomic(s.path(state.RunID), state); err != nil {
		return fmt.Errorf("save checkpoint for run %s: %w", state.RunID, err)
	}
	return nil
}
