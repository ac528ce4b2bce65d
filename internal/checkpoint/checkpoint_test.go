package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"diagbench/internal/models"
)

func TestLoadMissingCheckpointStartsFresh(t *testing.T) {
	s := NewStore(t.TempDir())
	state, err := s.Load("run-1")
	require.NoError(t, err)
	require.Nil(t, state)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	state := models.NewProgressState("run-1", 2, 10)
	state.Record("paper-1", true)
	state.Record("paper-2", false)
	require.NoError(t, s.Save(state))

	loaded, err := s.Load("run-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, 1, loaded.AcceptedCount)
	require.Equal(t, 2, loaded.AttemptedCount)
	require.True(t, loaded.AlreadyAttempted("paper-1"))
	require.True(t, loaded.AlreadyAttempted("paper-2"))
	require.False(t, loaded.AlreadyAttempted("paper-3"))
}

func TestResumeNeverDoubleCounts(t *testing.T) {
	s := NewStore(t.TempDir())

	state := models.NewProgressState("run-1", 2, 10)
	state.Record("paper-1", true)
	state.Record("paper-2", false)
	state.Record("paper-3", false)
	require.NoError(t, s.Save(state))

	// Replaying papers 1-3 after a restart changes nothing.
	loaded, err := s.Load("run-1")
	require.NoError(t, err)
	loaded.Record("paper-1", true)
	loaded.Record("paper-2", false)
	loaded.Record("paper-3", true)
	require.Equal(t, 1, loaded.AcceptedCount)
	require.Equal(t, 3, loaded.AttemptedCount)

	loaded.Record("paper-5", true)
	require.Equal(t, 2, loaded.AcceptedCount)
	require.True(t, loaded.TargetReached())
}

func TestTerminationConditions(t *testing.T) {
	state := models.NewProgressState("run-1", 2, 3)
	require.False(t, state.TargetReached())
	require.False(t, state.BudgetExhausted())

	state.Record("p1", true)
	state.Record("p2", false)
	state.Record("p3", true)
	require.True(t, state.TargetReached())
	require.True(t, state.BudgetExhausted())
}

func TestSaveRequiresRunID(t *testing.T) {
	s := NewStore(t.TempDir())
	require.Error(t, s.Save(models.ProgressState{}))
}
