package activities

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"diagbench/internal/collectors"
	"diagbench/internal/config"
	"diagbench/internal/prompts"
	"diagbench/internal/util"
)

func testConfig() config.Config {
	cfg := config.Load()
	cfg.VisionProviders = "mock"
	cfg.ImageGenProviders = "mock"
	return cfg
}

func TestStageErrorMarksUnderCountNonRetryable(t *testing.T) {
	err := stageError(&prompts.InsufficientPromptsError{Want: 3, Got: 1})

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	require.True(t, appErr.NonRetryable(), "the retry policy must not add attempts under the single workflow retry")
	require.Contains(t, appErr.Message(), "insufficient prompts")
}

func TestStageErrorMarksPermanentClassesNonRetryable(t *testing.T) {
	for _, cause := range []error{util.ErrMalformedDocument, util.ErrPermanent} {
		err := stageError(fmt.Errorf("download: %w", cause))

		var appErr *temporal.ApplicationError
		require.ErrorAs(t, err, &appErr, "class %v", cause)
		require.True(t, appErr.NonRetryable(), "class %v", cause)
	}
}

func TestStageErrorKeepsTransientRetryable(t *testing.T) {
	cause := fmt.Errorf("download: %w", util.ErrTransient)
	err := stageError(cause)

	require.ErrorIs(t, err, util.ErrTransient)
	var appErr *temporal.ApplicationError
	require.False(t, errors.As(err, &appErr), "transient failures stay eligible for the retry policy")
}

func TestStageErrorPassesNil(t *testing.T) {
	require.NoError(t, stageError(nil))
}

func TestNewSelectsAPICollectorByDefault(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)
	require.IsType(t, &collectors.APICollector{}, a.collector)
}

func TestNewSelectsListingCollector(t *testing.T) {
	cfg := testConfig()
	cfg.Collector = "listing"
	a, err := New(cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &collectors.ListingCollector{}, a.collector)
}
