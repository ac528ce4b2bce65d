package workflows

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"diagbench/internal/providers"
)

// Activity failures arrive with the activity type name composed into the
// outer error string. "GenerateImageActivity" contains "rate", so matching
// must run on the unwrapped application error only.
func TestClassifyCallErrorIgnoresActivityTypeName(t *testing.T) {
	appErr := temporal.NewNonRetryableApplicationError("content rejected", "Permanent", nil)
	wrapped := fmt.Errorf("activity error (type: GenerateImageActivity, scheduledEventID: 5): %w", appErr)

	require.Equal(t, providers.ErrorPermanent, classifyCallError(wrapped))
}

func TestClassifyCallErrorKeepsProviderSignals(t *testing.T) {
	cases := []struct {
		msg  string
		want providers.ErrorType
	}{
		{"429 too many requests", providers.ErrorRate},
		{"insufficient_quota for key", providers.ErrorQuota},
		{"openrouter error 503: upstream", providers.ErrorTransient},
		{"invalid model name", providers.ErrorPermanent},
	}
	for _, c := range cases {
		appErr := temporal.NewApplicationError(c.msg, "ProviderFailure")
		wrapped := fmt.Errorf("activity error (type: GeneratePromptsActivity, scheduledEventID: 5): %w", appErr)
		require.Equal(t, c.want, classifyCallError(wrapped), c.msg)
	}
}

func TestClassifyCallErrorFallsBackToPlainErrors(t *testing.T) {
	require.Equal(t, providers.ErrorTransient, classifyCallError(fmt.Errorf("request timeout")))
}
