package workflows

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"diagbench/internal/activities"
	"diagbench/internal/providers"
)

// providerState tracks per-provider cooldowns and retry counts inside one
// paper workflow. Timestamps come from workflow.Now so replay stays
// deterministic.
type providerState struct {
	disabledUntil map[int]time.Time
	retries       map[string]int
}

func newProviderState() providerState {
	return providerState{
		disabledUntil: map[int]time.Time{},
		retries:       map[string]int{},
	}
}

func (s *providerState) isDisabled(ctx workflow.Context, idx int) bool {
	until, ok := s.disabledUntil[idx]
	if !ok {
		return false
	}
	if workflow.Now(ctx).After(until) {
		delete(s.disabledUntil, idx)
		return false
	}
	return true
}

func (s *providerState) disableFor(ctx workflow.Context, idx int, d time.Duration) {
	s.disabledUntil[idx] = workflow.Now(ctx).Add(d)
}

func (s *providerState) retryKey(idx int, kind string) string {
	return fmt.Sprintf("%s-%d", kind, idx)
}

// callVisionWithFailover walks the configured vision providers until one
// returns a usable prompt set. An insufficient response is retried once
// against the same endpoint with the same image; a second short response
// fails the stage without rotating providers, since the image itself is the
// problem.
func callVisionWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, in activities.GeneratePromptsInput) (activities.GeneratePromptsOutput, error) {
	logger := workflow.GetLogger(ctx)
	maxAttempts := providerCount * 4
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		idx := attempt % providerCount
		if state.isDisabled(ctx, idx) {
			continue
		}

		in.ProviderIndex = idx
		var out activities.GeneratePromptsOutput
		err := workflow.ExecuteActivity(ctx, "GeneratePromptsActivity", in).Get(ctx, &out)
		if err == nil {
			logModelCall(ctx, in.RunID, in.PaperID, "image_to_prompts", out.ProviderName, out.Model, "ok", "")
			return out, nil
		}
		lastErr = err

		if isInsufficientPromptsError(err) {
			logModelCall(ctx, in.RunID, in.PaperID, "image_to_prompts", providerLabel(idx), "", "failed", "insufficient_prompts")
			key := state.retryKey(idx, "insufficient")
			if state.retries[key] >= 1 {
				return activities.GeneratePromptsOutput{}, err
			}
			state.retries[key]++
			logger.Warn("provider returned too few prompts, retrying once", "provider_index", idx)
			retryErr := workflow.ExecuteActivity(ctx, "GeneratePromptsActivity", in).Get(ctx, &out)
			if retryErr == nil {
				logModelCall(ctx, in.RunID, in.PaperID, "image_to_prompts", out.ProviderName, out.Model, "ok", "")
				return out, nil
			}
			if isInsufficientPromptsError(retryErr) {
				logModelCall(ctx, in.RunID, in.PaperID, "image_to_prompts", providerLabel(idx), "", "failed", "insufficient_prompts")
				return activities.GeneratePromptsOutput{}, retryErr
			}
			lastErr = retryErr
			err = retryErr
		}

		handleProviderError(ctx, state, idx, cooldown, "image_to_prompts", in.RunID, in.PaperID, err)
	}
	if lastErr == nil {
		lastErr = errors.New("no vision provider available")
	}
	return activities.GeneratePromptsOutput{}, fmt.Errorf("all vision providers failed: %w", lastErr)
}

// callImageGenWithFailover walks the image generation providers for a single
// prompt. The caller tolerates a final failure by marking the slot absent.
func callImageGenWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, in activities.GenerateImageInput) (activities.GenerateImageOutput, error) {
	maxAttempts := providerCount * 4
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		idx := attempt % providerCount
		if state.isDisabled(ctx, idx) {
			continue
		}

		in.ProviderIndex = idx
		var out activities.GenerateImageOutput
		err := workflow.ExecuteActivity(ctx, "GenerateImageActivity", in).Get(ctx, &out)
		if err == nil {
			logModelCall(ctx, in.RunID, in.PaperID, "prompt_to_image", out.ProviderName, out.Model, "ok", "")
			return out, nil
		}
		lastErr = err
		handleProviderError(ctx, state, idx, cooldown, "prompt_to_image", in.RunID, in.PaperID, err)
	}
	if lastErr == nil {
		lastErr = errors.New("no image generation provider available")
	}
	return activities.GenerateImageOutput{}, fmt.Errorf("all image providers failed: %w", lastErr)
}

// handleProviderError applies the cooldown policy for a failed call. Quota
// failures bench the provider for the full cooldown window, rate limits back
// off briefly before benching, transient errors get a short sleep.
func handleProviderError(ctx workflow.Context, state *providerState, idx int, cooldown time.Duration, op, runID, paperID string, err error) {
	logger := workflow.GetLogger(ctx)
	errType := classifyCallError(err)
	logModelCall(ctx, runID, paperID, op, providerLabel(idx), "", "failed", string(errType))

	switch errType {
	case providers.ErrorQuota:
		logger.Warn("provider quota exhausted, benching", "provider_index", idx, "cooldown", cooldown)
		state.disableFor(ctx, idx, cooldown)
	case providers.ErrorRate:
		key := state.retryKey(idx, "rate")
		state.retries[key]++
		if state.retries[key] <= 2 {
			_ = workflow.Sleep(ctx, time.Duration(state.retries[key])*2*time.Second)
			return
		}
		state.disableFor(ctx, idx, 2*time.Minute)
	case providers.ErrorTransient:
		key := state.retryKey(idx, "transient")
		state.retries[key]++
		if state.retries[key] <= 2 {
			_ = workflow.Sleep(ctx, 2*time.Second)
			return
		}
		state.disableFor(ctx, idx, time.Minute)
	case providers.ErrorPermanent:
		// The request is bad, not the provider. Another provider may still
		// take it, so rotate without benching.
		logger.Warn("provider rejected call", "provider_index", idx, "error", err)
	default:
		logger.Warn("provider call failed", "provider_index", idx, "error", err)
		state.disableFor(ctx, idx, time.Minute)
	}
}

// classifyCallError buckets a failed activity call for the cooldown policy.
// The composed workflow-side error string embeds the activity type name, so
// matching runs on the unwrapped application error message only.
func classifyCallError(err error) providers.ErrorType {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return providers.ClassifyError(errors.New(appErr.Message()))
	}
	return providers.ClassifyError(err)
}

func providerLabel(idx int) string {
	return fmt.Sprintf("provider-%d", idx)
}

func logModelCall(ctx workflow.Context, runID, paperID, op, providerName, model, status, errType string) {
	detached := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
	})
	_ = workflow.ExecuteActivity(detached, "LogModelCallActivity", activities.LogModelCallInput{
		Operation:    op,
		RunID:        runID,
		PaperID:      paperID,
		ProviderName: providerName,
		Model:        model,
		Status:       status,
		ErrorType:    errType,
	}).Get(ctx, nil)
}
