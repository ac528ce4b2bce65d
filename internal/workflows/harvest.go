package workflows

import (
	"errors"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"diagbench/internal/activities"
	"diagbench/internal/models"
	"diagbench/internal/util"
)

const (
	QueryGetHarvestProgress = "GetHarvestProgress"
	QueryGetPaperProgress   = "GetPaperProgress"
)

// HarvestRunWorkflow drives one collection run: materialize the candidate
// stream, try papers one at a time through child pipelines, and stop exactly
// when the target is met, the paper budget runs out, or the stream is
// exhausted. Progress is checkpointed after every terminal paper so a
// restarted run resumes without re-attempting or double-counting.
func HarvestRunWorkflow(ctx workflow.Context, input HarvestRunInput) (string, error) {
	runID := input.RunID
	if runID == "" {
		runID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}

	progress := HarvestProgress{
		RunID:       runID,
		TargetCount: input.TargetCount,
		MaxPapers:   input.MaxPapers,
		PerPaper:    map[string]string{},
		Status:      "running",
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetHarvestProgress, func() (HarvestProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	var loaded activities.LoadCheckpointOutput
	if err := workflow.ExecuteActivity(ctx, "LoadCheckpointActivity", activities.LoadCheckpointInput{RunID: runID}).Get(ctx, &loaded); err != nil {
		return "", err
	}
	state := models.NewProgressState(runID, input.TargetCount, input.MaxPapers)
	if loaded.Found {
		state = loaded.State
		// Target and budget follow the current request, not the checkpoint.
		state.TargetCount = input.TargetCount
		state.MaxPapers = input.MaxPapers
		logger.Info("resuming run from checkpoint", "accepted", state.AcceptedCount, "attempted", state.AttemptedCount)
	}
	progress.AcceptedCount = state.AcceptedCount
	progress.AttemptedCount = state.AttemptedCount

	_ = workflow.ExecuteActivity(ctx, "UpdateRunActivity", activities.UpdateRunInput{Run: runRecord(state, "running")}).Get(ctx, nil)

	var collected activities.CollectCandidatesOutput
	if err := workflow.ExecuteActivity(ctx, "CollectCandidatesActivity", activities.CollectCandidatesInput{
		RunID:      runID,
		Categories: input.Categories,
		Seed:       input.Seed,
	}).Get(ctx, &collected); err != nil {
		return "", err
	}
	progress.CandidateTotal = len(collected.Candidates)
	for _, poolErr := range collected.PoolErrors {
		logger.Warn("candidate pool skipped", "error", poolErr)
	}

	for _, candidate := range collected.Candidates {
		if state.TargetReached() || state.BudgetExhausted() {
			break
		}

		paperID := paperIDFor(candidate)
		if state.AlreadyAttempted(paperID) {
			progress.PerPaper[paperID] = "skipped"
			continue
		}

		progress.CurrentPaper = paperID
		progress.PerPaper[paperID] = "processing"

		cwo := workflow.ChildWorkflowOptions{WorkflowID: "paper-" + sanitizeID(runID) + "-" + sanitizeID(paperID)}
		childCtx := workflow.WithChildOptions(ctx, cwo)

		var result PaperPipelineResult
		err := workflow.ExecuteChildWorkflow(childCtx, PaperPipelineWorkflow, PaperPipelineInput{
			RunID:             runID,
			PaperID:           paperID,
			Candidate:         candidate,
			NumPrompts:        input.NumPrompts,
			VisionProviders:   input.VisionProviders,
			ImageGenProviders: input.ImageGenProviders,
			CooldownSeconds:   input.CooldownSeconds,
		}).Get(ctx, &result)
		if err != nil {
			// An in-flight paper always reaches a terminal outcome; an
			// unexpected child failure counts as a discarded attempt.
			logger.Error("paper pipeline failed", "paper_id", paperID, "error", err)
			result = PaperPipelineResult{PaperID: paperID, Status: models.StatusFailed, FailReason: err.Error()}
		}

		accepted := result.Status == models.StatusOrganized
		state.Record(paperID, accepted)
		progress.PerPaper[paperID] = string(result.Status)
		progress.AcceptedCount = state.AcceptedCount
		progress.AttemptedCount = state.AttemptedCount
		progress.CurrentPaper = ""

		if err := workflow.ExecuteActivity(ctx, "SaveCheckpointActivity", activities.SaveCheckpointInput{State: state}).Get(ctx, nil); err != nil {
			return "", err
		}
		_ = workflow.ExecuteActivity(ctx, "UpdateRunActivity", activities.UpdateRunInput{Run: runRecord(state, "running")}).Get(ctx, nil)
	}

	status, note := finalStatus(state)
	progress.Status = status
	_ = workflow.ExecuteActivity(ctx, "UpdateRunActivity", activities.UpdateRunInput{Run: runRecord(state, status)}).Get(ctx, nil)
	_ = workflow.ExecuteActivity(ctx, "WriteRunSummaryActivity", activities.WriteRunSummaryInput{
		Run:  runRecord(state, status),
		Note: note,
	}).Get(ctx, nil)

	return status, nil
}

func finalStatus(state models.ProgressState) (string, string) {
	switch {
	case state.TargetReached():
		return RunStatusCompleted, ""
	case state.BudgetExhausted():
		return RunStatusBudgetExhausted, "paper budget exhausted before reaching target"
	default:
		return RunStatusStarved, "candidate stream exhausted before reaching target"
	}
}

func runRecord(state models.ProgressState, status string) models.HarvestRun {
	return models.HarvestRun{
		RunID:          state.RunID,
		TargetCount:    state.TargetCount,
		MaxPapers:      state.MaxPapers,
		AcceptedCount:  state.AcceptedCount,
		AttemptedCount: state.AttemptedCount,
		Status:         status,
	}
}

// paperIDFor derives a stable paper identity: the arXiv id when the pool
// supplied one, otherwise a title digest.
func paperIDFor(c models.PaperCandidate) string {
	if c.ExternalID != "" {
		return c.ExternalID
	}
	return util.SHA256Hex([]byte(strings.ToLower(strings.Join(strings.Fields(c.Title), " "))))[:16]
}

func sanitizeID(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

func isInsufficientPromptsError(err error) bool {
	if err == nil {
		return false
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return strings.Contains(strings.ToLower(appErr.Error()), "insufficient prompts")
	}
	return strings.Contains(strings.ToLower(err.Error()), "insufficient prompts")
}
