package workflows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"diagbench/internal/activities"
	"diagbench/internal/models"
)

func paperInput() PaperPipelineInput {
	return PaperPipelineInput{
		RunID:   "run-1",
		PaperID: "2401.01234",
		Candidate: models.PaperCandidate{
			SourceCategory: "cs.LG",
			Title:          "A Survey of Things",
			ExternalID:     "2401.01234",
			PDFURL:         "https://arxiv.org/pdf/2401.01234",
		},
		NumPrompts:        3,
		VisionProviders:   1,
		ImageGenProviders: 1,
		CooldownSeconds:   60,
	}
}

func registerPaperActivities(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "UpdatePaperStatusActivity", func(context.Context, activities.UpdatePaperStatusInput) error { return nil })
	registerActivityName(env, "CleanupPaperActivity", func(context.Context, activities.CleanupPaperInput) error { return nil })
	registerActivityName(env, "LogModelCallActivity", func(context.Context, activities.LogModelCallInput) error { return nil })
	registerActivityName(env, "ResolveInfoActivity", func(context.Context, activities.ResolveInfoInput) (activities.ResolveInfoOutput, error) {
		return activities.ResolveInfoOutput{}, nil
	})
	registerActivityName(env, "DownloadPDFActivity", func(context.Context, activities.DownloadPDFInput) (activities.DownloadPDFOutput, error) {
		return activities.DownloadPDFOutput{}, nil
	})
	registerActivityName(env, "ExtractDiagramActivity", func(context.Context, activities.ExtractDiagramInput) (activities.ExtractDiagramOutput, error) {
		return activities.ExtractDiagramOutput{}, nil
	})
	registerActivityName(env, "GeneratePromptsActivity", func(context.Context, activities.GeneratePromptsInput) (activities.GeneratePromptsOutput, error) {
		return activities.GeneratePromptsOutput{}, nil
	})
	registerActivityName(env, "GenerateImageActivity", func(context.Context, activities.GenerateImageInput) (activities.GenerateImageOutput, error) {
		return activities.GenerateImageOutput{}, nil
	})
	registerActivityName(env, "OrganizeResultActivity", func(context.Context, activities.OrganizeResultInput) (activities.OrganizeResultOutput, error) {
		return activities.OrganizeResultOutput{}, nil
	})
	env.OnActivity("UpdatePaperStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("CleanupPaperActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("LogModelCallActivity", mock.Anything, mock.Anything).Return(nil)
}

func mockHappyStages(env *testsuite.TestWorkflowEnvironment) {
	env.OnActivity("ResolveInfoActivity", mock.Anything, mock.Anything).Return(activities.ResolveInfoOutput{
		ExternalID: "2401.01234",
		PDFURL:     "https://arxiv.org/pdf/2401.01234",
		Authors:    []string{"A. Author", "B. Author"},
	}, nil)
	env.OnActivity("DownloadPDFActivity", mock.Anything, mock.Anything).Return(activities.DownloadPDFOutput{Path: "/tmp/pdfs/run-1/2401.01234.pdf"}, nil)
	env.OnActivity("ExtractDiagramActivity", mock.Anything, mock.Anything).Return(activities.ExtractDiagramOutput{
		Found: true,
		Diagram: models.DiagramRecord{
			PaperID: "2401.01234",
			Image:   models.CandidateImage{PaperID: "2401.01234", PageIndex: 2, ImageIndex: 0, Width: 600, Height: 400},
		},
		ImagePath: "/tmp/out/run-1/scratch/2401.01234/original.png",
	}, nil)
}

func TestPaperPipelineOrganizesOnFullSuccess(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperPipelineWorkflow)
	registerPaperActivities(env)
	mockHappyStages(env)

	env.OnActivity("GeneratePromptsActivity", mock.Anything, mock.Anything).Return(activities.GeneratePromptsOutput{
		Prompts:      []string{"A flowchart with four stages.", "A pipeline diagram on white.", "An architecture overview."},
		ProviderName: "mock",
		Model:        "mock-vision",
	}, nil)
	env.OnActivity("GenerateImageActivity", mock.Anything, mock.Anything).Return(func(_ context.Context, in activities.GenerateImageInput) (activities.GenerateImageOutput, error) {
		return activities.GenerateImageOutput{ImagePath: "/tmp/gen.png", ProviderName: "mock", Model: "mock-image"}, nil
	})

	var organizeIn activities.OrganizeResultInput
	env.OnActivity("OrganizeResultActivity", mock.Anything, mock.Anything).Return(func(_ context.Context, in activities.OrganizeResultInput) (activities.OrganizeResultOutput, error) {
		organizeIn = in
		return activities.OrganizeResultOutput{Dir: "/tmp/out/run-1/results/2401.01234"}, nil
	})

	env.ExecuteWorkflow(PaperPipelineWorkflow, paperInput())
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result PaperPipelineResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, models.StatusOrganized, result.Status)
	require.Equal(t, "/tmp/out/run-1/results/2401.01234", result.BundleDir)

	require.Len(t, organizeIn.Prompts, 3)
	require.Len(t, organizeIn.Generated, 3)
	for _, g := range organizeIn.Generated {
		require.False(t, g.Absent)
	}
	require.Equal(t, "A. Author, B. Author", organizeIn.Paper.Authors)
}

func TestPaperPipelineNoDiagramDiscards(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperPipelineWorkflow)
	registerPaperActivities(env)

	env.OnActivity("ResolveInfoActivity", mock.Anything, mock.Anything).Return(activities.ResolveInfoOutput{PDFURL: "https://arxiv.org/pdf/2401.01234"}, nil)
	env.OnActivity("DownloadPDFActivity", mock.Anything, mock.Anything).Return(activities.DownloadPDFOutput{Path: "/tmp/p.pdf"}, nil)
	env.OnActivity("ExtractDiagramActivity", mock.Anything, mock.Anything).Return(activities.ExtractDiagramOutput{Found: false}, nil)

	env.ExecuteWorkflow(PaperPipelineWorkflow, paperInput())
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result PaperPipelineResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, models.StatusNoDiagram, result.Status)
	require.Empty(t, result.BundleDir)
}

func TestPaperPipelineDownloadFailureDiscards(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperPipelineWorkflow)
	registerPaperActivities(env)

	env.OnActivity("ResolveInfoActivity", mock.Anything, mock.Anything).Return(activities.ResolveInfoOutput{PDFURL: "https://arxiv.org/pdf/2401.01234"}, nil)
	env.OnActivity("DownloadPDFActivity", mock.Anything, mock.Anything).Return(activities.DownloadPDFOutput{},
		temporal.NewNonRetryableApplicationError("fetch pdf: status 404", "Permanent", nil))

	env.ExecuteWorkflow(PaperPipelineWorkflow, paperInput())
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result PaperPipelineResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, models.StatusFailed, result.Status)
	require.Contains(t, result.FailReason, "pdf download failed")
}

func TestPaperPipelineInsufficientPromptsRetriesOnceThenFails(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperPipelineWorkflow)
	registerPaperActivities(env)
	mockHappyStages(env)

	promptCalls := 0
	env.OnActivity("GeneratePromptsActivity", mock.Anything, mock.Anything).Return(func(_ context.Context, in activities.GeneratePromptsInput) (activities.GeneratePromptsOutput, error) {
		promptCalls++
		return activities.GeneratePromptsOutput{}, temporal.NewNonRetryableApplicationError("insufficient prompts: expected 3, got 1", "InsufficientPrompts", nil)
	})

	env.ExecuteWorkflow(PaperPipelineWorkflow, paperInput())
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result PaperPipelineResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, models.StatusFailed, result.Status)
	require.Contains(t, result.FailReason, "prompt generation failed")
	require.Equal(t, 2, promptCalls)
}

func TestPaperPipelineToleratesSingleGenerationFailure(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperPipelineWorkflow)
	registerPaperActivities(env)
	mockHappyStages(env)

	env.OnActivity("GeneratePromptsActivity", mock.Anything, mock.Anything).Return(activities.GeneratePromptsOutput{
		Prompts:      []string{"First prompt text.", "Second prompt text.", "Third prompt text."},
		ProviderName: "mock",
		Model:        "mock-vision",
	}, nil)
	attempted := map[int]bool{}
	env.OnActivity("GenerateImageActivity", mock.Anything, mock.Anything).Return(func(_ context.Context, in activities.GenerateImageInput) (activities.GenerateImageOutput, error) {
		attempted[in.PromptIndex] = true
		if in.PromptIndex == 1 {
			return activities.GenerateImageOutput{}, temporal.NewNonRetryableApplicationError("content rejected", "Permanent", nil)
		}
		return activities.GenerateImageOutput{ImagePath: "/tmp/gen.png", ProviderName: "mock", Model: "mock-image"}, nil
	})

	var organizeIn activities.OrganizeResultInput
	env.OnActivity("OrganizeResultActivity", mock.Anything, mock.Anything).Return(func(_ context.Context, in activities.OrganizeResultInput) (activities.OrganizeResultOutput, error) {
		organizeIn = in
		return activities.OrganizeResultOutput{Dir: "/tmp/out/run-1/results/2401.01234"}, nil
	})

	env.ExecuteWorkflow(PaperPipelineWorkflow, paperInput())
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result PaperPipelineResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, models.StatusOrganized, result.Status)

	require.Len(t, organizeIn.Generated, 3)
	require.False(t, organizeIn.Generated[0].Absent)
	require.True(t, organizeIn.Generated[1].Absent)
	require.False(t, organizeIn.Generated[2].Absent)

	// A permanent rejection of one prompt must not bench the provider for
	// the prompts that follow.
	require.True(t, attempted[2])
}
