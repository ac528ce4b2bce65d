package workflows

import (
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"diagbench/internal/activities"
	"diagbench/internal/models"
)

// PaperPipelineWorkflow runs one candidate through the full paper lifecycle:
// resolve, download, extract, prompt, generate, organize. Every exit path is
// a named terminal status; stage failures discard the paper and never fail
// the parent run.
func PaperPipelineWorkflow(ctx workflow.Context, input PaperPipelineInput) (PaperPipelineResult, error) {
	progress := PaperProgress{
		PaperID:     input.PaperID,
		Title:       input.Candidate.Title,
		CurrentStep: "init",
		Status:      models.StatusCandidate,
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetPaperProgress, func() (PaperProgress, error) {
		return progress, nil
	}); err != nil {
		return PaperPipelineResult{}, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	paper := models.Paper{
		PaperID: input.PaperID,
		RunID:   input.RunID,
		Title:   input.Candidate.Title,
		Source:  input.Candidate.SourceCategory,
		PDFURL:  input.Candidate.PDFURL,
	}
	setStatus := func(status models.Status, failReason string) {
		progress.Status = status
		progress.FailReason = failReason
		_ = workflow.ExecuteActivity(ctx, "UpdatePaperStatusActivity", activities.UpdatePaperStatusInput{
			Paper:      paper,
			Status:     status,
			FailReason: failReason,
		}).Get(ctx, nil)
	}
	discard := func(step, reason string, status models.Status) (PaperPipelineResult, error) {
		progress.Steps[step] = "failed"
		setStatus(status, reason)
		_ = workflow.ExecuteActivity(ctx, "CleanupPaperActivity", activities.CleanupPaperInput{
			RunID:   input.RunID,
			PaperID: input.PaperID,
		}).Get(ctx, nil)
		return PaperPipelineResult{PaperID: input.PaperID, Status: status, FailReason: reason}, nil
	}

	cooldown := durationOrDefault(input.CooldownSeconds, 900)
	visionCount := countOrDefault(input.VisionProviders)
	imageGenCount := countOrDefault(input.ImageGenProviders)
	visionState := newProviderState()
	imageGenState := newProviderState()

	setStatus(models.StatusCandidate, "")

	progress.CurrentStep = "resolve_info"
	progress.Steps[progress.CurrentStep] = "processing"
	var info activities.ResolveInfoOutput
	if err := workflow.ExecuteActivity(ctx, "ResolveInfoActivity", activities.ResolveInfoInput{Candidate: input.Candidate}).Get(ctx, &info); err != nil {
		return discard(progress.CurrentStep, "metadata resolution failed: "+err.Error(), models.StatusFailed)
	}
	paper.PDFURL = info.PDFURL
	paper.Authors = strings.Join(info.Authors, ", ")
	paper.Abstract = info.Abstract
	progress.Steps[progress.CurrentStep] = "done"
	setStatus(models.StatusInfoResolved, "")

	progress.CurrentStep = "download_pdf"
	progress.Steps[progress.CurrentStep] = "processing"
	var downloaded activities.DownloadPDFOutput
	if err := workflow.ExecuteActivity(ctx, "DownloadPDFActivity", activities.DownloadPDFInput{
		RunID:   input.RunID,
		PaperID: input.PaperID,
		PDFURL:  info.PDFURL,
	}).Get(ctx, &downloaded); err != nil {
		return discard(progress.CurrentStep, "pdf download failed: "+err.Error(), models.StatusFailed)
	}
	progress.Steps[progress.CurrentStep] = "done"
	setStatus(models.StatusDownloaded, "")

	progress.CurrentStep = "extract_diagram"
	progress.Steps[progress.CurrentStep] = "processing"
	var extracted activities.ExtractDiagramOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractDiagramActivity", activities.ExtractDiagramInput{
		RunID:   input.RunID,
		PaperID: input.PaperID,
		PDFPath: downloaded.Path,
	}).Get(ctx, &extracted); err != nil {
		return discard(progress.CurrentStep, "diagram extraction failed: "+err.Error(), models.StatusFailed)
	}
	if !extracted.Found {
		return discard(progress.CurrentStep, "no accepted diagram in document", models.StatusNoDiagram)
	}
	progress.Steps[progress.CurrentStep] = "done"
	setStatus(models.StatusDiagramFound, "")

	progress.CurrentStep = "generate_prompts"
	progress.Steps[progress.CurrentStep] = "processing"
	promptsOut, err := callVisionWithFailover(ctx, &visionState, visionCount, cooldown, activities.GeneratePromptsInput{
		RunID:      input.RunID,
		PaperID:    input.PaperID,
		ImagePath:  extracted.ImagePath,
		NumPrompts: input.NumPrompts,
	})
	if err != nil {
		return discard(progress.CurrentStep, "prompt generation failed: "+err.Error(), models.StatusFailed)
	}
	progress.Providers = append(progress.Providers, promptsOut.ProviderName)
	progress.Steps[progress.CurrentStep] = "done"
	setStatus(models.StatusPrompted, "")

	progress.CurrentStep = "generate_images"
	progress.Steps[progress.CurrentStep] = "processing"
	generated := make([]activities.GeneratedFile, 0, len(promptsOut.Prompts))
	for k, prompt := range promptsOut.Prompts {
		genOut, genErr := callImageGenWithFailover(ctx, &imageGenState, imageGenCount, cooldown, activities.GenerateImageInput{
			RunID:       input.RunID,
			PaperID:     input.PaperID,
			Prompt:      prompt,
			PromptIndex: k,
		})
		if genErr != nil {
			// Per-prompt generation failures are recorded, never escalated.
			generated = append(generated, activities.GeneratedFile{PromptIndex: k, Absent: true})
			continue
		}
		generated = append(generated, activities.GeneratedFile{PromptIndex: k, Path: genOut.ImagePath})
	}
	progress.Steps[progress.CurrentStep] = "done"
	setStatus(models.StatusGenerated, "")

	progress.CurrentStep = "organize_result"
	progress.Steps[progress.CurrentStep] = "processing"
	var organized activities.OrganizeResultOutput
	if err := workflow.ExecuteActivity(ctx, "OrganizeResultActivity", activities.OrganizeResultInput{
		RunID:     input.RunID,
		Paper:     paper,
		Diagram:   extracted.Diagram,
		ImagePath: extracted.ImagePath,
		Prompts:   promptsOut.Prompts,
		Generated: generated,
	}).Get(ctx, &organized); err != nil {
		return discard(progress.CurrentStep, "organize failed: "+err.Error(), models.StatusFailed)
	}
	progress.Steps[progress.CurrentStep] = "done"

	_ = workflow.ExecuteActivity(ctx, "CleanupPaperActivity", activities.CleanupPaperInput{
		RunID:   input.RunID,
		PaperID: input.PaperID,
	}).Get(ctx, nil)

	progress.CurrentStep = "done"
	setStatus(models.StatusOrganized, "")
	return PaperPipelineResult{
		PaperID:   input.PaperID,
		Status:    models.StatusOrganized,
		BundleDir: organized.Dir,
	}, nil
}

func countOrDefault(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}
