package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.CollectCandidatesActivity)
	w.RegisterActivity(a.ResolveInfoActivity)
	w.RegisterActivity(a.DownloadPDFActivity)
	w.RegisterActivity(a.ExtractDiagramActivity)
	w.RegisterActivity(a.GeneratePromptsActivity)
	w.RegisterActivity(a.GenerateImageActivity)
	w.RegisterActivity(a.OrganizeResultActivity)
	w.RegisterActivity(a.CleanupPaperActivity)
	w.RegisterActivity(a.UpdatePaperStatusActivity)
	w.RegisterActivity(a.UpdateRunActivity)
	w.RegisterActivity(a.LoadCheckpointActivity)
	w.RegisterActivity(a.SaveCheckpointActivity)
	w.RegisterActivity(a.LogModelCallActivity)
	w.RegisterActivity(a.WriteRunSummaryActivity)
}
