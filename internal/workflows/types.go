package workflows

import "diagbench/internal/models"

type HarvestRunInput struct {
	RunID             string   `json:"run_id"`
	TargetCount       int      `json:"target_count"`
	MaxPapers         int      `json:"max_papers"`
	NumPrompts        int      `json:"num_prompts"`
	Categories        []string `json:"categories,omitempty"`
	Seed              int64    `json:"seed,omitempty"`
	VisionProviders   int      `json:"vision_providers"`
	ImageGenProviders int      `json:"imagegen_providers"`
	CooldownSeconds   int      `json:"cooldown_seconds"`
}

// HarvestProgress is served by the run's query handler.
type HarvestProgress struct {
	RunID          string            `json:"run_id"`
	TargetCount    int               `json:"target_count"`
	MaxPapers      int               `json:"max_papers"`
	AcceptedCount  int               `json:"accepted_count"`
	AttemptedCount int               `json:"attempted_count"`
	CandidateTotal int               `json:"candidate_total"`
	CurrentPaper   string            `json:"current_paper,omitempty"`
	PerPaper       map[string]string `json:"per_paper"`
	Status         string            `json:"status"`
}

type PaperPipelineInput struct {
	RunID             string                `json:"run_id"`
	PaperID           string                `json:"paper_id"`
	Candidate         models.PaperCandidate `json:"candidate"`
	NumPrompts        int                   `json:"num_prompts"`
	VisionProviders   int                   `json:"vision_providers"`
	ImageGenProviders int                   `json:"imagegen_providers"`
	CooldownSeconds   int                   `json:"cooldown_seconds"`
}

type PaperPipelineResult struct {
	PaperID    string        `json:"paper_id"`
	Status     models.Status `json:"status"`
	FailReason string        `json:"fail_reason,omitempty"`
	BundleDir  string        `json:"bundle_dir,omitempty"`
}

// PaperProgress is served by the per-paper query handler.
type PaperProgress struct {
	PaperID     string            `json:"paper_id"`
	Title       string            `json:"title"`
	CurrentStep string            `json:"current_step"`
	Status      models.Status     `json:"status"`
	FailReason  string            `json:"fail_reason,omitempty"`
	Steps       map[string]string `json:"steps"`
	Providers   []string          `json:"providers,omitempty"`
}

// Run terminal states.
const (
	RunStatusCompleted       = "completed"
	RunStatusBudgetExhausted = "budget_exhausted"
	RunStatusStarved         = "starved"
)
