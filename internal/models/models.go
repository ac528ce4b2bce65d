package models

import "time"

// Status is the paper-level lifecycle. A paper occupies exactly one status at a
// time; NoDiagram and Failed are terminal discards, Organized is the terminal
// success.
type Status string

const (
	StatusCandidate    Status = "candidate"
	StatusInfoResolved Status = "info_resolved"
	StatusDownloaded   Status = "downloaded"
	StatusNoDiagram    Status = "no_diagram"
	StatusDiagramFound Status = "diagram_found"
	StatusPrompted     Status = "prompted"
	StatusGenerated    Status = "generated"
	StatusOrganized    Status = "organized"
	StatusFailed       Status = "failed"
)

// Terminal reports whether a status ends the paper's lifecycle.
func (s Status) Terminal() bool {
	switch s {
	case StatusNoDiagram, StatusOrganized, StatusFailed:
		return true
	}
	return false
}

// Discarded reports whether a terminal status means the paper contributed no
// accepted diagram. Failed is treated identically to NoDiagram for control flow.
func (s Status) Discarded() bool {
	return s == StatusNoDiagram || s == StatusFailed
}

// PaperCandidate is produced by the paper stream and consumed by the pipeline
// controller. ExternalID and PDFURL stay empty until metadata is resolved.
type PaperCandidate struct {
	SourceCategory string `json:"source_category"`
	Title          string `json:"title"`
	ExternalID     string `json:"external_id,omitempty"`
	PDFURL         string `json:"pdf_url,omitempty"`
	PublishedDate  string `json:"published_date,omitempty"`
	Status         Status `json:"status"`
}

// Paper is the persisted paper record.
type Paper struct {
	PaperID    string    `json:"paper_id"`
	RunID      string    `json:"run_id"`
	Title      string    `json:"title"`
	Source     string    `json:"source,omitempty"`
	PDFURL     string    `json:"pdf_url,omitempty"`
	Authors    string    `json:"authors,omitempty"`
	Abstract   string    `json:"abstract,omitempty"`
	Status     Status    `json:"status"`
	FailReason string    `json:"fail_reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HarvestRun is the persisted run record.
type HarvestRun struct {
	RunID          string    `json:"run_id"`
	TargetCount    int       `json:"target_count"`
	MaxPapers      int       `json:"max_papers"`
	AcceptedCount  int       `json:"accepted_count"`
	AttemptedCount int       `json:"attempted_count"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Decision is the classifier verdict for one candidate image.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// ClassificationResult is the pure output of the image classifier. The same
// input pixels always yield the same result.
type ClassificationResult struct {
	Decision  Decision `json:"decision"`
	Score     float64  `json:"score"`
	ReasonTag string   `json:"reason_tag,omitempty"`
}

// CandidateImage identifies one image found while scanning a paper's pages.
type CandidateImage struct {
	PaperID    string `json:"paper_id"`
	PageIndex  int    `json:"page_index"`
	ImageIndex int    `json:"image_index"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// DiagramRecord is created exactly once per accepted paper: the first image
// passing all classifier gates, in page order then in-page order.
type DiagramRecord struct {
	PaperID    string         `json:"paper_id"`
	Image      CandidateImage `json:"image"`
	ImagePath  string         `json:"image_path"`
	AcceptedAt time.Time      `json:"accepted_at"`
}

// GeneratedImageRecord is one per prompt. Absent records a recoverable
// per-prompt generation failure; absence is surfaced in the output bundle,
// never silently dropped.
type GeneratedImageRecord struct {
	PromptIndex int    `json:"prompt_index"`
	ImagePath   string `json:"image_path,omitempty"`
	Absent      bool   `json:"absent,omitempty"`
}

// ProgressState is the run-wide state owned by the controller. It is mutated
// after every paper's terminal status and checkpointed for resume.
type ProgressState struct {
	RunID          string          `json:"run_id"`
	TargetCount    int             `json:"target_count"`
	MaxPapers      int             `json:"max_papers"`
	AcceptedCount  int             `json:"accepted_count"`
	AttemptedCount int             `json:"attempted_count"`
	Attempted      map[string]bool `json:"attempted"`
}

// NewProgressState initializes an empty progress state for a fresh run.
func NewProgressState(runID string, target, maxPapers int) ProgressState {
	return ProgressState{
		RunID:       runID,
		TargetCount: target,
		MaxPapers:   maxPapers,
		Attempted:   map[string]bool{},
	}
}

// AlreadyAttempted reports whether a paper reached a terminal status in this
// run, including discards. Attempted papers are skipped on resume.
func (p *ProgressState) AlreadyAttempted(paperID string) bool {
	return p.Attempted[paperID]
}

// Record registers one paper's terminal outcome. Re-recording an attempted
// paper is a no-op so a resumed run can never double-count.
func (p *ProgressState) Record(paperID string, accepted bool) {
	if p.Attempted == nil {
		p.Attempted = map[string]bool{}
	}
	if p.Attempted[paperID] {
		return
	}
	p.Attempted[paperID] = true
	p.AttemptedCount++
	if accepted {
		p.AcceptedCount++
	}
}

// TargetReached reports the success termination condition.
func (p *ProgressState) TargetReached() bool {
	return p.AcceptedCount >= p.TargetCount
}

// BudgetExhausted reports the paper-budget termination condition.
func (p *ProgressState) BudgetExhausted() bool {
	return p.MaxPapers > 0 && p.AttemptedCount >= p.MaxPapers
}
