package activities

import (
	"diagbench/internal/models"
)

type CollectCandidatesInput struct {
	RunID      string   `json:"run_id"`
	Categories []string `json:"categories,omitempty"`
	Seed       int64    `json:"seed"`
}

type CollectCandidatesOutput struct {
	Candidates []models.PaperCandidate `json:"candidates"`
	PoolErrors []string                `json:"pool_errors,omitempty"`
}

type ResolveInfoInput struct {
	Candidate models.PaperCandidate `json:"candidate"`
}

type ResolveInfoOutput struct {
	ExternalID string   `json:"external_id"`
	PDFURL     string   `json:"pdf_url"`
	Abstract   string   `json:"abstract,omitempty"`
	Authors    []string `json:"authors,omitempty"`
}

type DownloadPDFInput struct {
	RunID   string `json:"run_id"`
	PaperID string `json:"paper_id"`
	PDFURL  string `json:"pdf_url"`
}

type DownloadPDFOutput struct {
	Path string `json:"path"`
}

type ExtractDiagramInput struct {
	RunID   string `json:"run_id"`
	PaperID string `json:"paper_id"`
	PDFPath string `json:"pdf_path"`
}

type ExtractDiagramOutput struct {
	Found     bool                 `json:"found"`
	Diagram   models.DiagramRecord `json:"diagram,omitempty"`
	ImagePath string               `json:"image_path,omitempty"`
}

type GeneratePromptsInput struct {
	RunID         string `json:"run_id"`
	PaperID       string `json:"paper_id"`
	ImagePath     string `json:"image_path"`
	NumPrompts    int    `json:"num_prompts"`
	ProviderIndex int    `json:"provider_index"`
}

type GeneratePromptsOutput struct {
	Prompts      []string `json:"prompts"`
	ProviderName string   `json:"provider_name"`
	Model        string   `json:"model"`
}

type GenerateImageInput struct {
	RunID         string `json:"run_id"`
	PaperID       string `json:"paper_id"`
	Prompt        string `json:"prompt"`
	PromptIndex   int    `json:"prompt_index"`
	ProviderIndex int    `json:"provider_index"`
}

type GenerateImageOutput struct {
	ImagePath    string `json:"image_path"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
}

type GeneratedFile struct {
	PromptIndex int    `json:"prompt_index"`
	Path        string `json:"path,omitempty"`
	Absent      bool   `json:"absent,omitempty"`
}

type OrganizeResultInput struct {
	RunID     string               `json:"run_id"`
	Paper     models.Paper         `json:"paper"`
	Diagram   models.DiagramRecord `json:"diagram"`
	ImagePath string               `json:"image_path"`
	Prompts   []string             `json:"prompts"`
	Generated []GeneratedFile      `json:"generated"`
}

type OrganizeResultOutput struct {
	Dir string `json:"dir"`
}

type UpdatePaperStatusInput struct {
	Paper      models.Paper  `json:"paper"`
	Status     models.Status `json:"status"`
	FailReason string        `json:"fail_reason,omitempty"`
}

type LoadCheckpointInput struct {
	RunID string `json:"run_id"`
}

type LoadCheckpointOutput struct {
	Found bool                 `json:"found"`
	State models.ProgressState `json:"state,omitempty"`
}

type SaveCheckpointInput struct {
	State models.ProgressState `json:"state"`
}

type UpdateRunInput struct {
	Run models.HarvestRun `json:"run"`
}

type LogModelCallInput struct {
	CallID       string `json:"call_id,omitempty"`
	Operation    string `json:"operation"`
	RunID        string `json:"run_id,omitempty"`
	PaperID      string `json:"paper_id,omitempty"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model,omitempty"`
	Status       string `json:"status"`
	ErrorType    string `json:"error_type,omitempty"`
}

type WriteRunSummaryInput struct {
	Run  models.HarvestRun `json:"run"`
	Note string            `json:"note,omitempty"`
}

type CleanupPaperInput struct {
	RunID   string `json:"run_id"`
	PaperID string `json:"paper_id"`
}
