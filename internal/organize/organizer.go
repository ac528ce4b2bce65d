package organize

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"diagbench/internal/models"
	"diagbench/internal/util"
)

// GeneratedImage is one generation result handed to the organizer. Absent
// entries come from tolerated per-prompt failures.
type GeneratedImage struct {
	Index  int
	PNG    []byte
	Absent bool
}

// Bundle is everything written for one accepted paper.
type Bundle struct {
	RunID       string
	Paper       models.Paper
	Diagram     models.DiagramRecord
	OriginalPNG []byte
	Prompts     []string
	Generated   []GeneratedImage
}

// Result reports where the bundle landed.
type Result struct {
	Dir       string
	Generated []models.GeneratedImageRecord
}

// Organizer lays out the per-paper output directories. Every paper writes
// only inside its own directory, so bundles never contend.
//
// Layout per accepted paper:
//
//	<out>/<run>/results/<paper>/original.png
//	<out>/<run>/results/<paper>/generated_1.png (or generated_1.absent)
//	<out>/<run>/results/<paper>/prompts.txt
//	<out>/<run>/results/<paper>/metadata.json
type Organizer struct {
	outDir string
}

func NewOrganizer(outDir string) *Organizer {
	return &Organizer{outDir: outDir}
}

func (o *Organizer) RunDir(runID string) string {
	return filepath.Join(o.outDir, util.SafeJoin("", runID))
}

func (o *Organizer) PaperDir(runID, paperID string) string {
	return filepath.Join(o.RunDir(runID), "results", util.SafeJoin("", paperID))
}

// Write materializes the bundle. All files are written atomically; an absent
// generation leaves a marker file instead of an image so the gap is visible
// in the output tree.
func (o *Organizer) Write(b Bundle) (Result, error) {
	if b.RunID == "" || b.Paper.PaperID == "" {
		return Result{}, fmt.Errorf("bundle requires run and paper ids")
	}
	dir := o.PaperDir(b.RunID, b.Paper.PaperID)
	if err := util.EnsureDir(dir); err != nil {
		return Result{}, err
	}

	if err := util.WriteBytesAtomic(filepath.Join(dir, "original.png"), b.OriginalPNG); err != nil {
		return Result{}, fmt.Errorf("write original image: %w", err)
	}

	records := make([]models.GeneratedImageRecord, 0, len(b.Generated))
	for _, g := range b.Generated {
		name := fmt.Sprintf("generated_%d.png", g.Index+1)
		if g.Absent {
			marker := fmt.Sprintf("generated_%d.absent", g.Index+1)
			if err := util.WriteTextAtomic(filepath.Join(dir, marker), "generation failed\n"); err != nil {
				return Result{}, fmt.Errorf("write absence marker: %w", err)
			}
			records = append(records, models.GeneratedImageRecord{PromptIndex: g.Index, Absent: true})
			continue
		}
		path := filepath.Join(dir, name)
		if err := util.WriteBytesAtomic(path, g.PNG); err != nil {
			return Result{}, fmt.Errorf("write generated image %d: %w", g.Index, err)
		}
		records = append(records, models.GeneratedImageRecord{PromptIndex: g.Index, ImagePath: path})
	}

	if err := util.WriteTextAtomic(filepath.Join(dir, "prompts.txt"), promptsText(b)); err != nil {
		return Result{}, fmt.Errorf("write prompts: %w", err)
	}

	meta := bundleMetadata{
		RunID:     b.RunID,
		Paper:     b.Paper,
		Diagram:   b.Diagram,
		Prompts:   b.Prompts,
		Generated: records,
		WrittenAt: time.Now().UTC(),
	}
	if err := util.WriteJSONAtomic(filepath.Join(dir, "metadata.json"), meta); err != nil {
		return Result{}, fmt.Errorf("write metadata: %w", err)
	}
	return Result{Dir: dir, Generated: records}, nil
}

type bundleMetadata struct {
	RunID     string                        `json:"run_id"`
	Paper     models.Paper                  `json:"paper"`
	Diagram   models.DiagramRecord          `json:"diagram"`
	Prompts   []string                      `json:"prompts"`
	Generated []models.GeneratedImageRecord `json:"generated"`
	WrittenAt time.Time                     `json:"written_at"`
}

func promptsText(b Bundle) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Paper: %s\n", b.Paper.Title)
	if b.Paper.Source != "" {
		fmt.Fprintf(&sb, "Source: %s\n", b.Paper.Source)
	}
	fmt.Fprintf(&sb, "Paper ID: %s\n", b.Paper.PaperID)
	fmt.Fprintf(&sb, "Diagram: page %d image %d (%dx%d)\n\n",
		b.Diagram.Image.PageIndex+1, b.Diagram.Image.ImageIndex+1,
		b.Diagram.Image.Width, b.Diagram.Image.Height)
	for i, p := range b.Prompts {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, p)
	}
	return sb.String()
}

// WriteRunSummary records the run's final counts at the run root.
func (o *Organizer) WriteRunSummary(run models.HarvestRun, note string) error {
	summary := struct {
		models.HarvestRun
		Note      string    `json:"note,omitempty"`
		WrittenAt time.Time `json:"written_at"`
	}{HarvestRun: run, Note: note, WrittenAt: time.Now().UTC()}
	return util.WriteJSONAtomic(filepath.Join(o.RunDir(run.RunID), "summary.json"), summary)
}
