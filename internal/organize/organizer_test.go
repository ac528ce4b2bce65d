package organize

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"diagbench/internal/models"
)

func sampleBundle() Bundle {
	return Bundle{
		RunID: "run-1",
		Paper: models.Paper{
			PaperID: "paper-1",
			Title:   "Deep Diagram Understanding",
			Source:  "arXiv2024/cs.AI",
		},
		Diagram: models.DiagramRecord{
			PaperID: "paper-1",
			Image:   models.CandidateImage{PaperID: "paper-1", PageIndex: 2, ImageIndex: 0, Width: 600, Height: 400},
		},
		OriginalPNG: []byte("original-bytes"),
		Prompts:     []string{"A flowchart of stages", "A block diagram of modules"},
		Generated: []GeneratedImage{
			{Index: 0, PNG: []byte("gen-0")},
			{Index: 1, Absent: true},
		},
	}
}

func TestWriteBundleLayout(t *testing.T) {
	o := NewOrganizer(t.TempDir())
	res, err := o.Write(sampleBundle())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(res.Dir, "original.png"))
	require.NoError(t, err)
	require.Equal(t, []byte("original-bytes"), data)

	data, err = os.ReadFile(filepath.Join(res.Dir, "generated_1.png"))
	require.NoError(t, err)
	require.Equal(t, []byte("gen-0"), data)

	// The failed generation leaves a marker, not a png.
	_, err = os.Stat(filepath.Join(res.Dir, "generated_2.absent"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(res.Dir, "generated_2.png"))
	require.True(t, os.IsNotExist(err))
}

func TestWriteBundlePromptsFile(t *testing.T) {
	o := NewOrganizer(t.TempDir())
	res, err := o.Write(sampleBundle())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(res.Dir, "prompts.txt"))
	require.NoError(t, err)
	text := string(data)
	require.Contains(t, text, "Paper: Deep Diagram Understanding")
	require.Contains(t, text, "Diagram: page 3 image 1 (600x400)")
	require.Contains(t, text, "1. A flowchart of stages")
	require.Contains(t, text, "2. A block diagram of modules")
}

func TestWriteBundleMetadata(t *testing.T) {
	o := NewOrganizer(t.TempDir())
	res, err := o.Write(sampleBundle())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(res.Dir, "metadata.json"))
	require.NoError(t, err)

	var meta struct {
		RunID     string                        `json:"run_id"`
		Prompts   []string                      `json:"prompts"`
		Generated []models.GeneratedImageRecord `json:"generated"`
	}
	require.NoError(t, json.Unmarshal(data, &meta))
	require.Equal(t, "run-1", meta.RunID)
	require.Len(t, meta.Prompts, 2)
	require.Len(t, meta.Generated, 2)
	require.False(t, meta.Generated[0].Absent)
	require.True(t, meta.Generated[1].Absent)
}

func TestWriteRunSummary(t *testing.T) {
	dir := t.TempDir()
	o := NewOrganizer(dir)
	run := models.HarvestRun{RunID: "run-1", TargetCount: 2, AcceptedCount: 2, AttemptedCount: 5, Status: "completed"}
	require.NoError(t, o.WriteRunSummary(run, "stream exhausted"))

	data, err := os.ReadFile(filepath.Join(dir, "run-1", "summary.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"accepted_count": 2`)
	require.Contains(t, string(data), "stream exhausted")
}

func TestWriteRejectsEmptyIDs(t *testing.T) {
	o := NewOrganizer(t.TempDir())
	b := sampleBundle()
	b.RunID = ""
	_, err := o.Write(b)
	require.Error(t, err)
}
