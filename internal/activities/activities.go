package activities

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"

	"diagbench/internal/checkpoint"
	"diagbench/internal/classify"
	"diagbench/internal/collectors"
	"diagbench/internal/config"
	"diagbench/internal/extract"
	"diagbench/internal/fetch"
	"diagbench/internal/organize"
	"diagbench/internal/pdfimages"
	"diagbench/internal/prompts"
	"diagbench/internal/providers"
	"diagbench/internal/storage"
	"diagbench/internal/stream"
	"diagbench/internal/util"
)

type Activities struct {
	cfg           config.Config
	paperRepo     *storage.PaperRepo
	runRepo       *storage.RunRepo
	modelCallRepo *storage.ModelCallRepo
	checkpoints   *checkpoint.Store
	organizer     *organize.Organizer
	collector     stream.Source
	resolver      fetch.Resolver
	downloader    *fetch.Downloader
	extractor     *extract.Extractor
	providers     *providers.Manager
}

// New wires the activity dependencies. db may be nil, in which case the
// Postgres-backed activities become no-ops and the run relies on the file
// checkpoint alone.
func New(cfg config.Config, db *storage.DB) (*Activities, error) {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}

	classifier := classify.New(classify.Thresholds{
		MinDim:           cfg.MinImageDim,
		MaxDim:           cfg.MaxImageDim,
		MaxAspectRatio:   cfg.MaxAspectRatio,
		MinPaletteColors: cfg.MinPaletteColors,
		MaxPaletteColors: cfg.MaxPaletteColors,
		MinLightFraction: cfg.MinLightFraction,
	})
	extractor := extract.New(pdfimages.NewFitzSource(pdfimages.NewBandSegmenter()).WithDPI(cfg.RenderDPI), classifier)
	if cfg.KeywordPagePriority {
		extractor.WithPrioritizer(pdfimages.NewKeywordPrioritizer())
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	api := collectors.NewAPICollector(httpClient, cfg.PaperYear, cfg.MaxPerCategory)
	var collector stream.Source = api
	if strings.EqualFold(cfg.Collector, "listing") {
		// The HTML listing pages stand in when the Atom API is throttling.
		// Metadata resolution still goes through the API either way.
		collector = collectors.NewListingCollector(httpClient, cfg.PaperYear)
	}

	a := &Activities{
		cfg:         cfg,
		checkpoints: checkpoint.NewStore(filepath.Join(cfg.DataOutRoot, "checkpoints")),
		organizer:   organize.NewOrganizer(cfg.DataOutRoot),
		collector:   collector,
		resolver:    fetch.NewArxivResolver(api),
		downloader: fetch.NewDownloader(&http.Client{},
			int64(cfg.MaxPDFSizeMB)<<20,
			time.Duration(cfg.DownloadTimeoutSec)*time.Second),
		extractor: extractor,
		providers: pm,
	}
	if db != nil {
		a.paperRepo = storage.NewPaperRepo(db)
		a.runRepo = storage.NewRunRepo(db)
		a.modelCallRepo = storage.NewModelCallRepo(db)
	}
	return a, nil
}

// stageError marks failure classes that must not be retried by the activity
// retry policy: malformed documents, permanent upstream rejections, and
// sanitizer under-counts (the workflow applies its own single retry there).
func stageError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, util.ErrInsufficientPrompts):
		return temporal.NewNonRetryableApplicationError(err.Error(), "InsufficientPrompts", err)
	case errors.Is(err, util.ErrMalformedDocument):
		return temporal.NewNonRetryableApplicationError(err.Error(), "MalformedDocument", err)
	case errors.Is(err, util.ErrPermanent):
		return temporal.NewNonRetryableApplicationError(err.Error(), "Permanent", err)
	default:
		return err
	}
}

func (a *Activities) pdfPath(runID, paperID string) string {
	return filepath.Join(a.cfg.PDFDir, util.SafeJoin("", runID), util.SafeJoin("", paperID)+".pdf")
}

func (a *Activities) scratchDir(runID, paperID string) string {
	return filepath.Join(a.cfg.DataOutRoot, util.SafeJoin("", runID), "scratch", util.SafeJoin("", paperID))
}

func (a *Activities) CollectCandidatesActivity(ctx context.Context, in CollectCandidatesInput) (CollectCandidatesOutput, error) {
	categories := in.Categories
	if len(categories) == 0 {
		categories = a.cfg.Categories
	}
	seed := in.Seed
	if seed == 0 {
		seed = a.cfg.StreamSeed
	}

	s := stream.New(a.collector, categories, seed)
	candidates, err := s.Drain(ctx)
	if err != nil {
		return CollectCandidatesOutput{}, err
	}

	out := CollectCandidatesOutput{Candidates: candidates}
	for _, e := range s.FetchErrors() {
		out.PoolErrors = append(out.PoolErrors, e.Error())
	}
	if len(candidates) == 0 && len(out.PoolErrors) > 0 {
		return out, fmt.Errorf("every candidate pool failed: %s", strings.Join(out.PoolErrors, "; "))
	}
	return out, nil
}

func (a *Activities) ResolveInfoActivity(ctx context.Context, in ResolveInfoInput) (ResolveInfoOutput, error) {
	info, err := a.resolver.Resolve(ctx, in.Candidate)
	if err != nil {
		return ResolveInfoOutput{}, stageError(err)
	}
	return ResolveInfoOutput{
		ExternalID: info.ExternalID,
		PDFURL:     info.PDFURL,
		Abstract:   util.SanitizeText(info.Abstract),
		Authors:    info.Authors,
	}, nil
}

func (a *Activities) DownloadPDFActivity(ctx context.Context, in DownloadPDFInput) (DownloadPDFOutput, error) {
	dest := a.pdfPath(in.RunID, in.PaperID)
	if err := a.downloader.Download(ctx, in.PDFURL, dest); err != nil {
		return DownloadPDFOutput{}, stageError(err)
	}
	return DownloadPDFOutput{Path: dest}, nil
}

func (a *Activities) ExtractDiagramActivity(ctx context.Context, in ExtractDiagramInput) (ExtractDiagramOutput, error) {
	rec, data, err := a.extractor.Extract(ctx, in.PDFPath, in.PaperID)
	if err != nil {
		return ExtractDiagramOutput{}, stageError(err)
	}
	if rec == nil {
		return ExtractDiagramOutput{Found: false}, nil
	}

	imagePath := filepath.Join(a.scratchDir(in.RunID, in.PaperID), "original.png")
	if err := util.WriteBytesAtomic(imagePath, data); err != nil {
		return ExtractDiagramOutput{}, fmt.Errorf("write accepted diagram: %w", err)
	}
	rec.ImagePath = imagePath
	return ExtractDiagramOutput{Found: true, Diagram: *rec, ImagePath: imagePath}, nil
}

func (a *Activities) GeneratePromptsActivity(ctx context.Context, in GeneratePromptsInput) (GeneratePromptsOutput, error) {
	data, err := os.ReadFile(in.ImagePath)
	if err != nil {
		return GeneratePromptsOutput{}, fmt.Errorf("read diagram image: %w", err)
	}

	n := in.NumPrompts
	if n <= 0 {
		n = a.cfg.NumPrompts
	}
	provider, _ := a.providers.VisionByIndex(in.ProviderIndex)
	resp, info, err := provider.ImageToText(ctx, providers.VisionRequest{
		ImagePNG:    data,
		Instruction: prompts.VisionInstruction(n),
		NumPrompts:  n,
	})
	if err != nil {
		return GeneratePromptsOutput{}, err
	}

	cleaned, err := prompts.Sanitize(resp.Text, n)
	if err != nil {
		return GeneratePromptsOutput{}, stageError(err)
	}
	return GeneratePromptsOutput{Prompts: cleaned, ProviderName: info.Name, Model: info.Model}, nil
}

func (a *Activities) GenerateImageActivity(ctx context.Context, in GenerateImageInput) (GenerateImageOutput, error) {
	provider, _ := a.providers.ImageGenByIndex(in.ProviderIndex)
	resp, info, err := provider.TextToImage(ctx, providers.ImageGenRequest{
		Prompt: prompts.WrapForGeneration(in.Prompt),
	})
	if err != nil {
		return GenerateImageOutput{}, err
	}

	path := filepath.Join(a.scratchDir(in.RunID, in.PaperID), fmt.Sprintf("generated_%d.png", in.PromptIndex+1))
	if err := util.WriteBytesAtomic(path, resp.ImagePNG); err != nil {
		return GenerateImageOutput{}, fmt.Errorf("write generated image: %w", err)
	}
	return GenerateImageOutput{ImagePath: path, ProviderName: info.Name, Model: info.Model}, nil
}

func (a *Activities) OrganizeResultActivity(ctx context.Context, in OrganizeResultInput) (OrganizeResultOutput, error) {
	_ = ctx
	original, err := os.ReadFile(in.ImagePath)
	if err != nil {
		return OrganizeResultOutput{}, fmt.Errorf("read accepted diagram: %w", err)
	}

	generated := make([]organize.GeneratedImage, 0, len(in.Generated))
	for _, g := range in.Generated {
		if g.Absent {
			generated = append(generated, organize.GeneratedImage{Index: g.PromptIndex, Absent: true})
			continue
		}
		data, err := os.ReadFile(g.Path)
		if err != nil {
			// A scratch file lost between activities degrades to an absent
			// entry rather than failing the whole paper.
			generated = append(generated, organize.GeneratedImage{Index: g.PromptIndex, Absent: true})
			continue
		}
		generated = append(generated, organize.GeneratedImage{Index: g.PromptIndex, PNG: data})
	}

	res, err := a.organizer.Write(organize.Bundle{
		RunID:       in.RunID,
		Paper:       in.Paper,
		Diagram:     in.Diagram,
		OriginalPNG: original,
		Prompts:     in.Prompts,
		Generated:   generated,
	})
	if err != nil {
		return OrganizeResultOutput{}, err
	}
	return OrganizeResultOutput{Dir: res.Dir}, nil
}

func (a *Activities) CleanupPaperActivity(ctx context.Context, in CleanupPaperInput) error {
	_ = ctx
	if err := os.RemoveAll(a.scratchDir(in.RunID, in.PaperID)); err != nil {
		return fmt.Errorf("remove scratch dir: %w", err)
	}
	if err := os.Remove(a.pdfPath(in.RunID, in.PaperID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove pdf: %w", err)
	}
	return nil
}

func (a *Activities) UpdatePaperStatusActivity(ctx context.Context, in UpdatePaperStatusInput) error {
	if a.paperRepo == nil {
		return nil
	}
	p := in.Paper
	p.Status = in.Status
	p.FailReason = in.FailReason
	return a.paperRepo.UpsertPaper(ctx, p)
}

func (a *Activities) UpdateRunActivity(ctx context.Context, in UpdateRunInput) error {
	if a.runRepo == nil {
		return nil
	}
	return a.runRepo.UpsertRun(ctx, in.Run)
}

func (a *Activities) LoadCheckpointActivity(ctx context.Context, in LoadCheckpointInput) (LoadCheckpointOutput, error) {
	_ = ctx
	state, err := a.checkpoints.Load(in.RunID)
	if err != nil {
		return LoadCheckpointOutput{}, err
	}
	if state == nil {
		return LoadCheckpointOutput{Found: false}, nil
	}
	return LoadCheckpointOutput{Found: true, State: *state}, nil
}

func (a *Activities) SaveCheckpointActivity(ctx context.Context, in SaveCheckpointInput) error {
	_ = ctx
	return a.checkpoints.Save(in.State)
}

func (a *Activities) LogModelCallActivity(ctx context.Context, in LogModelCallInput) error {
	if a.modelCallRepo == nil {
		return nil
	}
	return a.modelCallRepo.Insert(ctx, storage.ModelCallRecord{
		CallID:       in.CallID,
		Operation:    in.Operation,
		RunID:        in.RunID,
		PaperID:      in.PaperID,
		ProviderName: in.ProviderName,
		Model:        in.Model,
		Status:       in.Status,
		ErrorType:    in.ErrorType,
	})
}

func (a *Activities) WriteRunSummaryActivity(ctx context.Context, in WriteRunSummaryInput) error {
	_ = ctx
	return a.organizer.WriteRunSummary(in.Run, in.Note)
}
