package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"diagbench/internal/config"
	"diagbench/internal/providers"
	"diagbench/internal/storage"
	"diagbench/internal/workflows"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
)

type Server struct {
	cfg       config.Config
	db        *storage.DB
	paperRepo *storage.PaperRepo
	runRepo   *storage.RunRepo
	providers *providers.Manager
	temporal  tclient.Client
}

func NewServer(cfg config.Config) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}
	return &Server{
		cfg:       cfg,
		db:        db,
		paperRepo: storage.NewPaperRepo(db),
		runRepo:   storage.NewRunRepo(db),
		providers: pm,
		temporal:  tc,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/runs", s.handleRuns)
	mux.HandleFunc("/runs/", s.handleRunsScoped)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		RunID       string   `json:"run_id"`
		TargetCount int      `json:"target_count"`
		MaxPapers   int      `json:"max_papers"`
		NumPrompts  int      `json:"num_prompts"`
		Categories  []string `json:"categories"`
		Seed        int64    `json:"seed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if req.TargetCount <= 0 {
		req.TargetCount = s.cfg.TargetCount
	}
	if req.MaxPapers <= 0 {
		req.MaxPapers = s.cfg.MaxPapers
	}
	if req.NumPrompts <= 0 {
		req.NumPrompts = s.cfg.NumPrompts
	}
	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		runID = uuid.NewString()
	}

	// Restarting an existing run id is how a checkpointed run resumes.
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       "harvest-" + runID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.HarvestRunWorkflow, workflows.HarvestRunInput{
		RunID:             runID,
		TargetCount:       req.TargetCount,
		MaxPapers:         req.MaxPapers,
		NumPrompts:        req.NumPrompts,
		Categories:        req.Categories,
		Seed:              req.Seed,
		VisionProviders:   s.providers.VisionCount(),
		ImageGenProviders: s.providers.ImageGenCount(),
		CooldownSeconds:   s.cfg.ProviderCooldownSecs,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":          runID,
		"workflow_id":     we.GetID(),
		"workflow_run_id": we.GetRunID(),
	})
}

func (s *Server) handleRunsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/runs/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	runID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		run, err := s.runRepo.GetRun(r.Context(), runID)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
		return
	}

	switch parts[1] {
	case "progress":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		var prog workflows.HarvestProgress
		resp, err := s.temporal.QueryWorkflow(r.Context(), "harvest-"+runID, "", workflows.QueryGetHarvestProgress)
		if err != nil {
			// Fall back to the persisted run record when the workflow is gone.
			run, rErr := s.runRepo.GetRun(r.Context(), runID)
			if rErr != nil {
				writeErr(w, http.StatusNotFound, rErr)
				return
			}
			writeJSON(w, http.StatusOK, workflows.HarvestProgress{
				RunID:          run.RunID,
				TargetCount:    run.TargetCount,
				MaxPapers:      run.MaxPapers,
				AcceptedCount:  run.AcceptedCount,
				AttemptedCount: run.AttemptedCount,
				Status:         run.Status,
			})
			return
		}
		if err := resp.Get(&prog); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, prog)
	case "papers":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		papers, err := s.paperRepo.ListPapersByRun(r.Context(), runID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"papers": papers})
	case "discarded":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		papers, err := s.paperRepo.ListDiscardedPapers(r.Context(), runID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"papers": papers})
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	msg := "request failed"
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, code, map[string]any{"error": map[string]any{"message": msg}})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
