package storage

import (
	"context"
	"fmt"

	"diagbench/internal/models"
)

type RunRepo struct {
	db *DB
}

func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) UpsertRun(ctx context.Context, run models.HarvestRun) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO harvest_runs (run_id, target_count, max_papers, accepted_count, attempted_count, status)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (run_id)
DO UPDATE SET
  target_count = EXCLUDED.target_count,
  max_papers = EXCLUDED.max_papers,
  accepted_count = EXCLUDED.accepted_count,
  attempted_count = EXCLUDED.attempted_count,
  status = EXCLUDED.status,
  updated_at = NOW()`,
		run.RunID, run.TargetCount, run.MaxPapers, run.AcceptedCount, run.AttemptedCount, run.Status)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

func (r *RunRepo) UpdateCounts(ctx context.Context, runID string, accepted, attempted int, status string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE harvest_runs SET accepted_count=$2, attempted_count=$3, status=$4, updated_at=NOW() WHERE run_id=$1`,
		runID, accepted, attempted, status)
	if err != nil {
		return fmt.Errorf("update run counts: %w", err)
	}
	return nil
}

func (r *RunRepo) GetRun(ctx context.Context, runID string) (models.HarvestRun, error) {
	var run models.HarvestRun
	err := r.db.Pool.QueryRow(ctx, `
SELECT run_id, target_count, max_papers, accepted_count, attempted_count, status, created_at, updated_at
FROM harvest_runs
WHERE run_id=$1`, runID).
		Scan(&run.RunID, &run.TargetCount, &run.MaxPapers, &run.AcceptedCount, &run.AttemptedCount, &run.Status, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return models.HarvestRun{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}
