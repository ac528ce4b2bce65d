package storage

import (
	"context"
	"fmt"

	"diagbench/internal/models"
)

type PaperRepo struct {
	db *DB
}

func NewPaperRepo(db *DB) *PaperRepo {
	return &PaperRepo{db: db}
}

func (r *PaperRepo) UpsertPaper(ctx context.Context, p models.Paper) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO papers (paper_id, run_id, title, source, pdf_url, authors, abstract, status, fail_reason)
VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), NULLIF($7,''), $8, NULLIF($9,''))
ON CONFLICT (paper_id)
DO UPDATE SET
  run_id = EXCLUDED.run_id,
  title = EXCLUDED.title,
  source = COALESCE(EXCLUDED.source, papers.source),
  pdf_url = COALESCE(EXCLUDED.pdf_url, papers.pdf_url),
  authors = COALESCE(EXCLUDED.authors, papers.authors),
  abstract = COALESCE(EXCLUDED.abstract, papers.abstract),
  status = EXCLUDED.status,
  fail_reason = EXCLUDED.fail_reason,
  updated_at = NOW()`,
		p.PaperID, p.RunID, p.Title, p.Source, p.PDFURL, p.Authors, p.Abstract, p.Status, p.FailReason,
	)
	if err != nil {
		return fmt.Errorf("upsert paper: %w", err)
	}
	return nil
}

func (r *PaperRepo) UpdatePaperStatus(ctx context.Context, paperID string, status models.Status, failReason string) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE papers SET status=$2, fail_reason=NULLIF($3,''), updated_at=NOW() WHERE paper_id=$1`,
		paperID, status, failReason)
	if err != nil {
		return fmt.Errorf("update paper status: %w", err)
	}
	return nil
}

func (r *PaperRepo) ListPapersByRun(ctx context.Context, runID string) ([]models.Paper, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT paper_id, run_id, title, COALESCE(source,''), COALESCE(pdf_url,''), COALESCE(authors,''),
       COALESCE(abstract,''), status, COALESCE(fail_reason,''), created_at, updated_at
FROM papers
WHERE run_id=$1
ORDER BY created_at DESC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	defer rows.Close()

	out := make([]models.Paper, 0)
	for rows.Next() {
		var p models.Paper
		if err := rows.Scan(&p.PaperID, &p.RunID, &p.Title, &p.Source, &p.PDFURL, &p.Authors, &p.Abstract, &p.Status, &p.FailReason, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate papers: %w", err)
	}
	return out, nil
}

func (r *PaperRepo) ListDiscardedPapers(ctx context.Context, runID string) ([]models.Paper, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT paper_id, run_id, title, COALESCE(source,''), COALESCE(pdf_url,''), COALESCE(authors,''),
       COALESCE(abstract,''), status, COALESCE(fail_reason,''), created_at, updated_at
FROM papers
WHERE run_id=$1 AND status IN ('failed','no_diagram')
ORDER BY updated_at DESC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list discarded papers: %w", err)
	}
	defer rows.Close()
	out := make([]models.Paper, 0)
	for rows.Next() {
		var p models.Paper
		if err := rows.Scan(&p.PaperID, &p.RunID, &p.Title, &p.Source, &p.PDFURL, &p.Authors, &p.Abstract, &p.Status, &p.FailReason, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan discarded paper: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PaperRepo) GetPaperByID(ctx context.Context, paperID string) (models.Paper, error) {
	var p models.Paper
	err := r.db.Pool.QueryRow(ctx, `
SELECT paper_id, run_id, title, COALESCE(source,''), COALESCE(pdf_url,''), COALESCE(authors,''),
       COALESCE(abstract,''), status, COALESCE(fail_reason,''), created_at, updated_at
FROM papers
WHERE paper_id=$1`, paperID).
		Scan(&p.PaperID, &p.RunID, &p.Title, &p.Source, &p.PDFURL, &p.Authors, &p.Abstract, &p.Status, &p.FailReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return models.Paper{}, fmt.Errorf("get paper by id: %w", err)
	}
	return p, nil
}
