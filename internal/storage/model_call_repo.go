package storage

import (
	"context"
	"fmt"
)

// ModelCallRecord audits one model endpoint call, covering both the vision
// and generation stages.
type ModelCallRecord struct {
	CallID       string
	Operation    string
	RunID        string
	PaperID      string
	ProviderName string
	Model        string
	Status       string
	ErrorType    string
}

type ModelCallRepo struct {
	db *DB
}

func NewModelCallRepo(db *DB) *ModelCallRepo {
	return &ModelCallRepo{db: db}
}

func (r *ModelCallRepo) Insert(ctx context.Context, rec ModelCallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO model_calls(call_id, operation, run_id, paper_id, provider_name, model, status, error_type)
VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()), $2, NULLIF($3,''), NULLIF($4,''), $5, $6, $7, NULLIF($8,''))`,
		rec.CallID, rec.Operation, rec.RunID, rec.PaperID, rec.ProviderName, rec.Model, rec.Status, rec.ErrorType)
	if err != nil {
		return fmt.Errorf("insert model call: %w", err)
	}
	return nil
}
