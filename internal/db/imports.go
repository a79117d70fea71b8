package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/archive-importer/internal/pipeline"
)

// ImportSummary is a lightweight view of an import for list responses.
type ImportSummary struct {
	ID        uuid.UUID `json:"id"`
	Status    string    `json:"status"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateImport creates a new import record in the pre-pipeline uploaded state
// and returns its ID.
func (db *DB) CreateImport(ctx context.Context, ownerID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO imports (owner_id, status, stats)
		 VALUES ($1, $2, '{}'::jsonb)
		 RETURNING id`,
		ownerID, pipeline.StatusUploaded,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create import: %w", err)
	}
	return id, nil
}

// GetImport retrieves an import record by ID. Returns (nil, nil) when no
// record exists, which the coordinator maps to its NotFound error.
func (db *DB) GetImport(ctx context.Context, id uuid.UUID) (*pipeline.ImportRecord, error) {
	var rec pipeline.ImportRecord
	var statsJSON []byte

	err := db.pool.QueryRow(ctx,
		`SELECT id, owner_id, status, stats, error, created_at, updated_at
		 FROM imports WHERE id = $1`,
		id,
	).Scan(&rec.ID, &rec.OwnerID, &rec.Status, &statsJSON, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get import: %w", err)
	}

	rec.Stats = pipeline.Stats{}
	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &rec.Stats); err != nil {
			return nil, fmt.Errorf("failed to decode stats for import %s: %w", id, err)
		}
	}

	return &rec, nil
}

// UpdateImport applies a partial update to an import record. Nil fields keep
// their stored value; ClearError nulls the error column.
func (db *DB) UpdateImport(ctx context.Context, id uuid.UUID, upd pipeline.ImportUpdate) error {
	var statsJSON []byte
	if upd.Stats != nil {
		var err error
		statsJSON, err = json.Marshal(upd.Stats)
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
	}

	result, err := db.pool.Exec(ctx,
		`UPDATE imports
		 SET status = COALESCE($1, status),
		     stats = COALESCE($2, stats),
		     error = CASE WHEN $3 THEN NULL ELSE COALESCE($4, error) END,
		     updated_at = NOW()
		 WHERE id = $5`,
		upd.Status, statsJSON, upd.ClearError, upd.Error, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update import: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("import not found: %s", id)
	}
	return nil
}

// ListImports retrieves an owner's imports, most recent first.
func (db *DB) ListImports(ctx context.Context, ownerID uuid.UUID, limit int) ([]ImportSummary, error) {
	if limit == 0 {
		limit = 50
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, status, error, created_at, updated_at
		 FROM imports WHERE owner_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list imports: %w", err)
	}
	defer rows.Close()

	var imports []ImportSummary
	for rows.Next() {
		var imp ImportSummary
		if err := rows.Scan(&imp.ID, &imp.Status, &imp.Error, &imp.CreatedAt, &imp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan import: %w", err)
		}
		// Map a stage-name status with a recorded error to the failed marker.
		imp.Status = pipeline.StatusOf(imp.Status, imp.Error)
		imports = append(imports, imp)
	}
	return imports, nil
}
