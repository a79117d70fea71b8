package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/archive-importer/internal/pipeline"
)

// AuditEntry is one stored audit log row.
type AuditEntry struct {
	ID         uuid.UUID      `json:"id"`
	ActorID    uuid.UUID      `json:"actor_id"`
	Action     string         `json:"action"`
	ObjectType string         `json:"object_type"`
	ObjectID   uuid.UUID      `json:"object_id"`
	ImportID   uuid.UUID      `json:"import_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Record appends one event to the audit log.
func (db *DB) Record(ctx context.Context, event pipeline.AuditEvent) error {
	var metadataJSON []byte
	if event.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO audit_log (actor_id, action, object_type, object_id, import_id, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ActorID, event.Action, event.ObjectType, event.ObjectID, event.ImportID, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// ListAuditEvents retrieves the audit trail for an import, oldest first.
func (db *DB) ListAuditEvents(ctx context.Context, importID uuid.UUID) ([]AuditEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, actor_id, action, object_type, object_id, import_id, metadata, created_at
		 FROM audit_log WHERE import_id = $1
		 ORDER BY created_at`,
		importID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var entry AuditEntry
		var metadataJSON []byte
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.ObjectType,
			&entry.ObjectID, &entry.ImportID, &metadataJSON, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if metadataJSON != nil {
			_ = json.Unmarshal(metadataJSON, &entry.Metadata)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
