package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ImportRecord is the coordinator's view of one tracked import. The record is
// created externally in the uploaded state; only the coordinator mutates
// status, stats, and error after that.
type ImportRecord struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Status    string
	Stats     Stats
	Error     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ImportUpdate is a partial update to an import record. Nil fields are left
// untouched; ClearError resets the error column to null.
type ImportUpdate struct {
	Status     *string
	Stats      Stats
	Error      *string
	ClearError bool
}

// StageResult is a stage executor's success payload. The coordinator stores
// it verbatim under the stage's stats key and only inspects the guarded
// fields.
type StageResult struct {
	Payload json.RawMessage
}

// AuditEvent is one append-only entry recorded when a pipeline completes.
type AuditEvent struct {
	ActorID    uuid.UUID
	Action     string
	ObjectType string
	ObjectID   uuid.UUID
	ImportID   uuid.UUID
	Metadata   map[string]any
}

// ImportStore persists import records. GetImport returns (nil, nil) when no
// record exists for the id.
type ImportStore interface {
	GetImport(ctx context.Context, id uuid.UUID) (*ImportRecord, error)
	UpdateImport(ctx context.Context, id uuid.UUID, upd ImportUpdate) error
}

// ReviewQueue reports how many manual-review items are still pending for an
// import. The coordinator only ever reads the count.
type ReviewQueue interface {
	CountPending(ctx context.Context, importID uuid.UUID) (int, error)
}

// AuditLog records completed-pipeline events.
type AuditLog interface {
	Record(ctx context.Context, event AuditEvent) error
}

// Executor invokes the external worker for one stage. Executors must tolerate
// repeated invocation for the same import: the coordinator checkpoints status
// before each call, so a crash between the checkpoint and the result write
// leads to an at-least-once retry of that stage.
type Executor interface {
	Execute(ctx context.Context, stage Stage, importID, callerID uuid.UUID) (*StageResult, error)
}
