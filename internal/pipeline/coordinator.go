package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
)

// Outcome statuses reported to the caller on success.
const (
	OutcomeAlreadyCommitted = "already committed"
	OutcomeCommitted        = StatusCommitted
	OutcomeReviewPending    = StatusReviewPending
)

// Outcome is the result of a successful Run invocation.
type Outcome struct {
	Status             string `json:"status"`
	PendingReviewItems int    `json:"pending_review_items"`
	// DegenerateRetry marks a run that re-entered a committed import whose
	// extraction had produced zero files.
	DegenerateRetry bool `json:"-"`
}

// Coordinator drives imports through the pipeline stages. It holds no
// per-import state of its own; everything durable lives in the import record.
type Coordinator struct {
	store ImportStore
	queue ReviewQueue
	audit AuditLog
	exec  Executor
}

// New creates a coordinator over the given collaborators.
func New(store ImportStore, queue ReviewQueue, audit AuditLog, exec Executor) *Coordinator {
	return &Coordinator{store: store, queue: queue, audit: audit, exec: exec}
}

// Run advances the import through every remaining stage. callerID must match
// the record's owner; the check happens exactly once, before any stage runs.
//
// Stage N's status and stats are persisted before stage N+1 is invoked, so a
// crash mid-run leaves the record pointing at the stage that needs retry.
// Run takes no lock on the import record: concurrent invocations for the same
// import can each read a stale status and re-execute overlapping stages,
// which the executors' idempotency contract absorbs.
func (c *Coordinator) Run(ctx context.Context, importID, callerID uuid.UUID) (*Outcome, error) {
	rec, err := c.store.GetImport(ctx, importID)
	if err != nil {
		return nil, fmt.Errorf("loading import %s: %w", importID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("import %s: %w", importID, ErrNotFound)
	}
	if rec.OwnerID != callerID {
		return nil, fmt.Errorf("import %s: %w", importID, ErrForbidden)
	}

	stats := rec.Stats.Clone()
	start := 0
	degenerate := false

	phase, resumeStage := ResolvePhase(rec.Status, rec.Error)
	switch phase {
	case PhaseCommitted:
		extract, ok := stats.Extracting()
		if !ok || extract.FilesFound != 0 {
			return &Outcome{Status: OutcomeAlreadyCommitted}, nil
		}
		// A committed import whose extraction found nothing is a degenerate
		// prior run; reset it and run the whole pipeline again.
		degenerate = true
		status := StatusUploaded
		if err := c.store.UpdateImport(ctx, importID, ImportUpdate{Status: &status, ClearError: true}); err != nil {
			return nil, fmt.Errorf("resetting degenerate import %s: %w", importID, err)
		}
		log.Printf("[pipeline] import %s: committed with zero extracted files, re-running from start", importID)
	case PhaseFailed, PhaseInProgress:
		start, _ = StageIndex(string(resumeStage))
	default:
		// Initial state, an unrecognized status, or review_pending: only
		// committed is a no-op, so everything else runs from the first stage.
		start = 0
	}

	stages := Stages()
	for i := start; i < len(stages); i++ {
		stage := stages[i]

		// Checkpoint before invoking so a crash mid-stage leaves the record
		// pointing at the stage that needs retry. This write also clears the
		// error from a failed prior run.
		status := string(stage)
		if err := c.store.UpdateImport(ctx, importID, ImportUpdate{Status: &status, ClearError: true}); err != nil {
			return nil, fmt.Errorf("checkpointing import %s at %s: %w", importID, stage, err)
		}

		result, err := c.exec.Execute(ctx, stage, importID, callerID)
		if err != nil {
			return nil, c.fail(ctx, importID, stats, &StageError{Stage: stage, Detail: err.Error(), Cause: err})
		}

		// A structurally successful call that produced no usable output is
		// still a pipeline failure.
		if detail := checkGuard(stage, result.Payload); detail != "" {
			return nil, c.fail(ctx, importID, stats, &StageError{Stage: stage, Detail: detail})
		}

		stats.Set(stage, result.Payload)
		if err := c.store.UpdateImport(ctx, importID, ImportUpdate{Status: &status, Stats: stats}); err != nil {
			return nil, fmt.Errorf("recording %s result for import %s: %w", stage, importID, err)
		}
		log.Printf("[pipeline] import %s: stage %s complete", importID, stage)
	}

	out, err := c.finalize(ctx, importID, callerID, stats)
	if err != nil {
		return nil, err
	}
	out.DegenerateRetry = degenerate
	return out, nil
}

// fail records a stage or guard failure: the accumulated stats from prior
// successful stages are persisted alongside the error text, and the status is
// left at the failing stage's name so a retry re-enters there.
func (c *Coordinator) fail(ctx context.Context, importID uuid.UUID, stats Stats, stageErr *StageError) error {
	msg := stageErr.Error()
	upd := ImportUpdate{Error: &msg}
	if len(stats) > 0 {
		upd.Stats = stats
	}
	if err := c.store.UpdateImport(ctx, importID, upd); err != nil {
		log.Printf("[pipeline] import %s: failed to record failure %q: %v", importID, msg, err)
	}
	return stageErr
}

// finalize computes the terminal status from the review queue, persists it
// with the pending count, and records the completion audit event.
func (c *Coordinator) finalize(ctx context.Context, importID, callerID uuid.UUID, stats Stats) (*Outcome, error) {
	pending, err := c.queue.CountPending(ctx, importID)
	if err != nil {
		return nil, fmt.Errorf("counting pending review items for import %s: %w", importID, err)
	}

	final := StatusCommitted
	if pending > 0 {
		final = StatusReviewPending
	}
	stats.SetPendingReview(pending)
	if err := c.store.UpdateImport(ctx, importID, ImportUpdate{Status: &final, Stats: stats, ClearError: true}); err != nil {
		return nil, fmt.Errorf("finalizing import %s: %w", importID, err)
	}

	// The audit trail is best effort once the terminal status is durable; a
	// completed pipeline is not reported as failed over a sink error.
	event := AuditEvent{
		ActorID:    callerID,
		Action:     "pipeline_completed",
		ObjectType: "import",
		ObjectID:   importID,
		ImportID:   importID,
		Metadata: map[string]any{
			"status":               final,
			"pending_review_items": pending,
		},
	}
	if err := c.audit.Record(ctx, event); err != nil {
		log.Printf("[pipeline] import %s: failed to record audit event: %v", importID, err)
	}

	return &Outcome{Status: final, PendingReviewItems: pending}, nil
}

// checkGuard applies the stage-specific output guard, returning a diagnostic
// string when the stage's structurally successful result carries no usable
// output. Stages without a defined guard always pass.
func checkGuard(stage Stage, payload json.RawMessage) string {
	switch stage {
	case StageExtracting:
		var res ExtractResult
		_ = json.Unmarshal(payload, &res)
		if res.FilesFound == 0 {
			return "no files found: archive may be empty, encrypted, or corrupted"
		}
	case StageParsing:
		var res ParseResult
		_ = json.Unmarshal(payload, &res)
		if res.ConversationsCreated == 0 {
			return "no valid conversation structure found in extracted files"
		}
	}
	return ""
}
