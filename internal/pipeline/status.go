package pipeline

// Import record status values that are not stage names.
const (
	// StatusUploaded is the pre-pipeline initial state assigned at creation.
	StatusUploaded = "uploaded"
	// StatusCommitted is the terminal state for a fully processed import with
	// no items awaiting manual review.
	StatusCommitted = "committed"
	// StatusReviewPending is the terminal state for a fully processed import
	// that still has review queue items pending.
	StatusReviewPending = "review_pending"
	// StatusFailed is the externally reported state for an import whose last
	// run stopped at a stage or guard failure. It is derived, never stored:
	// a failed import keeps the failing stage's name as its stored status so
	// a retry re-enters at exactly that stage, and the non-empty error field
	// marks the failure.
	StatusFailed = "failed"
)

// Phase is the explicit terminal/non-terminal discriminant for an import
// record, separating "status happens to equal a stage name" from "status is a
// terminal marker".
type Phase int

const (
	// PhaseInitial covers the pre-pipeline state and any status string that
	// matches no known stage; the pipeline starts from the first stage.
	PhaseInitial Phase = iota
	// PhaseInProgress means the stored status names the next stage to run.
	PhaseInProgress
	// PhaseFailed means a prior run recorded a stage failure; the stored
	// status still names the failing stage, which is where a retry resumes.
	PhaseFailed
	// PhaseCommitted and PhaseReviewPending are terminal.
	PhaseCommitted
	PhaseReviewPending
)

// ResolvePhase classifies an import record's stored status and error fields.
// When the phase is PhaseInProgress or PhaseFailed the returned stage is the
// one the pipeline resumes at.
func ResolvePhase(status string, errText *string) (Phase, Stage) {
	switch status {
	case StatusCommitted:
		return PhaseCommitted, ""
	case StatusReviewPending:
		return PhaseReviewPending, ""
	}
	if idx, ok := StageIndex(status); ok {
		if errText != nil && *errText != "" {
			return PhaseFailed, stageOrder[idx]
		}
		return PhaseInProgress, stageOrder[idx]
	}
	return PhaseInitial, ""
}

// StatusOf reports the externally visible status for a record, mapping a
// failed in-progress record to StatusFailed.
func StatusOf(status string, errText *string) string {
	phase, _ := ResolvePhase(status, errText)
	if phase == PhaseFailed {
		return StatusFailed
	}
	return status
}
