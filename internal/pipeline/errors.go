package pipeline

import (
	"errors"
	"fmt"
)

// Precondition errors, detected before any stage runs. No state is mutated on
// either path.
var (
	ErrNotFound  = errors.New("import not found")
	ErrForbidden = errors.New("caller does not own this import")
)

// StageError reports a stage executor failure or a guard failure. Both are
// recorded on the import record with the same "Stage <name> failed" text so a
// retry can tell which stage to re-enter.
type StageError struct {
	Stage  Stage
	Detail string
	Cause  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("Stage %s failed: %s", e.Stage, e.Detail)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}
