package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Review item states. The coordinator only ever counts pending items; the
// review workflow itself mutates these rows.
const (
	ReviewStatePending  = "pending"
	ReviewStateApproved = "approved"
	ReviewStateRejected = "rejected"
)

// CountPending returns the number of review items still awaiting a decision
// for an import. The count, not the contents, decides whether the import
// terminates as committed or review_pending.
func (db *DB) CountPending(ctx context.Context, importID uuid.UUID) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM review_items WHERE import_id = $1 AND state = $2`,
		importID, ReviewStatePending,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending review items: %w", err)
	}
	return count, nil
}
