package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReviewStateConstants(t *testing.T) {
	states := []string{
		ReviewStatePending,
		ReviewStateApproved,
		ReviewStateRejected,
	}
	for _, state := range states {
		assert.NotEmpty(t, state, "review state constant should not be empty")
	}
	assert.Equal(t, "pending", ReviewStatePending)
}
