// Package types provides the request and response shapes of the import API.
package types

import (
	"github.com/go-playground/validator/v10"
)

// ProcessRequest asks the coordinator to run the pipeline for one import.
// The caller identity comes from the bearer token, never from the body.
type ProcessRequest struct {
	ImportID string `json:"import_id" validate:"required,uuid"`
}

// Validate validates the ProcessRequest using the validator.
func (r *ProcessRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// ProcessResponse reports a successful pipeline invocation. Status is one of
// "already committed", "committed", or "review_pending".
type ProcessResponse struct {
	Success            bool   `json:"success"`
	Status             string `json:"status"`
	PendingReviewItems *int   `json:"pending_review_items,omitempty"`
}

// ErrorResponse is the failure shape shared by all endpoints.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// CreateImportResponse returns the freshly created import.
type CreateImportResponse struct {
	ImportID string `json:"import_id"`
	Status   string `json:"status"`
}
