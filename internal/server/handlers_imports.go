package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/archive-importer/internal/db"
	"github.com/jonathan/archive-importer/internal/pipeline"
	"github.com/jonathan/archive-importer/internal/server/middleware"
	"github.com/jonathan/archive-importer/internal/types"
)

// importView is the single-import response shape. Status folds the stored
// stage name and error marker into the externally visible status.
type importView struct {
	ID        uuid.UUID      `json:"id"`
	Status    string         `json:"status"`
	Stats     pipeline.Stats `json:"stats"`
	Error     *string        `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// handleCreateImport registers a new import in the uploaded state. The actual
// archive upload happens out of band; this record is what the pipeline runs
// against.
func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	callerID, err := s.callerID(w, r)
	if err != nil {
		return
	}

	id, err := s.store.CreateImport(r.Context(), callerID)
	if err != nil {
		log.Printf("Error creating import: %v", err)
		s.apiError(w, http.StatusInternalServerError, "failed to create import", "")
		return
	}

	s.jsonResponse(w, http.StatusCreated, types.CreateImportResponse{
		ImportID: id.String(),
		Status:   pipeline.StatusUploaded,
	})
}

// handleListImports returns the caller's imports, most recent first.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	callerID, err := s.callerID(w, r)
	if err != nil {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.apiError(w, http.StatusBadRequest, "invalid limit parameter", "")
			return
		}
		limit = parsed
	}

	imports, err := s.store.ListImports(r.Context(), callerID, limit)
	if err != nil {
		log.Printf("Error listing imports: %v", err)
		s.apiError(w, http.StatusInternalServerError, "failed to list imports", "")
		return
	}
	if imports == nil {
		imports = []db.ImportSummary{}
	}
	s.jsonResponse(w, http.StatusOK, imports)
}

// handleGetImport returns one import with its accumulated stage stats.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	callerID, err := s.callerID(w, r)
	if err != nil {
		return
	}
	rec, ok := s.loadOwnedImport(w, r, callerID)
	if !ok {
		return
	}

	s.jsonResponse(w, http.StatusOK, importView{
		ID:        rec.ID,
		Status:    pipeline.StatusOf(rec.Status, rec.Error),
		Stats:     rec.Stats,
		Error:     rec.Error,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	})
}

// handleImportAudit returns the audit trail for one import.
func (s *Server) handleImportAudit(w http.ResponseWriter, r *http.Request) {
	callerID, err := s.callerID(w, r)
	if err != nil {
		return
	}
	rec, ok := s.loadOwnedImport(w, r, callerID)
	if !ok {
		return
	}

	events, err := s.store.ListAuditEvents(r.Context(), rec.ID)
	if err != nil {
		log.Printf("Error listing audit events for import %s: %v", rec.ID, err)
		s.apiError(w, http.StatusInternalServerError, "failed to list audit events", "")
		return
	}
	if events == nil {
		events = []db.AuditEntry{}
	}
	s.jsonResponse(w, http.StatusOK, events)
}

// handleProcess runs the pipeline for the import named in the request body.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req types.ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.apiError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if err := req.Validate(); err != nil {
		s.apiError(w, http.StatusBadRequest, "import_id is required and must be a UUID", "")
		return
	}

	importID, err := uuid.Parse(req.ImportID)
	if err != nil {
		s.apiError(w, http.StatusBadRequest, "import_id is required and must be a UUID", "")
		return
	}
	s.runPipeline(w, r, importID)
}

// handleProcessByPath runs the pipeline for the import named in the URL.
func (s *Server) handleProcessByPath(w http.ResponseWriter, r *http.Request) {
	importID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.apiError(w, http.StatusBadRequest, "invalid import ID", "")
		return
	}
	s.runPipeline(w, r, importID)
}

// runPipeline invokes the coordinator and maps its outcome to the API shapes.
func (s *Server) runPipeline(w http.ResponseWriter, r *http.Request, importID uuid.UUID) {
	callerID, err := s.callerID(w, r)
	if err != nil {
		return
	}

	outcome, err := s.runner.Run(r.Context(), importID, callerID)
	if err != nil {
		var stageErr *pipeline.StageError
		switch {
		case errors.Is(err, pipeline.ErrNotFound):
			s.apiError(w, http.StatusNotFound, "import not found", "")
		case errors.Is(err, pipeline.ErrForbidden):
			s.apiError(w, http.StatusForbidden, "caller does not own this import", "")
		case errors.As(err, &stageErr):
			// The failure is already durable on the import record; the response
			// just mirrors it.
			s.apiError(w, http.StatusUnprocessableEntity, stageErr.Error(), "")
		default:
			log.Printf("Error running pipeline for import %s: %v", importID, err)
			s.apiError(w, http.StatusInternalServerError, "pipeline run failed", "")
		}
		return
	}

	resp := types.ProcessResponse{Success: true, Status: outcome.Status}
	if outcome.Status != pipeline.OutcomeAlreadyCommitted {
		pending := outcome.PendingReviewItems
		resp.PendingReviewItems = &pending
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// loadOwnedImport fetches the import from the path's {id} and enforces
// ownership, writing the error response itself on failure.
func (s *Server) loadOwnedImport(w http.ResponseWriter, r *http.Request, callerID uuid.UUID) (*pipeline.ImportRecord, bool) {
	importID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.apiError(w, http.StatusBadRequest, "invalid import ID", "")
		return nil, false
	}

	rec, err := s.store.GetImport(r.Context(), importID)
	if err != nil {
		log.Printf("Error loading import %s: %v", importID, err)
		s.apiError(w, http.StatusInternalServerError, "failed to load import", "")
		return nil, false
	}
	if rec == nil {
		s.apiError(w, http.StatusNotFound, "import not found", "")
		return nil, false
	}
	if rec.OwnerID != callerID {
		s.apiError(w, http.StatusForbidden, "caller does not own this import", "")
		return nil, false
	}
	return rec, true
}

// callerID resolves the authenticated caller, writing a 401 when the
// middleware did not run.
func (s *Server) callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
	callerID, err := middleware.GetCallerID(r)
	if err != nil {
		s.apiError(w, http.StatusUnauthorized, "authentication required", "")
		return uuid.Nil, err
	}
	return callerID, nil
}

// apiError writes the shared failure shape.
func (s *Server) apiError(w http.ResponseWriter, status int, message, details string) {
	s.jsonResponse(w, status, types.ErrorResponse{Success: false, Error: message, Details: details})
}
