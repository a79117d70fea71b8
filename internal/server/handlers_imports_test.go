package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/archive-importer/internal/config"
	"github.com/jonathan/archive-importer/internal/db"
	"github.com/jonathan/archive-importer/internal/pipeline"
	"github.com/jonathan/archive-importer/internal/server/ratelimit"
	"github.com/jonathan/archive-importer/internal/types"
)

type fakeStore struct {
	records  map[uuid.UUID]*pipeline.ImportRecord
	audit    map[uuid.UUID][]db.AuditEntry
	created  []uuid.UUID
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[uuid.UUID]*pipeline.ImportRecord),
		audit:   make(map[uuid.UUID][]db.AuditEntry),
	}
}

func (f *fakeStore) CreateImport(_ context.Context, ownerID uuid.UUID) (uuid.UUID, error) {
	if f.failWith != nil {
		return uuid.Nil, f.failWith
	}
	id := uuid.New()
	now := time.Now()
	f.records[id] = &pipeline.ImportRecord{
		ID:        id,
		OwnerID:   ownerID,
		Status:    pipeline.StatusUploaded,
		Stats:     pipeline.Stats{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.created = append(f.created, id)
	return id, nil
}

func (f *fakeStore) GetImport(_ context.Context, id uuid.UUID) (*pipeline.ImportRecord, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.records[id], nil
}

func (f *fakeStore) ListImports(_ context.Context, ownerID uuid.UUID, _ int) ([]db.ImportSummary, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []db.ImportSummary
	for _, rec := range f.records {
		if rec.OwnerID != ownerID {
			continue
		}
		out = append(out, db.ImportSummary{
			ID:     rec.ID,
			Status: pipeline.StatusOf(rec.Status, rec.Error),
		})
	}
	return out, nil
}

func (f *fakeStore) ListAuditEvents(_ context.Context, importID uuid.UUID) ([]db.AuditEntry, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.audit[importID], nil
}

type fakeRunner struct {
	outcome *pipeline.Outcome
	err     error
	calls   []uuid.UUID
	callers []uuid.UUID
}

func (f *fakeRunner) Run(_ context.Context, importID, callerID uuid.UUID) (*pipeline.Outcome, error) {
	f.calls = append(f.calls, importID)
	f.callers = append(f.callers, callerID)
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

type fakeProbe struct{ err error }

func (f *fakeProbe) Ping(context.Context) error        { return f.err }
func (f *fakeProbe) Healthcheck(context.Context) error { return f.err }

type testServer struct {
	*Server
	store  *fakeStore
	runner *fakeRunner
	token  string
	caller uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	jwtService := NewJWTService(&config.JWTConfig{
		Secret:          "test-secret-key-for-jwt-signing-minimum-32-bytes",
		ExpirationHours: 1,
	})
	store := newFakeStore()
	runner := &fakeRunner{outcome: &pipeline.Outcome{Status: pipeline.OutcomeCommitted}}

	s := &Server{
		store:       store,
		runner:      runner,
		pinger:      &fakeProbe{},
		prober:      &fakeProbe{},
		rateLimiter: ratelimit.NewLimiter(&ratelimit.Config{Enabled: false}),
		jwtService:  jwtService,
	}

	caller := uuid.New()
	token, err := jwtService.GenerateToken(caller)
	require.NoError(t, err)

	return &testServer{Server: s, store: store, runner: runner, token: token, caller: caller}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+ts.token)
	w := httptest.NewRecorder()
	ts.routes().ServeHTTP(w, req)
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func TestCreateImport(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/v1/imports", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeJSON[types.CreateImportResponse](t, w)
	assert.Equal(t, pipeline.StatusUploaded, resp.Status)

	id, err := uuid.Parse(resp.ImportID)
	require.NoError(t, err)
	assert.Equal(t, ts.caller, ts.store.records[id].OwnerID)
}

func TestCreateImportRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/imports", nil)
	w := httptest.NewRecorder()
	ts.routes().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetImport(t *testing.T) {
	ts := newTestServer(t)
	id, err := ts.store.CreateImport(context.Background(), ts.caller)
	require.NoError(t, err)

	w := ts.do(t, http.MethodGet, "/v1/imports/"+id.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	view := decodeJSON[importView](t, w)
	assert.Equal(t, id, view.ID)
	assert.Equal(t, pipeline.StatusUploaded, view.Status)
}

func TestGetImportDerivesFailedStatus(t *testing.T) {
	ts := newTestServer(t)
	id, err := ts.store.CreateImport(context.Background(), ts.caller)
	require.NoError(t, err)

	errText := "Stage parsing failed: no valid conversation structure found in extracted files"
	rec := ts.store.records[id]
	rec.Status = string(pipeline.StageParsing)
	rec.Error = &errText

	w := ts.do(t, http.MethodGet, "/v1/imports/"+id.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	view := decodeJSON[importView](t, w)
	assert.Equal(t, pipeline.StatusFailed, view.Status)
	require.NotNil(t, view.Error)
	assert.Equal(t, errText, *view.Error)
}

func TestGetImportNotFound(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/v1/imports/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetImportForbiddenForNonOwner(t *testing.T) {
	ts := newTestServer(t)
	id, err := ts.store.CreateImport(context.Background(), uuid.New())
	require.NoError(t, err)

	w := ts.do(t, http.MethodGet, "/v1/imports/"+id.String(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListImportsOnlyOwn(t *testing.T) {
	ts := newTestServer(t)
	mine, err := ts.store.CreateImport(context.Background(), ts.caller)
	require.NoError(t, err)
	_, err = ts.store.CreateImport(context.Background(), uuid.New())
	require.NoError(t, err)

	w := ts.do(t, http.MethodGet, "/v1/imports", nil)
	require.Equal(t, http.StatusOK, w.Code)

	imports := decodeJSON[[]db.ImportSummary](t, w)
	require.Len(t, imports, 1)
	assert.Equal(t, mine, imports[0].ID)
}

func TestListImportsInvalidLimit(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/v1/imports?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessByBody(t *testing.T) {
	ts := newTestServer(t)
	importID := uuid.New()
	pending := 0
	ts.runner.outcome = &pipeline.Outcome{Status: pipeline.OutcomeCommitted, PendingReviewItems: pending}

	w := ts.do(t, http.MethodPost, "/v1/imports/process", types.ProcessRequest{ImportID: importID.String()})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeJSON[types.ProcessResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, pipeline.OutcomeCommitted, resp.Status)
	require.NotNil(t, resp.PendingReviewItems)
	assert.Equal(t, 0, *resp.PendingReviewItems)

	require.Len(t, ts.runner.calls, 1)
	assert.Equal(t, importID, ts.runner.calls[0])
	assert.Equal(t, ts.caller, ts.runner.callers[0])
}

func TestProcessByPath(t *testing.T) {
	ts := newTestServer(t)
	importID := uuid.New()
	ts.runner.outcome = &pipeline.Outcome{Status: pipeline.OutcomeReviewPending, PendingReviewItems: 4}

	w := ts.do(t, http.MethodPost, "/v1/imports/"+importID.String()+"/process", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeJSON[types.ProcessResponse](t, w)
	assert.Equal(t, pipeline.OutcomeReviewPending, resp.Status)
	require.NotNil(t, resp.PendingReviewItems)
	assert.Equal(t, 4, *resp.PendingReviewItems)
	require.Len(t, ts.runner.calls, 1)
	assert.Equal(t, importID, ts.runner.calls[0])
}

func TestProcessAlreadyCommittedOmitsPendingCount(t *testing.T) {
	ts := newTestServer(t)
	ts.runner.outcome = &pipeline.Outcome{Status: pipeline.OutcomeAlreadyCommitted}

	w := ts.do(t, http.MethodPost, "/v1/imports/"+uuid.NewString()+"/process", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&raw))
	assert.Equal(t, "already committed", raw["status"])
	assert.NotContains(t, raw, "pending_review_items")
}

func TestProcessValidation(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		name string
		body any
	}{
		{"missing import_id", types.ProcessRequest{}},
		{"malformed import_id", types.ProcessRequest{ImportID: "not-a-uuid"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/v1/imports/process", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, ts.runner.calls)
		})
	}
}

func TestProcessErrorMapping(t *testing.T) {
	importID := uuid.New()

	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "unknown import",
			err:        fmt.Errorf("import %s: %w", importID, pipeline.ErrNotFound),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "foreign import",
			err:        fmt.Errorf("import %s: %w", importID, pipeline.ErrForbidden),
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "stage failure",
			err:        &pipeline.StageError{Stage: pipeline.StageExtracting, Detail: "no files found: archive may be empty, encrypted, or corrupted"},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "infrastructure failure",
			err:        errors.New("checkpointing import: connection refused"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.runner.err = tc.err

			w := ts.do(t, http.MethodPost, "/v1/imports/"+importID.String()+"/process", nil)
			assert.Equal(t, tc.wantStatus, w.Code)

			resp := decodeJSON[types.ErrorResponse](t, w)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestProcessStageErrorBody(t *testing.T) {
	ts := newTestServer(t)
	ts.runner.err = &pipeline.StageError{
		Stage:  pipeline.StageParsing,
		Detail: "no valid conversation structure found in extracted files",
	}

	w := ts.do(t, http.MethodPost, "/v1/imports/"+uuid.NewString()+"/process", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := decodeJSON[types.ErrorResponse](t, w)
	assert.Equal(t, "Stage parsing failed: no valid conversation structure found in extracted files", resp.Error)
}

func TestImportAudit(t *testing.T) {
	ts := newTestServer(t)
	id, err := ts.store.CreateImport(context.Background(), ts.caller)
	require.NoError(t, err)
	ts.store.audit[id] = []db.AuditEntry{
		{ID: uuid.New(), ImportID: id, Action: "pipeline_completed", ObjectType: "import"},
	}

	w := ts.do(t, http.MethodGet, "/v1/imports/"+id.String()+"/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)

	events := decodeJSON[[]db.AuditEntry](t, w)
	require.Len(t, events, 1)
	assert.Equal(t, "pipeline_completed", events[0].Action)
}

func TestImportAuditEmpty(t *testing.T) {
	ts := newTestServer(t)
	id, err := ts.store.CreateImport(context.Background(), ts.caller)
	require.NoError(t, err)

	w := ts.do(t, http.MethodGet, "/v1/imports/"+id.String()+"/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]\n", w.Body.String())
}
