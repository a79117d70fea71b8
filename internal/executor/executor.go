// Package executor invokes the externally deployed stage workers over HTTP.
// Each pipeline stage maps to one endpoint under a shared base URL; the
// coordinator never knows how a stage does its work, only the envelope it
// reports back.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/archive-importer/internal/pipeline"
)

// DefaultTimeout bounds a single stage invocation. Stage workers that stream
// large archives can take minutes, so this is deliberately generous.
const DefaultTimeout = 5 * time.Minute

// maxEnvelopeBytes caps how much of a worker response is read. Stage results
// are small stat objects; anything larger is a misbehaving worker.
const maxEnvelopeBytes = 1 << 20

// Error represents a failed stage worker call.
type Error struct {
	Stage   pipeline.Stage
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the HTTP executor.
type Options struct {
	// BaseURL is the common prefix for stage endpoints; the stage name is
	// appended as the final path segment.
	BaseURL string
	// ServiceToken authenticates the coordinator itself to the workers. It is
	// the service identity, distinct from the caller identity forwarded in
	// the request body.
	ServiceToken string
	Timeout      time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// HTTPExecutor implements pipeline.Executor over plain request/response HTTP.
type HTTPExecutor struct {
	baseURL      string
	serviceToken string
	client       *http.Client
	schemas      *resultSchemas
}

// request is the wire format every stage worker accepts.
type request struct {
	ImportID string `json:"import_id"`
	CallerID string `json:"caller_id"`
}

// envelope is the common shape of worker responses. Result carries the
// stage-specific payload recorded in the import's stats.
type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Details string          `json:"details,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// New creates an HTTP executor. The base URL must be absolute.
func New(opts Options) (*HTTPExecutor, error) {
	parsed, err := url.Parse(opts.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid stage executor base URL %q", opts.BaseURL)
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	schemas, err := loadResultSchemas()
	if err != nil {
		return nil, fmt.Errorf("loading stage result schemas: %w", err)
	}

	return &HTTPExecutor{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		serviceToken: opts.ServiceToken,
		client:       client,
		schemas:      schemas,
	}, nil
}

// Execute posts the import and caller ids to the stage's endpoint and decodes
// the result envelope. Any non-success response surfaces as an error whose
// text becomes the recorded failure detail.
func (e *HTTPExecutor) Execute(ctx context.Context, stage pipeline.Stage, importID, callerID uuid.UUID) (*pipeline.StageResult, error) {
	body, err := json.Marshal(request{ImportID: importID.String(), CallerID: callerID.String()})
	if err != nil {
		return nil, &Error{Stage: stage, Message: "encoding request", Cause: err}
	}

	endpoint := e.baseURL + "/" + string(stage)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Stage: stage, Message: "building request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if e.serviceToken != "" {
		req.Header.Set("Authorization", "Bearer "+e.serviceToken)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &Error{Stage: stage, Message: "executor unreachable", Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeBytes))
	if err != nil {
		return nil, &Error{Stage: stage, Message: "reading executor response", Cause: err}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &Error{
			Stage:   stage,
			Message: fmt.Sprintf("executor returned status %d with undecodable body", resp.StatusCode),
			Cause:   err,
		}
	}

	if resp.StatusCode != http.StatusOK || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = fmt.Sprintf("executor returned status %d", resp.StatusCode)
		}
		if env.Details != "" {
			msg += ": " + env.Details
		}
		return nil, &Error{Stage: stage, Message: msg}
	}

	payload := env.Result
	if payload == nil {
		payload = json.RawMessage(`{}`)
	}
	if err := e.schemas.validate(stage, payload); err != nil {
		return nil, &Error{Stage: stage, Message: "malformed executor result", Cause: err}
	}

	return &pipeline.StageResult{Payload: payload}, nil
}

// Healthcheck verifies the worker endpoint prefix is reachable. Any HTTP
// response counts as reachable; only transport failures are reported.
func (e *HTTPExecutor) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL, nil)
	if err != nil {
		return fmt.Errorf("building healthcheck request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("stage executors unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}
