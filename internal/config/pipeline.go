package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// PipelineConfig holds the stage executor wiring for the coordinator.
type PipelineConfig struct {
	// ExecutorBaseURL is the common prefix for the stage worker endpoints.
	ExecutorBaseURL string
	// ServiceToken is the coordinator's own credential for calling workers.
	// It is never derived from the request: the caller identity and the
	// service identity stay separate.
	ServiceToken string
	// StageTimeout bounds a single stage invocation.
	StageTimeout time.Duration
}

// NewPipelineConfig reads STAGE_EXECUTOR_URL (required), STAGE_SERVICE_TOKEN
// (required), and STAGE_TIMEOUT_SECONDS (default: 300).
func NewPipelineConfig() (*PipelineConfig, error) {
	baseURL := os.Getenv("STAGE_EXECUTOR_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("STAGE_EXECUTOR_URL is required but not set")
	}

	token := os.Getenv("STAGE_SERVICE_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("STAGE_SERVICE_TOKEN is required but not set")
	}

	timeoutSeconds := 300
	if raw := os.Getenv("STAGE_TIMEOUT_SECONDS"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid STAGE_TIMEOUT_SECONDS: %v", err)
		}
		timeoutSeconds = parsed
	}
	if timeoutSeconds < 1 {
		return nil, fmt.Errorf("STAGE_TIMEOUT_SECONDS must be at least 1, got: %d", timeoutSeconds)
	}

	return &PipelineConfig{
		ExecutorBaseURL: baseURL,
		ServiceToken:    token,
		StageTimeout:    time.Duration(timeoutSeconds) * time.Second,
	}, nil
}
