// Package agent talks to the hosted AI agent platform that drafts and reviews
// document text. Every call is a single POST; there is no retry or streaming.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/SignDesk/internal/config"
)

// Role names one of the configured agents.
type Role string

const (
	RoleContentGenerator   Role = "contentGenerator"
	RoleToneAdjuster       Role = "toneAdjuster"
	RoleLegalClauses       Role = "legalClauseGenerator"
	RoleSectionRegenerator Role = "sectionRegenerator"
	RoleValidator          Role = "validator"
)

const noResponse = "No response received"

var (
	// ErrAgentNotConfigured is returned when a role has no agent id.
	ErrAgentNotConfigured = errors.New("agent not configured")
	ErrUnknownTone        = errors.New("unknown tone")
)

// CallError wraps a failed agent call with the role that was asked.
type CallError struct {
	Role   Role
	Status int
	Err    error
}

func (e *CallError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("failed to call %s: unexpected status %d", e.Role, e.Status)
	}
	return fmt.Sprintf("failed to call %s: %v", e.Role, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Client is the agent platform client. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	userID  string
	agents  map[Role]string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient builds a client from cfg. httpClient may be nil.
func NewClient(cfg config.AgentConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		userID:  cfg.UserID,
		agents: map[Role]string{
			RoleContentGenerator:   cfg.ContentGenerator,
			RoleToneAdjuster:       cfg.ToneAdjuster,
			RoleLegalClauses:       cfg.LegalClauses,
			RoleSectionRegenerator: cfg.SectionRegenerator,
			RoleValidator:          cfg.Validator,
		},
		client: httpClient,
		logger: logger.With(zap.String("component", "agent")),
	}
}

// Configured reports whether role has an agent id.
func (c *Client) Configured(role Role) bool {
	return c.agents[role] != ""
}

type chatRequest struct {
	UserID    string `json:"user_id"`
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
	Message  string `json:"message"`
}

// Call sends message to the agent behind role and returns its reply text.
func (c *Client) Call(ctx context.Context, role Role, message string) (string, error) {
	agentID := c.agents[role]
	if agentID == "" {
		return "", &CallError{Role: role, Err: ErrAgentNotConfigured}
	}
	body, err := json.Marshal(chatRequest{
		UserID:    c.userID,
		AgentID:   agentID,
		SessionID: agentID + "-signdesk",
		Message:   message,
	})
	if err != nil {
		return "", &CallError{Role: role, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", &CallError{Role: role, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", &CallError{Role: role, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &CallError{Role: role, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &CallError{Role: role, Status: resp.StatusCode, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &CallError{Role: role, Err: fmt.Errorf("decode response: %w", err)}
	}
	c.logger.Debug("agent call finished",
		zap.String("role", string(role)),
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_bytes", len(message)))

	switch {
	case out.Response != "":
		return out.Response, nil
	case out.Message != "":
		return out.Message, nil
	default:
		return noResponse, nil
	}
}
