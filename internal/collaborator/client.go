// internal/collaborator/client.go

// Package collaborator is the HTTP client for the language-model service
// that enriches checklists and reads verification evidence. The client makes
// exactly one request per call; retry policy belongs to the process engine,
// not to this layer.
package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"visabuddy-engine/internal/common/config"
	apperrors "visabuddy-engine/internal/common/errors"
	"visabuddy-engine/internal/common/logger"
	"visabuddy-engine/internal/common/metrics"
)

type Client struct {
	baseURL          string
	apiKey           string
	model            string
	maxTokens        int
	temperature      float64
	maxResponseBytes int64
	httpClient       *http.Client
	logger           logger.Logger
}

func NewClient(cfg config.CollaboratorConfig, log logger.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxBytes := cfg.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}

	return &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:           cfg.APIKey,
		model:            cfg.Model,
		maxTokens:        cfg.MaxTokens,
		temperature:      cfg.Temperature,
		maxResponseBytes: maxBytes,
		httpClient:       &http.Client{Timeout: timeout},
		logger:           log.WithFields(map[string]interface{}{"component": "collaborator"}),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat completion request and returns the raw text of the
// first choice. The caller owns parsing; drafts come back exactly as the
// model produced them. Timeouts map to the collaborator timeout error so the
// process engine can apply its own retry policy.
func (c *Client) Complete(ctx context.Context, operation, systemPrompt, userPrompt string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.CollaboratorRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal collaborator request: %w", err)
	}

	endpoint, err := neturl.JoinPath(c.baseURL, "chat", "completions")
	if err != nil {
		return "", fmt.Errorf("build collaborator endpoint: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build collaborator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", apperrors.NewCollaboratorTimeoutError(operation)
		}
		return "", fmt.Errorf("collaborator request failed: %w", err)
	}
	defer resp.Body.Close()

	// The body is read through a hard cap so an oversized response cannot
	// exhaust worker memory.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes))
	if err != nil {
		if isTimeout(err) {
			return "", apperrors.NewCollaboratorTimeoutError(operation)
		}
		return "", fmt.Errorf("read collaborator response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("collaborator returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode collaborator response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("collaborator returned no choices")
	}

	content := out.Choices[0].Message.Content
	c.logger.Debug("collaborator call completed", map[string]interface{}{
		"operation":  operation,
		"durationMs": time.Since(start).Milliseconds(),
		"bytes":      len(content),
	})

	return content, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
