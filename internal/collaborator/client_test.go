// internal/collaborator/client_test.go
package collaborator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"visabuddy-engine/internal/common/config"
	apperrors "visabuddy-engine/internal/common/errors"
	"visabuddy-engine/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string, timeoutMs int) *Client {
	return NewClient(config.CollaboratorConfig{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Model:       "test-model",
		Timeout:     timeoutMs,
		MaxTokens:   256,
		Temperature: 0.2,
	}, logger.NewNoOpLogger())
}

func completionResponse(content string) string {
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestCompleteReturnsFirstChoice(t *testing.T) {
	var gotAuth, gotPath string
	var gotReq chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionResponse(`{"checklist": []}`)))
	}))
	defer server.Close()

	c := newTestClient(server.URL, 5000)
	content, err := c.Complete(context.Background(), "enrich", "system prompt", "user prompt")
	require.NoError(t, err)

	assert.Equal(t, `{"checklist": []}`, content)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "test-model", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "user prompt", gotReq.Messages[1].Content)
}

func TestCompleteTimeoutMapsToCollaboratorTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(completionResponse("too late")))
	}))
	defer server.Close()

	c := newTestClient(server.URL, 5000)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, "enrich", "sys", "user")
	require.Error(t, err)

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeCollaboratorTimeout, stdErr.Code)
}

func TestCompleteSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := newTestClient(server.URL, 5000)
	_, err := c.Complete(context.Background(), "enrich", "sys", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, 5000)
	_, err := c.Complete(context.Background(), "enrich", "sys", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestCompleteCapsResponseSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionResponse("a perfectly valid but very long response body")))
	}))
	defer server.Close()

	cfg := config.CollaboratorConfig{
		BaseURL:          server.URL,
		Timeout:          5000,
		MaxResponseBytes: 16,
	}
	c := NewClient(cfg, logger.NewNoOpLogger())

	// The truncated body is no longer valid JSON, which must surface as a
	// decode error instead of unbounded buffering.
	_, err := c.Complete(context.Background(), "enrich", "sys", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode collaborator response")
}
