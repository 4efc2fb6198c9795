package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenqi/lumen-core/pkg/llm"
	"github.com/lumenqi/lumen-core/pkg/llm/deepseek"
	"github.com/lumenqi/lumen-core/pkg/llm/openai"
)

func newServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": content}}},
		})
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"id": "test-model", "object": "model"}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_GenerateWithMessages(t *testing.T) {
	srv := newServer(t, "Hooks let you use state.")
	client, err := openai.NewClient(&openai.Config{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)
	defer client.Close()

	text, err := client.GenerateWithMessages(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "You are Lumen."},
		{Role: llm.RoleUser, Content: "What are React hooks?"},
	}, llm.WithMaxTokens(50))
	require.NoError(t, err)
	assert.Equal(t, "Hooks let you use state.", text)
}

func TestClient_EmptyResponse(t *testing.T) {
	srv := newServer(t, "  ")
	client, err := openai.NewClient(&openai.Config{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestClient_HealthCheck(t *testing.T) {
	srv := newServer(t, "ok")
	client, err := openai.NewClient(&openai.Config{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	status, err := client.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Equal(t, []string{"test-model"}, status.Models)
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := openai.NewClient(&openai.Config{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)
	assert.Equal(t, openai.DefaultModel, client.Model())

	_, err = client.Generate(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai")
}

func TestDeepSeek(t *testing.T) {
	_, err := deepseek.NewClient(&deepseek.Config{})
	assert.Error(t, err)

	srv := newServer(t, "from deepseek")
	client, err := deepseek.NewClient(&deepseek.Config{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	text, err := client.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "from deepseek", text)
}
