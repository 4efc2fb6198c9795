package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenqi/lumen-core/pkg/llm"
	"github.com/lumenqi/lumen-core/pkg/llm/ollama"
)

func newServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string        `json:"model"`
			Messages []llm.Message `json:"messages"`
			Stream   bool          `json:"stream"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "llama3", req.Model)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "llama3",
			"message": map[string]string{"role": "assistant", "content": reply},
			"done":    true,
		})
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3"},{"name":"mistral"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Generate(t *testing.T) {
	srv := newServer(t, "local answer")
	client, err := ollama.NewClient(&ollama.Config{Model: "llama3", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	text, err := client.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "local answer", text)

	empty := newServer(t, "")
	client, err = ollama.NewClient(&ollama.Config{Model: "llama3", BaseURL: empty.URL})
	require.NoError(t, err)
	_, err = client.Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestClient_HealthCheck(t *testing.T) {
	srv := newServer(t, "")

	client, err := ollama.NewClient(&ollama.Config{Model: "llama3", BaseURL: srv.URL})
	require.NoError(t, err)
	status, err := client.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, []string{"llama3", "mistral"}, status.Models)

	client, err = ollama.NewClient(&ollama.Config{Model: "phi3", BaseURL: srv.URL})
	require.NoError(t, err)
	status, err = client.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Healthy)
	assert.Equal(t, "model missing", status.Status)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := ollama.NewClient(&ollama.Config{BaseURL: url, HTTPClient: &http.Client{Timeout: time.Second}})
	require.NoError(t, err)

	status, err := client.HealthCheck(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
	assert.Equal(t, "unreachable", status.Status)

	_, err = client.Generate(context.Background(), "hi")
	assert.Error(t, err)
}
