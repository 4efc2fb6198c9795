// Package ollama implements llm.Provider and llm.HealthChecker for an Ollama
// model server, the companion's local source.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lumenqi/lumen-core/pkg/llm"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.1:8b"
)

// Client is an Ollama chat client.
type Client struct {
	client  *http.Client
	apiKey  string
	model   string
	baseURL string
}

// Config is the configuration for Ollama.
// APIKey is only needed for authenticated remote deployments.
// HTTPClient defaults to a client with a 120 second timeout, since large
// local models can be slow to answer.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new Ollama client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	return &Client{
		client:  client,
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
	}, nil
}

type chatOptions struct {
	Temperature float64  `json:"temperature"`
	NumPredict  int      `json:"num_predict"`
	TopP        float64  `json:"top_p"`
	Stop        []string `json:"stop,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatResponse struct {
	Message llm.Message `json:"message"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Generate answers a single prompt.
func (c *Client) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return c.GenerateWithMessages(ctx, llm.UserPrompt(prompt), opts...)
}

// GenerateWithMessages answers a conversation through /api/chat with
// streaming disabled.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	options := llm.ApplyGenerateOptions(opts)

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options: chatOptions{
			Temperature: options.Temperature,
			NumPredict:  options.MaxTokens,
			TopP:        options.TopP,
			Stop:        options.Stop,
		},
	})
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	if strings.TrimSpace(decoded.Message.Content) == "" {
		return "", fmt.Errorf("ollama: %w", llm.ErrEmptyResponse)
	}
	return decoded.Message.Content, nil
}

// HealthCheck lists the models installed on the server. The status is
// "model missing" when the server is up but the configured model is not
// installed.
func (c *Client) HealthCheck(ctx context.Context) (llm.HealthStatus, error) {
	start := time.Now()
	resp, err := c.do(ctx, http.MethodGet, "/api/tags", nil)
	status := llm.HealthStatus{Latency: time.Since(start)}
	if err != nil {
		status.Status = "unreachable"
		return status, err
	}
	defer func() { _ = resp.Body.Close() }()

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		status.Status = "invalid response"
		return status, fmt.Errorf("ollama: decode tags: %w", err)
	}

	found := false
	for _, m := range tags.Models {
		status.Models = append(status.Models, m.Name)
		if m.Name == c.model {
			found = true
		}
	}
	status.Healthy = found
	status.Status = "ok"
	if !found {
		status.Status = "model missing"
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("ollama: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

// Close is a no-op.
func (c *Client) Close() error {
	return nil
}
