// Package openai implements llm.Provider on the OpenAI chat completions API
// and on any server that speaks it.
package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lumenqi/lumen-core/pkg/llm"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gpt-4o-mini"

// Client is an OpenAI chat client. It implements llm.Provider and
// llm.HealthChecker.
type Client struct {
	client *openai.Client
	model  string
	name   string
}

// Config is the configuration for an OpenAI-compatible client.
type Config struct {
	// APIKey is required by the hosted API.
	APIKey string

	// Model defaults to DefaultModel.
	Model string

	// BaseURL defaults to the official endpoint.
	BaseURL string

	// Name labels errors, so a compatible server can be told apart from
	// OpenAI itself. Defaults to "openai".
	Name string
}

// NewClient creates a new OpenAI client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("openai: config is nil")
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	name := cfg.Name
	if name == "" {
		name = "openai"
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
		name:   name,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Generate answers a single prompt.
func (c *Client) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return c.GenerateWithMessages(ctx, llm.UserPrompt(prompt), opts...)
}

// GenerateWithMessages answers a conversation through chat completions.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	options := llm.ApplyGenerateOptions(opts)

	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMessages,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
		TopP:        float32(options.TopP),
		Stop:        options.Stop,
	})
	if err != nil {
		return "", fmt.Errorf("%s: chat completion: %w", c.name, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%s: %w", c.name, llm.ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// HealthCheck lists the models visible to the API key.
func (c *Client) HealthCheck(ctx context.Context) (llm.HealthStatus, error) {
	start := time.Now()
	list, err := c.client.ListModels(ctx)
	status := llm.HealthStatus{Latency: time.Since(start)}
	if err != nil {
		status.Status = "unreachable"
		return status, fmt.Errorf("%s: list models: %w", c.name, err)
	}
	for _, m := range list.Models {
		status.Models = append(status.Models, m.ID)
	}
	status.Healthy = true
	status.Status = "ok"
	return status, nil
}

// Close is a no-op; the SDK client holds no resources.
func (c *Client) Close() error {
	return nil
}
