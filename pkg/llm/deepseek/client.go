// Package deepseek provides a DeepSeek chat client. DeepSeek serves an
// OpenAI-compatible API, so the client is the OpenAI client pointed at the
// DeepSeek endpoint.
package deepseek

import (
	"fmt"

	"github.com/lumenqi/lumen-core/pkg/llm/openai"
)

const (
	// DefaultBaseURL is the DeepSeek API endpoint.
	DefaultBaseURL = "https://api.deepseek.com"

	// DefaultModel is used when Config.Model is empty.
	DefaultModel = "deepseek-chat"
)

// Config is the configuration for DeepSeek.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewClient creates a DeepSeek client. The API key is required.
func NewClient(cfg *Config) (*openai.Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, fmt.Errorf("deepseek: API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return openai.NewClient(&openai.Config{
		APIKey:  cfg.APIKey,
		Model:   model,
		BaseURL: baseURL,
		Name:    "deepseek",
	})
}
