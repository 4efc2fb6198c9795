// Package llm defines the contract between the companion and the language
// models it delegates to.
//
// A Provider turns a conversation into text. Hosted providers (OpenAI,
// DeepSeek, Anthropic) and local model servers (Ollama) implement it in the
// sub-packages. Providers that can report their availability also implement
// HealthChecker.
package llm

import (
	"context"
	"errors"
	"time"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when a model answers with no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Provider defines the interface for LLM providers.
type Provider interface {
	// Generate answers a single prompt.
	Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)

	// GenerateWithMessages answers a conversation. Messages are ordered
	// oldest first; a leading system message carries instructions.
	GenerateWithMessages(ctx context.Context, messages []Message, opts ...GenerateOption) (string, error)

	// Close releases resources held by the provider.
	Close() error
}

// HealthStatus is the availability reported by a provider.
type HealthStatus struct {
	// Healthy is true when the provider answered the probe.
	Healthy bool `json:"healthy"`

	// Status is a short human-readable state such as "ok" or "unreachable".
	Status string `json:"status"`

	// Models lists the models the provider reported, when it reports any.
	Models []string `json:"models,omitempty"`

	// Latency is how long the probe took.
	Latency time.Duration `json:"latency"`
}

// HealthChecker is implemented by providers that can probe their backend.
// Selecting a provider from the result is left to the caller.
type HealthChecker interface {
	HealthCheck(ctx context.Context) (HealthStatus, error)
}

// Message represents a single message in a conversation.
type Message struct {
	// Role is the message role: "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the message content text.
	Content string `json:"content"`
}

// GenerateOptions contains options for text generation.
type GenerateOptions struct {
	// Temperature controls randomness (0.0-2.0). Higher = more random.
	Temperature float64

	// MaxTokens limits the maximum number of tokens in the response.
	MaxTokens int

	// TopP controls nucleus sampling (0.0-1.0).
	TopP float64

	// Stop contains stop sequences that will end generation.
	Stop []string
}

// GenerateOption configures a single generation call.
type GenerateOption func(*GenerateOptions)

// WithTemperature sets the sampling temperature.
//
// Example:
//
//	text, _ := provider.Generate(ctx, "Hello", llm.WithTemperature(0.7))
func WithTemperature(temp float64) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.Temperature = temp
	}
}

// WithMaxTokens sets the maximum number of tokens in the response.
func WithMaxTokens(max int) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.MaxTokens = max
	}
}

// WithTopP sets the nucleus sampling parameter.
func WithTopP(topP float64) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.TopP = topP
	}
}

// WithStop sets stop sequences.
func WithStop(stop ...string) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.Stop = stop
	}
}

// ApplyGenerateOptions resolves options over the defaults
// Temperature=0.7, MaxTokens=1000, TopP=1.0.
func ApplyGenerateOptions(opts []GenerateOption) *GenerateOptions {
	options := &GenerateOptions{
		Temperature: 0.7,
		MaxTokens:   1000,
		TopP:        1.0,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// UserPrompt wraps a single prompt as a conversation.
func UserPrompt(prompt string) []Message {
	return []Message{{Role: RoleUser, Content: prompt}}
}
