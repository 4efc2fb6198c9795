package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lumenqi/lumen-core/pkg/llm"
	"github.com/lumenqi/lumen-core/pkg/memory"
)

// ErrSourceSkipped is returned by a source that declines to answer without
// having failed, such as the self source below its threshold.
var ErrSourceSkipped = errors.New("source skipped")

// Turn is one earlier message of the conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is what a source receives.
type Request struct {
	Query    string
	Emotion  string
	History  []Turn
	Memories []*memory.Memory
}

// Answer is a source's reply.
type Answer struct {
	Text       string
	Confidence float64

	// MemoryIDs lists the memories the answer relied on.
	MemoryIDs []int64

	// PatternTrigger names the learned pattern the answer came from, if any.
	PatternTrigger string

	// Basis is the stored text a self answer was built from. Patterns learn
	// from it instead of the prefixed answer.
	Basis string
}

// Source answers queries. Implementations must honor ctx cancellation.
type Source interface {
	Name() memory.Source
	Answer(ctx context.Context, req Request) (Answer, error)
}

// Default confidences reported by the model sources.
const (
	HostedConfidence = 0.9
	LocalConfidence  = 0.5
)

// ModelSource delegates to a language model.
type ModelSource struct {
	name        memory.Source
	provider    llm.Provider
	confidence  float64
	maxMemories int
	persona     string
}

// ModelSourceConfig configures a ModelSource.
type ModelSourceConfig struct {
	// Name is memory.SourceHostedModel or memory.SourceLocalModel.
	Name       memory.Source
	Provider   llm.Provider
	Confidence float64

	// MaxMemories caps how many relevant memories go into the prompt.
	MaxMemories int

	// Persona replaces DefaultPersona as the system prompt opening.
	Persona string
}

// DefaultPersona opens the system prompt of every model call.
const DefaultPersona = "You are Lumen, a warm and curious companion. Answer conversationally and keep replies concise."

// NewModelSource wraps a provider as a source.
func NewModelSource(cfg ModelSourceConfig) (*ModelSource, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("model source %q: provider is nil", cfg.Name)
	}
	if cfg.Name != memory.SourceHostedModel && cfg.Name != memory.SourceLocalModel {
		return nil, fmt.Errorf("model source %q: unsupported name", cfg.Name)
	}
	persona := cfg.Persona
	if persona == "" {
		persona = DefaultPersona
	}
	return &ModelSource{
		name:        cfg.Name,
		provider:    cfg.Provider,
		confidence:  cfg.Confidence,
		maxMemories: cfg.MaxMemories,
		persona:     persona,
	}, nil
}

// NewHostedSource wraps a hosted provider with confidence 0.9 and up to five
// context memories.
func NewHostedSource(provider llm.Provider) (*ModelSource, error) {
	return NewModelSource(ModelSourceConfig{
		Name: memory.SourceHostedModel, Provider: provider,
		Confidence: HostedConfidence, MaxMemories: 5,
	})
}

// NewLocalSource wraps a local provider with confidence 0.5 and up to three
// context memories.
func NewLocalSource(provider llm.Provider) (*ModelSource, error) {
	return NewModelSource(ModelSourceConfig{
		Name: memory.SourceLocalModel, Provider: provider,
		Confidence: LocalConfidence, MaxMemories: 3,
	})
}

// Name returns the source name.
func (s *ModelSource) Name() memory.Source {
	return s.name
}

// Answer asks the model. Empty replies are errors.
func (s *ModelSource) Answer(ctx context.Context, req Request) (Answer, error) {
	memories := req.Memories
	if len(memories) > s.maxMemories {
		memories = memories[:s.maxMemories]
	}

	text, err := s.provider.GenerateWithMessages(ctx, s.buildMessages(req, memories))
	if err != nil {
		return Answer{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Answer{}, llm.ErrEmptyResponse
	}

	ids := make([]int64, len(memories))
	for i, m := range memories {
		ids[i] = m.ID
	}
	return Answer{Text: text, Confidence: s.confidence, MemoryIDs: ids}, nil
}

func (s *ModelSource) buildMessages(req Request, memories []*memory.Memory) []llm.Message {
	var system strings.Builder
	system.WriteString(s.persona)
	if req.Emotion != "" {
		fmt.Fprintf(&system, "\n\nThe user seems %s right now; respond with that in mind.", req.Emotion)
	}
	if len(memories) > 0 {
		system.WriteString("\n\nThings you remember about the user:")
		for _, m := range memories {
			fmt.Fprintf(&system, "\n- %s", m.Content)
		}
	}

	messages := make([]llm.Message, 0, len(req.History)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system.String()})
	for _, turn := range req.History {
		role := turn.Role
		if role != llm.RoleAssistant {
			role = llm.RoleUser
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: req.Query})
}

// attempt runs one source bounded by timeout.
func attempt(ctx context.Context, src Source, req Request, timeout time.Duration) (Answer, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		answer Answer
		err    error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("source %s panicked: %v", src.Name(), r)}
			}
		}()
		a, err := src.Answer(ctx, req)
		done <- result{answer: a, err: err}
	}()

	select {
	case r := <-done:
		return r.answer, r.err
	case <-ctx.Done():
		return Answer{}, ctx.Err()
	}
}
