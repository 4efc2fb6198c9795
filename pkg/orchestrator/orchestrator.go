// Package orchestrator answers user queries by walking the fallback chain of
// sources and learns from every answer it gives.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/lumenqi/lumen-core/pkg/evolution"
	"github.com/lumenqi/lumen-core/pkg/intelligence"
	"github.com/lumenqi/lumen-core/pkg/memory"
)

// Apology is returned when every source failed.
const Apology = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."

// ErrAllSourcesFailed is logged when the chain is exhausted. It never
// reaches callers of Generate.
var ErrAllSourcesFailed = errors.New("all sources failed")

// Attempt outcomes reported to the Observer.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomeSkipped = "skipped"
)

// Context carries per-query hints from the caller.
type Context struct {
	// Emotion is the caller's reading of the user's mood. Empty means detect
	// it from the query.
	Emotion string `json:"emotion,omitempty"`
}

// Response is the result of Generate. Only Content is meant for the user.
type Response struct {
	Content    string        `json:"content"`
	Source     memory.Source `json:"source"`
	Confidence float64       `json:"confidence"`
	MemoryID   int64         `json:"memory_id"`
}

// Interaction is an answered query submitted for learning.
type Interaction struct {
	Query      string
	Response   string
	Source     memory.Source
	Confidence float64

	// Effectiveness defaults to Confidence when nil.
	Effectiveness *float64

	Emotion string
	Context string
}

// Effectiveness returns a pointer for Interaction.Effectiveness.
func Effectiveness(v float64) *float64 {
	return &v
}

// Observer receives per-source outcomes.
type Observer interface {
	ObserveAttempt(source memory.Source, outcome string, elapsed time.Duration)
	ObserveResponse(source memory.Source, confidence float64)
}

// Config tunes the orchestrator.
type Config struct {
	// HistoryLimit is how many recent turns are passed to model sources.
	// Default: 10
	HistoryLimit int

	// SourceTimeout bounds each source call. Default: 30s
	SourceTimeout time.Duration

	// ContextMemories is how many relevant memories are looked up per query.
	// Model sources take what they need from these. Default: 5
	ContextMemories int
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{HistoryLimit: 10, SourceTimeout: 30 * time.Second, ContextMemories: 5}
}

// Deps are the collaborators of the orchestrator. Memories, Patterns,
// Estimator and Window are required; sources may be registered for any
// subset of the chain.
type Deps struct {
	Sources   []Source
	Memories  *memory.Store
	Patterns  *memory.PatternStore
	Estimator *evolution.Estimator
	Window    *evolution.Window

	// Lock is the writer lock shared with the evolution cycle.
	Lock sync.Locker

	// Persist saves every document after learning. Errors are logged.
	Persist func(ctx context.Context) error

	// Node generates memory and pattern IDs. Defaults to node 1.
	Node *snowflake.Node

	Observer Observer
	Logger   *zap.Logger
	Now      func() time.Time
}

// Orchestrator answers queries through the fallback chain.
type Orchestrator struct {
	cfg        Config
	sources    map[memory.Source]Source
	memories   *memory.Store
	patterns   *memory.PatternStore
	estimator  *evolution.Estimator
	window     *evolution.Window
	lock       sync.Locker
	persist    func(ctx context.Context) error
	node       *snowflake.Node
	importance *intelligence.ImportanceEvaluator
	observer   Observer
	logger     *zap.Logger
	now        func() time.Time
}

// New creates an orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Memories == nil || deps.Patterns == nil || deps.Estimator == nil || deps.Window == nil {
		return nil, fmt.Errorf("orchestrator: stores must not be nil")
	}
	d := DefaultConfig()
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = d.HistoryLimit
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = d.SourceTimeout
	}
	if cfg.ContextMemories <= 0 {
		cfg.ContextMemories = d.ContextMemories
	}

	sources := make(map[memory.Source]Source, len(deps.Sources))
	for _, src := range deps.Sources {
		if src == nil {
			continue
		}
		sources[src.Name()] = src
	}

	node := deps.Node
	if node == nil {
		var err error
		if node, err = snowflake.NewNode(1); err != nil {
			return nil, fmt.Errorf("orchestrator: create id node: %w", err)
		}
	}
	lock := deps.Lock
	if lock == nil {
		lock = &sync.Mutex{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		cfg:        cfg,
		sources:    sources,
		memories:   deps.Memories,
		patterns:   deps.Patterns,
		estimator:  deps.Estimator,
		window:     deps.Window,
		lock:       lock,
		persist:    deps.Persist,
		node:       node,
		importance: intelligence.NewImportanceEvaluator(),
		observer:   deps.Observer,
		logger:     logger.With(zap.String("component", "orchestrator")),
		now:        now,
	}, nil
}

// Generate answers query with the first source in the fallback chain that
// succeeds, then learns from the answer before returning. When every source
// fails it returns Apology and records the failure as a memory with source
// "none". Generate never fails.
func (o *Orchestrator) Generate(ctx context.Context, query string, qctx Context, history []Turn) Response {
	emotion := intelligence.DetectEmotion(query, qctx.Emotion)
	if len(history) > o.cfg.HistoryLimit {
		history = history[len(history)-o.cfg.HistoryLimit:]
	}

	scored := o.memories.Relevant(query, o.cfg.ContextMemories, o.now())
	relevant := make([]*memory.Memory, len(scored))
	for i, s := range scored {
		relevant[i] = s.Memory
	}
	req := Request{Query: query, Emotion: emotion, History: history, Memories: relevant}

	for _, name := range o.estimator.Chain() {
		src, ok := o.sources[name]
		if !ok {
			continue
		}

		start := time.Now()
		answer, err := attempt(ctx, src, req, o.cfg.SourceTimeout)
		elapsed := time.Since(start)
		if err != nil {
			outcome := OutcomeError
			switch {
			case errors.Is(err, ErrSourceSkipped):
				outcome = OutcomeSkipped
				o.logger.Debug("source skipped", zap.String("source", string(name)))
			case errors.Is(err, context.DeadlineExceeded):
				outcome = OutcomeTimeout
				o.logger.Warn("source timed out", zap.String("source", string(name)), zap.Duration("elapsed", elapsed))
			default:
				o.logger.Warn("source failed", zap.String("source", string(name)), zap.Error(err))
			}
			o.observeAttempt(name, outcome, elapsed)
			continue
		}
		o.observeAttempt(name, OutcomeSuccess, elapsed)

		memoryID := o.learn(ctx, Interaction{
			Query:      query,
			Response:   answer.Text,
			Source:     name,
			Confidence: answer.Confidence,
			Emotion:    emotion,
		}, answer)
		if o.observer != nil {
			o.observer.ObserveResponse(name, answer.Confidence)
		}
		return Response{Content: answer.Text, Source: name, Confidence: answer.Confidence, MemoryID: memoryID}
	}

	o.logger.Error("no source could answer", zap.Error(ErrAllSourcesFailed), zap.Int("sources", len(o.sources)))
	memoryID := o.learn(ctx, Interaction{
		Query:         query,
		Response:      Apology,
		Source:        memory.SourceNone,
		Effectiveness: Effectiveness(0),
		Emotion:       emotion,
	}, Answer{})
	if o.observer != nil {
		o.observer.ObserveResponse(memory.SourceNone, 0)
	}
	return Response{Content: Apology, Source: memory.SourceNone, MemoryID: memoryID}
}

// Learn records an interaction: a new memory, an update to the pattern for
// its keywords, and an entry in the evolution window. Learn never fails;
// persistence errors are logged.
func (o *Orchestrator) Learn(ctx context.Context, in Interaction) {
	o.learn(ctx, in, Answer{})
}

func (o *Orchestrator) learn(ctx context.Context, in Interaction, used Answer) int64 {
	now := o.now()
	confidence := intelligence.Clamp01(in.Confidence)
	effectiveness := confidence
	if in.Effectiveness != nil {
		effectiveness = intelligence.Clamp01(*in.Effectiveness)
	}
	if in.Source == memory.SourceNone {
		confidence, effectiveness = 0, 0
	}
	emotion := intelligence.DetectEmotion(in.Query, in.Emotion)

	o.lock.Lock()
	defer o.lock.Unlock()

	m := &memory.Memory{
		ID:         o.node.Generate().Int64(),
		Kind:       memory.Kind(intelligence.ClassifyKind(in.Query)),
		Content:    in.Query,
		Response:   in.Response,
		Context:    in.Context,
		Importance: o.importance.EvaluateImportance(in.Query, in.Response),
		Confidence: confidence,
		Source:     in.Source,
		Emotion:    emotion,
		CreatedAt:  now,
	}
	if err := o.memories.Add(m); err != nil {
		o.logger.Warn("skipping memory", zap.Error(err))
		m.ID = 0
	}

	trigger := intelligence.PatternKey(in.Query)
	if in.Source != memory.SourceNone {
		response := in.Response
		if used.Basis != "" {
			response = used.Basis
		}
		o.patterns.Observe(memory.Observation{
			Trigger:       trigger,
			Response:      response,
			Source:        in.Source,
			Effectiveness: effectiveness,
			At:            now,
		}, func() int64 { return o.node.Generate().Int64() })
	}

	o.memories.Touch(used.MemoryIDs, now)
	// Observe already counted a use of the query's own pattern.
	if used.PatternTrigger != "" && (used.PatternTrigger != trigger || in.Source == memory.SourceNone) {
		o.patterns.MarkUsed(used.PatternTrigger, now)
	}

	o.window.Add(evolution.Interaction{
		Query:         in.Query,
		Response:      in.Response,
		Source:        in.Source,
		Confidence:    confidence,
		Effectiveness: effectiveness,
		Emotion:       emotion,
		Engagement:    intelligence.Engagement(in.Query),
		Timestamp:     now,
	})
	o.estimator.RecordSource(in.Source)

	if o.persist != nil {
		if err := o.persist(ctx); err != nil {
			o.logger.Error("failed to persist after learning", zap.Error(err))
		}
	}
	return m.ID
}

func (o *Orchestrator) observeAttempt(name memory.Source, outcome string, elapsed time.Duration) {
	if o.observer != nil {
		o.observer.ObserveAttempt(name, outcome, elapsed)
	}
}
