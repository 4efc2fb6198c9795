package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/lumenqi/lumen-core/pkg/evolution"
	"github.com/lumenqi/lumen-core/pkg/llm"
	"github.com/lumenqi/lumen-core/pkg/memory"
	"github.com/lumenqi/lumen-core/pkg/metrics"
	"github.com/lumenqi/lumen-core/pkg/orchestrator"
	"github.com/lumenqi/lumen-core/pkg/storage"
)

// Companion is the Lumen core: it answers queries through the fallback
// chain, learns from every answer and evolves on a schedule.
//
// The companion is thread-safe. Learning, persistence and evolution cycles
// are serialized by one writer lock; model calls and stats reads run
// outside it.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	companion, _ := core.New(config)
//	defer companion.Close()
//	companion.Start()
//
//	resp := companion.Generate(ctx, "I love rainy days", core.Context{}, nil)
//	fmt.Println(resp.Content)
type Companion struct {
	config *Config

	// mu is the writer lock shared with the orchestrator and the engine.
	mu sync.Mutex

	memories  *memory.Store
	patterns  *memory.PatternStore
	traits    *evolution.TraitRegistry
	estimator *evolution.Estimator
	window    *evolution.Window

	orchestrator *orchestrator.Orchestrator
	scheduler    *evolution.Scheduler
	collector    *metrics.Collector

	repo      storage.Repository
	providers map[memory.Source]llm.Provider

	logger    *zap.Logger
	closed    atomic.Bool
	closeOnce sync.Once

	asyncMu sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// New creates a companion from cfg, loading any persisted state. Options
// override the providers, repository and instrumentation built from cfg.
func New(cfg *Config, opts ...Option) (*Companion, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		if logger, err = NewLogger(cfg.Log); err != nil {
			return nil, err
		}
	}
	logger = logger.With(zap.String("component", "companion"))
	now := o.now
	if now == nil {
		now = time.Now
	}

	hosted := o.hosted
	if !o.hostedSet {
		var err error
		if hosted, err = NewHostedProvider(cfg.HostedLLM); err != nil {
			return nil, err
		}
	}
	local := o.local
	if !o.localSet {
		var err error
		if local, err = NewLocalProvider(cfg.LocalLLM); err != nil {
			closeProvider(hosted)
			return nil, err
		}
	}

	repo := o.repo
	if repo == nil {
		var err error
		if repo, err = NewRepository(context.Background(), cfg.Storage, logger); err != nil {
			closeProvider(hosted)
			closeProvider(local)
			return nil, err
		}
	}

	c := &Companion{
		config: cfg,
		memories: memory.NewStore(memory.Config{
			DecayWindow: time.Duration(cfg.Memory.DecayWindow),
		}, logger),
		patterns:  memory.NewPatternStore(memory.DefaultPatternConfig(), logger),
		traits:    evolution.NewTraitRegistry(),
		estimator: evolution.NewEstimator(),
		window:    evolution.NewWindow(cfg.Evolution.WindowSize),
		collector: metrics.NewCollector(cfg.Metrics.Namespace, o.registry, logger),
		repo:      repo,
		providers: make(map[memory.Source]llm.Provider, 2),
		logger:    logger,
	}

	if hosted != nil {
		c.providers[memory.SourceHostedModel] = hosted
	}
	if local != nil {
		c.providers[memory.SourceLocalModel] = local
	}

	if err := c.build(cfg, o, hosted, local, now); err != nil {
		_ = c.release()
		return nil, err
	}
	if err := c.load(context.Background()); err != nil {
		_ = c.release()
		return nil, err
	}
	c.refreshGauges()

	logger.Info("companion ready",
		zap.String("storage", cfg.Storage.Provider),
		zap.Bool("hosted", hosted != nil),
		zap.Bool("local", local != nil),
		zap.Float64("autonomy_level", c.estimator.Level()),
		zap.Int("memories", c.memories.Len()),
	)
	return c, nil
}

func (c *Companion) build(cfg *Config, o *options, hosted, local llm.Provider, now func() time.Time) error {
	sources := []orchestrator.Source{
		orchestrator.NewSelfSource(c.patterns, c.estimator, o.rand),
	}
	if hosted != nil {
		src, err := orchestrator.NewHostedSource(hosted)
		if err != nil {
			return NewCoreError("New", err)
		}
		sources = append(sources, src)
	}
	if local != nil {
		src, err := orchestrator.NewLocalSource(local)
		if err != nil {
			return NewCoreError("New", err)
		}
		sources = append(sources, src)
	}

	node := o.node
	if node == nil {
		var err error
		if node, err = snowflake.NewNode(1); err != nil {
			return NewCoreError("New", err)
		}
	}

	orch, err := orchestrator.New(orchestrator.Config{
		HistoryLimit:  cfg.Orchestrator.HistoryLimit,
		SourceTimeout: time.Duration(cfg.Orchestrator.SourceTimeout),
	}, orchestrator.Deps{
		Sources:   sources,
		Memories:  c.memories,
		Patterns:  c.patterns,
		Estimator: c.estimator,
		Window:    c.window,
		Lock:      &c.mu,
		Persist:   c.persistLocked,
		Node:      node,
		Observer:  c.collector,
		Logger:    c.logger,
		Now:       now,
	})
	if err != nil {
		return NewCoreError("New", err)
	}
	c.orchestrator = orch

	engine, err := evolution.NewEngine(evolution.EngineConfig{
		Memories:  c.memories,
		Patterns:  c.patterns,
		Traits:    c.traits,
		Estimator: c.estimator,
		Window:    c.window,
		Lock:      &c.mu,
		Persist:   c.persistLocked,
		Observer:  c.collector,
		Logger:    c.logger,
		Now:       now,
	})
	if err != nil {
		return NewCoreError("New", err)
	}
	c.scheduler = evolution.NewScheduler(engine, durationOr(cfg.Evolution.Interval, evolution.DefaultInterval), c.logger)
	return nil
}

// load restores every document. Absent documents keep their defaults.
func (c *Companion) load(ctx context.Context) error {
	var mems []*memory.Memory
	if err := loadDocument(ctx, c.repo, storage.DocMemories, &mems); err != nil {
		return err
	}
	var pats []*memory.LearnedPattern
	if err := loadDocument(ctx, c.repo, storage.DocPatterns, &pats); err != nil {
		return err
	}
	var traits []*evolution.Trait
	if err := loadDocument(ctx, c.repo, storage.DocTraits, &traits); err != nil {
		return err
	}
	var state *evolution.AutonomyState
	if err := loadDocument(ctx, c.repo, storage.DocAutonomy, &state); err != nil {
		return err
	}

	if mems != nil {
		c.memories.Replace(mems)
	}
	if pats != nil {
		c.patterns.Replace(pats)
	}
	if traits != nil {
		c.traits.Replace(traits)
	}
	if state != nil {
		c.estimator.Replace(*state)
	}
	return nil
}

func loadDocument(ctx context.Context, repo storage.Repository, doc storage.Document, v any) error {
	err := storage.LoadJSON(ctx, repo, doc, v)
	if err == nil || errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return NewCoreError("Load", fmt.Errorf("%w: %v", ErrStorageOperation, err))
}

// persistLocked saves every document. The caller holds c.mu.
func (c *Companion) persistLocked(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	// A cancelled request must not lose the state it already changed.
	ctx = context.WithoutCancel(ctx)

	var errs []error
	save := func(doc storage.Document, v any) {
		if err := storage.SaveJSON(ctx, c.repo, doc, v); err != nil {
			errs = append(errs, err)
		}
	}
	save(storage.DocMemories, c.memories.Snapshot())
	save(storage.DocPatterns, c.patterns.Snapshot())
	save(storage.DocTraits, c.traits.Snapshot())
	save(storage.DocAutonomy, c.estimator.Snapshot())

	c.refreshGauges()
	if len(errs) > 0 {
		return NewCoreError("Persist", fmt.Errorf("%w: %w", ErrStorageOperation, errors.Join(errs...)))
	}
	return nil
}

func (c *Companion) refreshGauges() {
	c.collector.SetStoreSizes(c.memories.Len(), c.patterns.Len())
	c.collector.SetTraits(c.traits.Values())
	c.collector.SetAutonomy(c.estimator.Level(), c.estimator.Threshold())
}

// Generate answers query through the fallback chain and learns from the
// answer. It never fails: when every source fails the response carries an
// apology.
func (c *Companion) Generate(ctx context.Context, query string, qctx Context, history []Turn) Response {
	return c.orchestrator.Generate(ctx, query, qctx, history)
}

// Learn records an interaction answered outside Generate.
func (c *Companion) Learn(ctx context.Context, in Interaction) {
	c.orchestrator.Learn(ctx, in)
}

// GetStats returns a snapshot of the adaptive state. It does not wait for a
// running cycle.
func (c *Companion) GetStats() Stats {
	state := c.estimator.Snapshot()
	stats := Stats{
		AutonomyLevel:         state.Level,
		Threshold:             evolution.Threshold(state.Level),
		TraitValues:           c.traits.Values(),
		Capabilities:          state.Capabilities,
		MemoryCount:           c.memories.Len(),
		PatternCount:          c.patterns.Len(),
		PatternEffectiveness:  c.patterns.MeanEffectiveness(),
		SourceDistribution:    state.SourceDistribution,
		MemorySources:         c.memories.CountBySource(),
		FallbackChain:         state.FallbackChain,
		SelfModificationCount: state.SelfModificationCount,
		CycleState:            c.scheduler.State().String(),
		WindowSize:            c.window.Len(),
	}
	if n := len(state.History); n > 0 {
		stats.LastCycleAt = state.History[n-1].Timestamp
	}
	return stats
}

// ForceEvolutionCycle runs a cycle now. It returns ErrCycleInProgress
// without waiting when a cycle is already running.
func (c *Companion) ForceEvolutionCycle(ctx context.Context) (CycleReport, error) {
	if c.closed.Load() {
		return CycleReport{}, NewCoreError("ForceEvolutionCycle", ErrClosed)
	}
	report, err := c.scheduler.TryRun(ctx, evolution.TriggerForced)
	if err != nil {
		return report, NewCoreError("ForceEvolutionCycle", err)
	}
	return report, nil
}

// Start begins the periodic evolution cycles.
func (c *Companion) Start() {
	if c.closed.Load() {
		return
	}
	c.scheduler.Start()
}

// Health reports the status of every model source that supports health
// checks.
func (c *Companion) Health(ctx context.Context) map[Source]llm.HealthStatus {
	out := make(map[Source]llm.HealthStatus, len(c.providers))
	for name, p := range c.providers {
		hc, ok := p.(llm.HealthChecker)
		if !ok {
			continue
		}
		status, err := hc.HealthCheck(ctx)
		if err != nil {
			c.logger.Warn("health check failed", zap.String("source", string(name)), zap.Error(err))
		}
		out[name] = status
	}
	return out
}

// Collector exposes the metrics collector, e.g. to serve its Handler.
func (c *Companion) Collector() *metrics.Collector {
	return c.collector
}

// Close stops the scheduler, waits for pending async calls, saves every
// document one last time and releases the providers and the repository.
func (c *Companion) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.scheduler.Stop()
		c.drain()

		c.mu.Lock()
		if perr := c.persistLocked(context.Background()); perr != nil {
			c.logger.Error("final save failed", zap.Error(perr))
		}
		c.closed.Store(true)
		c.mu.Unlock()

		err = c.release()
		_ = c.logger.Sync()
	})
	return err
}

func (c *Companion) release() error {
	var errs []error
	for _, p := range c.providers {
		if p != nil {
			errs = append(errs, p.Close())
		}
	}
	if c.repo != nil {
		errs = append(errs, c.repo.Close())
	}
	return NewCoreError("Close", errors.Join(errs...))
}

func closeProvider(p llm.Provider) {
	if p != nil {
		_ = p.Close()
	}
}
