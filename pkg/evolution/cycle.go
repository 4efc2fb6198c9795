package evolution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumenqi/lumen-core/pkg/intelligence"
	"github.com/lumenqi/lumen-core/pkg/memory"
)

// Trigger names recorded in the evolution history.
const (
	TriggerScheduled = "scheduled"
	TriggerForced    = "forced"
)

// CycleReport describes what one evolution cycle changed.
type CycleReport struct {
	Trigger               string                     `json:"trigger"`
	StartedAt             time.Time                  `json:"started_at"`
	Duration              time.Duration              `json:"duration"`
	Window                WindowStats                `json:"window"`
	LevelBefore           float64                    `json:"level_before"`
	LevelAfter            float64                    `json:"level_after"`
	Threshold             float64                    `json:"threshold"`
	Capabilities          map[string]float64         `json:"capabilities"`
	FallbackChain         []memory.Source            `json:"fallback_chain"`
	TraitChanges          []TraitChange              `json:"trait_changes"`
	Consolidation         memory.ConsolidationResult `json:"consolidation"`
	Decay                 memory.DecayResult         `json:"decay"`
	PatternEffectiveness  float64                    `json:"pattern_effectiveness"`
	SelfModificationCount int                        `json:"self_modification_count"`
}

// CycleObserver is notified after every cycle, successful or not.
type CycleObserver interface {
	ObserveCycle(report CycleReport, err error)
}

// EngineConfig wires the engine to the stores it evolves.
type EngineConfig struct {
	Memories  *memory.Store
	Patterns  *memory.PatternStore
	Traits    *TraitRegistry
	Estimator *Estimator
	Window    *Window

	// Lock is the writer lock shared with learning and persistence. The
	// engine holds it for the whole cycle. Defaults to a private mutex.
	Lock sync.Locker

	// Persist saves every document. Its error is logged and swallowed.
	Persist func(ctx context.Context) error

	Observer CycleObserver
	Logger   *zap.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine runs evolution cycles.
type Engine struct {
	cfg    EngineConfig
	logger *zap.Logger
}

// NewEngine creates an engine. Memories, Patterns, Traits, Estimator and
// Window are required.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Memories == nil || cfg.Patterns == nil || cfg.Traits == nil || cfg.Estimator == nil || cfg.Window == nil {
		return nil, fmt.Errorf("evolution engine: stores must not be nil")
	}
	if cfg.Lock == nil {
		cfg.Lock = &sync.Mutex{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, logger: logger.With(zap.String("component", "evolution"))}, nil
}

// Run executes one cycle under the writer lock:
//
//  1. summarize the interaction window
//  2. raise capabilities after a good window
//  3. raise the autonomy level when self answers went well
//  4. re-derive the fallback chain from the level
//  5. apply trait triggers, capped per trait
//  6. consolidate and decay memories, decay and clean patterns
//  7. record history and persist
//
// Trait triggers apply only to interactions added since the previous
// cycle. The cycle is not cancellable: once started it runs to completion,
// and ctx only carries values to Persist. A panic aborts the cycle; steps
// already applied stay applied.
func (e *Engine) Run(ctx context.Context, trigger string) (report CycleReport, err error) {
	ctx = context.WithoutCancel(ctx)
	e.cfg.Lock.Lock()
	defer e.cfg.Lock.Unlock()

	start := e.cfg.Now()
	report = CycleReport{Trigger: trigger, StartedAt: start}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evolution cycle panicked: %v", r)
		}
		report.Duration = e.cfg.Now().Sub(start)
		if err != nil {
			e.logger.Error("evolution cycle aborted", zap.String("trigger", trigger), zap.Error(err))
		} else {
			e.logger.Info("evolution cycle completed",
				zap.String("trigger", trigger),
				zap.Int("interactions", report.Window.Total),
				zap.Float64("level", report.LevelAfter),
				zap.Int("merged", report.Consolidation.Merged),
				zap.Int("self_modifications", report.SelfModificationCount))
		}
		if e.cfg.Observer != nil {
			e.cfg.Observer.ObserveCycle(report, err)
		}
	}()

	items, fresh := e.cfg.Window.Read()
	report.Window = Summarize(items)
	report.Window.New = fresh

	report.Capabilities = e.cfg.Estimator.updateCapabilities(report.Window, creativeSuccess(items))
	report.LevelBefore, report.LevelAfter = e.cfg.Estimator.updateLevel(report.Window)
	report.FallbackChain = e.cfg.Estimator.rederiveChain()
	report.Threshold = Threshold(report.LevelAfter)

	var deltas []TraitDelta
	for _, in := range items[len(items)-fresh:] {
		deltas = append(deltas, TraitDeltas(in)...)
	}
	report.TraitChanges = e.cfg.Traits.Apply(deltas, start)

	report.Consolidation = e.cfg.Memories.Consolidate()
	report.Decay.MemoriesRemoved = e.cfg.Memories.Decay(start)
	report.Decay.PatternsDecayed, report.Decay.PatternsRemoved = e.cfg.Patterns.Decay(start)
	report.PatternEffectiveness = e.cfg.Patterns.MeanEffectiveness()

	report.SelfModificationCount = e.cfg.Estimator.recordCycle(start, trigger, report.Window.Total)
	if e.cfg.Persist != nil {
		if perr := e.cfg.Persist(ctx); perr != nil {
			e.logger.Error("failed to persist after evolution cycle", zap.Error(perr))
		}
	}
	return report, nil
}

func creativeSuccess(items []Interaction) bool {
	for _, in := range items {
		if in.Effectiveness > successEffectiveness && intelligence.ContainsAny(in.Query, CreativityKeywords) {
			return true
		}
	}
	return false
}
