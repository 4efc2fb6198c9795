package evolution

import (
	"math"
	"sync"
	"time"

	"github.com/lumenqi/lumen-core/pkg/intelligence"
	"github.com/lumenqi/lumen-core/pkg/memory"
)

// Capability names tracked by the autonomy state.
const (
	CapabilityPatternRecognition   = "pattern_recognition"
	CapabilityContextUnderstanding = "context_understanding"
	CapabilityCreativity           = "creativity"
	CapabilityReasoning            = "reasoning"
	CapabilityEmpathy              = "empathy"
)

// CapabilityNames lists the tracked capabilities in a stable order.
var CapabilityNames = []string{
	CapabilityPatternRecognition, CapabilityContextUnderstanding,
	CapabilityCreativity, CapabilityReasoning, CapabilityEmpathy,
}

const (
	MinLevel = 0.0
	MaxLevel = 100.0

	// DefaultCapability is the starting value of every capability.
	DefaultCapability = 0.1

	// MaxHistory bounds the evolution history.
	MaxHistory = 500

	minThreshold   = 20.0
	baseThreshold  = 60.0
	thresholdSlope = 0.4
)

// Threshold returns the level the self source must reach to be attempted:
// max(20, 60 - 0.4*level). It never increases as level rises.
func Threshold(level float64) float64 {
	return math.Max(minThreshold, baseThreshold-thresholdSlope*level)
}

// DefaultChain is the fallback order before any cycle has run.
func DefaultChain() []memory.Source {
	return []memory.Source{memory.SourceHostedModel, memory.SourceSelf, memory.SourceLocalModel}
}

// ChainFor returns the fallback order for a level. Above 80 the companion
// answers itself first; above 60 it asks the hosted model first and itself
// second; otherwise it uses its own knowledge only as a last resort. External
// sources always stay in the chain.
func ChainFor(level float64) []memory.Source {
	switch {
	case level > 80:
		return []memory.Source{memory.SourceSelf, memory.SourceHostedModel, memory.SourceLocalModel}
	case level > 60:
		return []memory.Source{memory.SourceHostedModel, memory.SourceSelf, memory.SourceLocalModel}
	default:
		return []memory.Source{memory.SourceHostedModel, memory.SourceLocalModel, memory.SourceSelf}
	}
}

// HistoryEntry is one row of the evolution log.
type HistoryEntry struct {
	Timestamp    time.Time          `json:"timestamp"`
	Level        float64            `json:"level"`
	Capabilities map[string]float64 `json:"capabilities"`
	Trigger      string             `json:"trigger"`
	Interactions int                `json:"interactions"`
}

// AutonomyState is the persisted self-assessment of the companion.
type AutonomyState struct {
	Level                 float64               `json:"level"`
	Capabilities          map[string]float64    `json:"capabilities"`
	History               []HistoryEntry        `json:"history"`
	SelfModificationCount int                   `json:"self_modification_count"`
	FallbackChain         []memory.Source       `json:"fallback_chain"`
	SourceDistribution    map[memory.Source]int `json:"source_distribution"`
}

// DefaultAutonomyState returns the state of a companion that has not learned
// anything yet.
func DefaultAutonomyState() AutonomyState {
	caps := make(map[string]float64, len(CapabilityNames))
	for _, name := range CapabilityNames {
		caps[name] = DefaultCapability
	}
	return AutonomyState{
		Capabilities:       caps,
		FallbackChain:      DefaultChain(),
		SourceDistribution: make(map[memory.Source]int),
	}
}

func (s AutonomyState) clone() AutonomyState {
	c := s
	c.Capabilities = copyFloats(s.Capabilities)
	c.History = make([]HistoryEntry, len(s.History))
	for i, h := range s.History {
		h.Capabilities = copyFloats(h.Capabilities)
		c.History[i] = h
	}
	c.FallbackChain = append([]memory.Source(nil), s.FallbackChain...)
	c.SourceDistribution = make(map[memory.Source]int, len(s.SourceDistribution))
	for k, v := range s.SourceDistribution {
		c.SourceDistribution[k] = v
	}
	return c
}

// Estimator owns the autonomy state. Reads are safe at any time; the
// mutating steps are meant to be driven by a single evolution cycle.
type Estimator struct {
	mu    sync.RWMutex
	state AutonomyState
}

// NewEstimator creates an estimator in the default state.
func NewEstimator() *Estimator {
	return &Estimator{state: DefaultAutonomyState()}
}

// Level returns the current autonomy level.
func (e *Estimator) Level() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Level
}

// Threshold returns the self-source threshold for the current level.
func (e *Estimator) Threshold() float64 {
	return Threshold(e.Level())
}

// Chain returns a copy of the current fallback chain.
func (e *Estimator) Chain() []memory.Source {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]memory.Source(nil), e.state.FallbackChain...)
}

// RecordSource counts an answer in the lifetime source distribution.
func (e *Estimator) RecordSource(src memory.Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.SourceDistribution[src]++
}

// Snapshot returns a deep copy of the state.
func (e *Estimator) Snapshot() AutonomyState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.clone()
}

// Replace loads a persisted state, clamping values and filling anything
// missing with defaults.
func (e *Estimator) Replace(state AutonomyState) {
	s := state.clone()
	s.Level = intelligence.ClampRange(s.Level, MinLevel, MaxLevel)
	for _, name := range CapabilityNames {
		if v, ok := s.Capabilities[name]; ok {
			s.Capabilities[name] = intelligence.Clamp01(v)
		} else {
			s.Capabilities[name] = DefaultCapability
		}
	}
	if len(s.FallbackChain) == 0 {
		s.FallbackChain = DefaultChain()
	}
	if len(s.History) > MaxHistory {
		s.History = s.History[len(s.History)-MaxHistory:]
	}

	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// SetLevel overrides the level without touching the chain.
func (e *Estimator) SetLevel(level float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Level = intelligence.ClampRange(level, MinLevel, MaxLevel)
}

// updateCapabilities raises every capability when the window went well.
func (e *Estimator) updateCapabilities(stats WindowStats, creative bool) map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if stats.MeanEffectiveness > 0.6 {
		for _, name := range CapabilityNames {
			e.state.Capabilities[name] = intelligence.Clamp01(e.state.Capabilities[name] + 0.02)
		}
		if creative {
			e.state.Capabilities[CapabilityCreativity] = intelligence.Clamp01(e.state.Capabilities[CapabilityCreativity] + 0.02)
		}
	}
	return copyFloats(e.state.Capabilities)
}

// updateLevel raises the level when the companion answered a meaningful
// share of the window itself and those answers went well.
func (e *Estimator) updateLevel(stats WindowStats) (previous, current float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	previous = e.state.Level
	if stats.SourceFraction(memory.SourceSelf) > 0.3 && stats.MeanEffectiveness > 0.5 {
		delta := 2.0
		if stats.MeanEffectiveness > 0.8 {
			delta++
		}
		e.state.Level = intelligence.ClampRange(e.state.Level+delta, MinLevel, MaxLevel)
	}
	return previous, e.state.Level
}

// rederiveChain recomputes the fallback chain from the level.
func (e *Estimator) rederiveChain() []memory.Source {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.FallbackChain = ChainFor(e.state.Level)
	return append([]memory.Source(nil), e.state.FallbackChain...)
}

// recordCycle appends a history entry and counts the self-modification.
func (e *Estimator) recordCycle(now time.Time, trigger string, interactions int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.History = appendBounded(e.state.History, HistoryEntry{
		Timestamp:    now,
		Level:        e.state.Level,
		Capabilities: copyFloats(e.state.Capabilities),
		Trigger:      trigger,
		Interactions: interactions,
	}, MaxHistory)
	e.state.SelfModificationCount++
	return e.state.SelfModificationCount
}

func copyFloats(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
