package core

import (
	"time"

	"github.com/lumenqi/lumen-core/pkg/evolution"
	"github.com/lumenqi/lumen-core/pkg/memory"
	"github.com/lumenqi/lumen-core/pkg/orchestrator"
)

// Aliases so callers of the Companion need only this package.
type (
	Context     = orchestrator.Context
	Turn        = orchestrator.Turn
	Response    = orchestrator.Response
	Interaction = orchestrator.Interaction
	CycleReport = evolution.CycleReport
	Source      = memory.Source
)

// Answer sources.
const (
	SourceSelf        = memory.SourceSelf
	SourceLocalModel  = memory.SourceLocalModel
	SourceHostedModel = memory.SourceHostedModel
	SourceNone        = memory.SourceNone
)

// Effectiveness returns a pointer for Interaction.Effectiveness.
func Effectiveness(v float64) *float64 {
	return orchestrator.Effectiveness(v)
}

// Stats is a point-in-time view of the companion's adaptive state.
type Stats struct {
	AutonomyLevel float64            `json:"autonomy_level"`
	Threshold     float64            `json:"threshold"`
	TraitValues   map[string]float64 `json:"trait_values"`
	Capabilities  map[string]float64 `json:"capabilities"`
	MemoryCount   int                `json:"memory_count"`
	PatternCount  int                `json:"pattern_count"`

	// PatternEffectiveness is the mean effectiveness of learned patterns.
	PatternEffectiveness float64 `json:"pattern_effectiveness"`

	// SourceDistribution counts answers per source over the companion's
	// lifetime.
	SourceDistribution map[Source]int `json:"source_distribution"`

	// MemorySources counts stored memories per source.
	MemorySources map[Source]int `json:"memory_sources"`

	FallbackChain         []Source `json:"fallback_chain"`
	SelfModificationCount int      `json:"self_modification_count"`
	CycleState            string   `json:"cycle_state"`

	// LastCycleAt is zero before the first cycle.
	LastCycleAt time.Time `json:"last_cycle_at"`

	// WindowSize is the number of interactions the next cycle will read.
	WindowSize int `json:"window_size"`
}
