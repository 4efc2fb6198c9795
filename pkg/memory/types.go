// Package memory holds the companion's long-term knowledge: remembered
// interactions (memories) and learned trigger→response patterns.
package memory

import "time"

// Source identifies which inference source produced a response.
type Source string

const (
	// SourceSelf is the companion's own learned knowledge.
	SourceSelf Source = "self"

	// SourceLocalModel is the locally hosted model server.
	SourceLocalModel Source = "local_model"

	// SourceHostedModel is the hosted large-language-model API.
	SourceHostedModel Source = "hosted_model"

	// SourceNone is recorded when every source failed and the apology was sent.
	SourceNone Source = "none"
)

// Kind classifies what a memory holds.
type Kind string

const (
	KindConversation Kind = "conversation"
	KindLearnedFact  Kind = "learned_fact"
	KindPreference   Kind = "preference"
	KindSkill        Kind = "skill"
)

// Memory is one remembered interaction or fact.
//
// Invariants: Importance ∈ [1,10] and Confidence ∈ [0,1].
type Memory struct {
	// ID is the unique identifier of the memory.
	ID int64 `json:"id"`

	// Kind classifies the memory.
	Kind Kind `json:"kind"`

	// Content is the user turn or fact being remembered.
	Content string `json:"content"`

	// Response is the answer that was given, if any.
	Response string `json:"response,omitempty"`

	// Context annotates why the memory was stored.
	Context string `json:"context,omitempty"`

	// Importance is an integer score in [1,10].
	Importance int `json:"importance"`

	// Confidence reflects trust in the source that produced the memory.
	Confidence float64 `json:"confidence"`

	// Source is the inference source that answered.
	Source Source `json:"source"`

	// Emotion is the emotion detected or supplied for the turn.
	Emotion string `json:"emotion,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`

	// UsageCount is incremented each time the memory helps answer a query.
	UsageCount int `json:"usage_count"`

	// ConsolidationStage is incremented each time the memory absorbs a
	// near-duplicate.
	ConsolidationStage int `json:"consolidation_stage"`
}

// Clone returns a copy of m.
func (m *Memory) Clone() *Memory {
	c := *m
	return &c
}

// LearnedPattern is a trigger→response association distilled from past
// interactions.
type LearnedPattern struct {
	// ID is the unique identifier of the pattern.
	ID int64 `json:"id"`

	// Trigger is the pattern key: sorted query keywords joined by a space.
	Trigger string `json:"trigger"`

	// ResponseTemplate is a short excerpt of the best response seen.
	ResponseTemplate string `json:"response_template"`

	// Effectiveness in [0,1]; reinforced on success, decays when stale.
	Effectiveness float64 `json:"effectiveness"`

	// UsageFrequency counts how often the trigger was seen or used.
	UsageFrequency int `json:"usage_frequency"`

	// OriginSource is the source that first produced the pattern.
	OriginSource Source `json:"origin_source"`

	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`

	// DecayedAt is when stale decay was last charged.
	DecayedAt time.Time `json:"decayed_at,omitempty"`
}

// Clone returns a copy of p.
func (p *LearnedPattern) Clone() *LearnedPattern {
	c := *p
	return &c
}

// ScoredMemory pairs a memory snapshot with its relevance score.
type ScoredMemory struct {
	Memory *Memory
	Score  float64
}

// ConsolidationResult reports what a consolidation pass merged.
type ConsolidationResult struct {
	// Merged is the number of memories absorbed into survivors.
	Merged int `json:"merged"`

	// Survivors lists the IDs of memories that absorbed at least one duplicate.
	Survivors []int64 `json:"survivors,omitempty"`
}

// DecayResult reports what a decay pass removed or changed.
type DecayResult struct {
	MemoriesRemoved int `json:"memories_removed"`
	PatternsDecayed int `json:"patterns_decayed"`
	PatternsRemoved int `json:"patterns_removed"`
}
