package memory

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumenqi/lumen-core/pkg/intelligence"
)

// ErrInvalidMemory indicates a memory without an ID or content.
var ErrInvalidMemory = errors.New("invalid memory")

// Config contains the tuning knobs of the memory store.
type Config struct {
	// DuplicateThreshold is the keyword Jaccard similarity above which two
	// memories merge during consolidation. Default: 0.8
	DuplicateThreshold float64 `json:"duplicate_threshold"`

	// DecayWindow is how long a weak memory may go unaccessed before it is
	// removed. Default: 30 days
	DecayWindow time.Duration `json:"decay_window"`

	// KeepImportance protects memories with importance at or above it.
	// Default: 3
	KeepImportance int `json:"keep_importance"`

	// KeepUsage protects memories used at least this many times. Default: 2
	KeepUsage int `json:"keep_usage"`

	// RecencyDecayRate is the per-day constant k of the relevance recency
	// factor exp(-days*k). Default: 0.1
	RecencyDecayRate float64 `json:"recency_decay_rate"`
}

// DefaultConfig returns the default memory store configuration.
func DefaultConfig() Config {
	return Config{
		DuplicateThreshold: intelligence.DefaultDuplicateThreshold,
		DecayWindow:        30 * 24 * time.Hour,
		KeepImportance:     3,
		KeepUsage:          2,
		RecencyDecayRate:   0.1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DuplicateThreshold <= 0 {
		c.DuplicateThreshold = d.DuplicateThreshold
	}
	if c.DecayWindow <= 0 {
		c.DecayWindow = d.DecayWindow
	}
	if c.KeepImportance <= 0 {
		c.KeepImportance = d.KeepImportance
	}
	if c.KeepUsage <= 0 {
		c.KeepUsage = d.KeepUsage
	}
	if c.RecencyDecayRate <= 0 {
		c.RecencyDecayRate = d.RecencyDecayRate
	}
	return c
}

// Store keeps memories in process and maintains their keyword sets.
//
// Store is safe for concurrent use. Callers that need read-modify-write
// sequences across several stores serialize them with their own writer lock;
// Store only guarantees that each method sees a consistent memory set.
type Store struct {
	mu       sync.RWMutex
	memories map[int64]*Memory
	keywords map[int64]map[string]struct{}

	cfg        Config
	ebbinghaus *intelligence.EbbinghausManager
	logger     *zap.Logger
}

// NewStore creates an empty memory store.
func NewStore(cfg Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Store{
		memories:   make(map[int64]*Memory),
		keywords:   make(map[int64]map[string]struct{}),
		cfg:        cfg,
		ebbinghaus: intelligence.NewEbbinghausManager(cfg.RecencyDecayRate, 0),
		logger:     logger.With(zap.String("component", "memory_store")),
	}
}

// Add inserts a memory. Importance and confidence are clamped to their
// ranges and a zero LastAccessedAt defaults to CreatedAt.
func (s *Store) Add(m *Memory) error {
	if m == nil || m.ID == 0 || m.Content == "" {
		return ErrInvalidMemory
	}
	stored := normalize(m.Clone())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories[stored.ID] = stored
	s.keywords[stored.ID] = intelligence.KeywordSet(stored.Content)
	return nil
}

func normalize(m *Memory) *Memory {
	m.Importance = intelligence.ClampImportance(m.Importance)
	m.Confidence = intelligence.Clamp01(m.Confidence)
	if m.Kind == "" {
		m.Kind = KindConversation
	}
	if m.LastAccessedAt.IsZero() {
		m.LastAccessedAt = m.CreatedAt
	}
	return m
}

// Get returns a copy of the memory with the given ID.
func (s *Store) Get(id int64) (*Memory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memories[id]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// Len returns the number of stored memories.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.memories)
}

// Snapshot returns copies of all memories ordered by creation time.
func (s *Store) Snapshot() []*Memory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Memory, 0, len(s.memories))
	for _, m := range s.memories {
		out = append(out, m.Clone())
	}
	sortByAge(out)
	return out
}

// Replace discards the current contents and loads memories. Invalid entries
// are skipped.
func (s *Store) Replace(memories []*Memory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories = make(map[int64]*Memory, len(memories))
	s.keywords = make(map[int64]map[string]struct{}, len(memories))
	for _, m := range memories {
		if m == nil || m.ID == 0 || m.Content == "" {
			continue
		}
		stored := normalize(m.Clone())
		s.memories[stored.ID] = stored
		s.keywords[stored.ID] = intelligence.KeywordSet(stored.Content)
	}
}

// Touch records that the given memories helped answer a query.
func (s *Store) Touch(ids []int64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if m, ok := s.memories[id]; ok {
			m.UsageCount++
			m.LastAccessedAt = now
		}
	}
}

// Relevant returns up to limit memories ranked by relevance to query.
//
// The score of a memory is the sum of importance*confidence over the query
// keywords found in its content, scaled by the recency factor
// exp(-daysSinceAccess*k). Memories with a zero score are not returned.
func (s *Store) Relevant(query string, limit int, now time.Time) []ScoredMemory {
	if limit <= 0 {
		return nil
	}
	queryKeywords := intelligence.ExtractKeywords(query, 0)
	if len(queryKeywords) == 0 {
		return nil
	}

	s.mu.RLock()
	scored := make([]ScoredMemory, 0)
	for id, m := range s.memories {
		kws := s.keywords[id]
		var sum float64
		for _, kw := range queryKeywords {
			if _, ok := kws[kw]; ok {
				sum += float64(m.Importance) * m.Confidence
			}
		}
		if sum == 0 {
			continue
		}
		score := sum * s.ebbinghaus.CalculateRetention(now, m.LastAccessedAt)
		scored = append(scored, ScoredMemory{Memory: m.Clone(), Score: score})
	}
	s.mu.RUnlock()

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Memory.LastAccessedAt.After(scored[j].Memory.LastAccessedAt)
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// Consolidate merges near-duplicate memories.
//
// Memories are visited oldest first; each later memory whose keyword set is
// more similar than DuplicateThreshold to an earlier survivor is absorbed:
// the survivor takes the max importance, the confidence-weighted mean
// confidence, the summed usage count, the latest access time and one more
// consolidation stage. A survivor without a real answer takes the response
// and source of the memory it absorbs. Survivor content is unchanged, so a
// second pass finds nothing left to merge.
func (s *Store) Consolidate() ConsolidationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := make([]*Memory, 0, len(s.memories))
	for _, m := range s.memories {
		ordered = append(ordered, m)
	}
	sortByAge(ordered)

	var result ConsolidationResult
	absorbed := make(map[int64]bool)
	for i, survivor := range ordered {
		if absorbed[survivor.ID] {
			continue
		}
		merged := false
		for _, candidate := range ordered[i+1:] {
			if absorbed[candidate.ID] {
				continue
			}
			if !intelligence.IsDuplicate(s.keywords[survivor.ID], s.keywords[candidate.ID], s.cfg.DuplicateThreshold) {
				continue
			}
			absorb(survivor, candidate)
			absorbed[candidate.ID] = true
			merged = true
			result.Merged++
		}
		if merged {
			result.Survivors = append(result.Survivors, survivor.ID)
		}
	}

	for id := range absorbed {
		delete(s.memories, id)
		delete(s.keywords, id)
	}
	if result.Merged > 0 {
		s.logger.Debug("consolidated memories",
			zap.Int("merged", result.Merged),
			zap.Int("remaining", len(s.memories)))
	}
	return result
}

func absorb(survivor, dup *Memory) {
	if dup.Importance > survivor.Importance {
		survivor.Importance = dup.Importance
	}
	survivor.Confidence = intelligence.ConfidenceWeightedMean(survivor.Confidence, dup.Confidence)
	survivor.UsageCount += dup.UsageCount
	survivor.ConsolidationStage++
	if dup.LastAccessedAt.After(survivor.LastAccessedAt) {
		survivor.LastAccessedAt = dup.LastAccessedAt
	}
	if !answered(survivor) && answered(dup) {
		survivor.Response = dup.Response
		survivor.Source = dup.Source
	}
}

// answered reports whether m holds a real answer rather than an apology.
func answered(m *Memory) bool {
	return m.Source != SourceNone && strings.TrimSpace(m.Response) != ""
}

// Decay removes weak memories: importance below KeepImportance, usage below
// KeepUsage and no access within DecayWindow. It returns the number removed.
func (s *Store) Decay(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, m := range s.memories {
		if m.Importance >= s.cfg.KeepImportance || m.UsageCount >= s.cfg.KeepUsage {
			continue
		}
		if now.Sub(m.LastAccessedAt) <= s.cfg.DecayWindow {
			continue
		}
		delete(s.memories, id)
		delete(s.keywords, id)
		removed++
	}
	return removed
}

// CountBySource returns how many stored memories each source produced.
func (s *Store) CountBySource() map[Source]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Source]int)
	for _, m := range s.memories {
		counts[m.Source]++
	}
	return counts
}

func sortByAge(ms []*Memory) {
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.Before(ms[j].CreatedAt)
		}
		return ms[i].ID < ms[j].ID
	})
}
