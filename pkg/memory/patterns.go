package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumenqi/lumen-core/pkg/intelligence"
)

// PatternConfig contains the tuning knobs of the pattern store.
type PatternConfig struct {
	// StaleAfter is how long a pattern may go unused before its
	// effectiveness starts to decay. Default: 7 days
	StaleAfter time.Duration `json:"stale_after"`

	// MinEffectiveness removes patterns below it during cleanup. Default: 0.3
	MinEffectiveness float64 `json:"min_effectiveness"`

	// SuccessThreshold is the interaction effectiveness above which a pattern
	// is reinforced rather than averaged. Default: 0.7
	SuccessThreshold float64 `json:"success_threshold"`

	// MatchThreshold is the minimum keyword similarity for BestMatch.
	// Default: 0.5
	MatchThreshold float64 `json:"match_threshold"`

	// MatchEffectiveness is the minimum effectiveness for BestMatch.
	// Default: 0.5
	MatchEffectiveness float64 `json:"match_effectiveness"`

	// MaxTemplateRunes bounds the stored response excerpt. Default: 280
	MaxTemplateRunes int `json:"max_template_runes"`

	// DecayRate is the per-day decay constant for stale patterns. Default: 0.1
	DecayRate float64 `json:"decay_rate"`

	// ReinforcementFactor is the growth on successful use. Default: 0.3
	ReinforcementFactor float64 `json:"reinforcement_factor"`
}

// DefaultPatternConfig returns the default pattern store configuration.
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		StaleAfter:          7 * 24 * time.Hour,
		MinEffectiveness:    0.3,
		SuccessThreshold:    0.7,
		MatchThreshold:      0.5,
		MatchEffectiveness:  0.5,
		MaxTemplateRunes:    280,
		DecayRate:           0.1,
		ReinforcementFactor: 0.3,
	}
}

func (c PatternConfig) withDefaults() PatternConfig {
	d := DefaultPatternConfig()
	if c.StaleAfter <= 0 {
		c.StaleAfter = d.StaleAfter
	}
	if c.MinEffectiveness <= 0 {
		c.MinEffectiveness = d.MinEffectiveness
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	if c.MatchThreshold <= 0 {
		c.MatchThreshold = d.MatchThreshold
	}
	if c.MatchEffectiveness <= 0 {
		c.MatchEffectiveness = d.MatchEffectiveness
	}
	if c.MaxTemplateRunes <= 0 {
		c.MaxTemplateRunes = d.MaxTemplateRunes
	}
	if c.DecayRate <= 0 {
		c.DecayRate = d.DecayRate
	}
	if c.ReinforcementFactor <= 0 {
		c.ReinforcementFactor = d.ReinforcementFactor
	}
	return c
}

// Observation is one interaction fed to the pattern store.
type Observation struct {
	Trigger       string
	Response      string
	Source        Source
	Effectiveness float64
	At            time.Time
}

// PatternStore keeps learned patterns keyed by trigger. It is safe for
// concurrent use.
type PatternStore struct {
	mu       sync.RWMutex
	patterns map[string]*LearnedPattern

	cfg        PatternConfig
	ebbinghaus *intelligence.EbbinghausManager
	logger     *zap.Logger
}

// NewPatternStore creates an empty pattern store.
func NewPatternStore(cfg PatternConfig, logger *zap.Logger) *PatternStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &PatternStore{
		patterns:   make(map[string]*LearnedPattern),
		cfg:        cfg,
		ebbinghaus: intelligence.NewEbbinghausManager(cfg.DecayRate, cfg.ReinforcementFactor),
		logger:     logger.With(zap.String("component", "pattern_store")),
	}
}

// Observe records an interaction under its trigger and returns a copy of the
// updated pattern. newID is called only when a new pattern is created. An
// empty trigger is ignored and returns nil.
//
// An existing pattern is reinforced when the interaction effectiveness is
// above SuccessThreshold and otherwise moves to the mean of the old and new
// effectiveness. The response template follows the best response seen.
func (p *PatternStore) Observe(obs Observation, newID func() int64) *LearnedPattern {
	if obs.Trigger == "" {
		return nil
	}
	eff := intelligence.Clamp01(obs.Effectiveness)
	template := truncateRunes(strings.TrimSpace(obs.Response), p.cfg.MaxTemplateRunes)

	p.mu.Lock()
	defer p.mu.Unlock()

	existing, ok := p.patterns[obs.Trigger]
	if !ok {
		pattern := &LearnedPattern{
			ID:               newID(),
			Trigger:          obs.Trigger,
			ResponseTemplate: template,
			Effectiveness:    eff,
			UsageFrequency:   1,
			OriginSource:     obs.Source,
			CreatedAt:        obs.At,
			LastUsedAt:       obs.At,
		}
		p.patterns[obs.Trigger] = pattern
		return pattern.Clone()
	}

	if template != "" && (existing.ResponseTemplate == "" || eff >= existing.Effectiveness) {
		existing.ResponseTemplate = template
	}
	if eff > p.cfg.SuccessThreshold {
		existing.Effectiveness = p.ebbinghaus.Reinforce(existing.Effectiveness)
	} else {
		existing.Effectiveness = intelligence.Clamp01((existing.Effectiveness + eff) / 2)
	}
	existing.UsageFrequency++
	existing.LastUsedAt = obs.At
	return existing.Clone()
}

// BestMatch returns the pattern whose trigger is most similar to the query
// keywords, provided the similarity reaches MatchThreshold, its
// effectiveness reaches MatchEffectiveness and it has a response template.
func (p *PatternStore) BestMatch(query string) (*LearnedPattern, float64, bool) {
	key := intelligence.PatternKey(query)
	if key == "" {
		return nil, 0, false
	}
	querySet := intelligence.PatternKeySet(key)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if exact, ok := p.patterns[key]; ok && p.usable(exact) {
		return exact.Clone(), 1, true
	}

	var best *LearnedPattern
	bestScore := 0.0
	for _, pattern := range p.patterns {
		if !p.usable(pattern) {
			continue
		}
		score := intelligence.JaccardSimilarity(querySet, intelligence.PatternKeySet(pattern.Trigger))
		if score < p.cfg.MatchThreshold {
			continue
		}
		if best == nil || score > bestScore ||
			(score == bestScore && pattern.Effectiveness > best.Effectiveness) {
			best, bestScore = pattern, score
		}
	}
	if best == nil {
		return nil, 0, false
	}
	return best.Clone(), bestScore, true
}

func (p *PatternStore) usable(pattern *LearnedPattern) bool {
	return pattern.ResponseTemplate != "" && pattern.Effectiveness >= p.cfg.MatchEffectiveness
}

// MarkUsed records that the pattern with the given trigger answered a query.
func (p *PatternStore) MarkUsed(trigger string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pattern, ok := p.patterns[trigger]; ok {
		pattern.UsageFrequency++
		pattern.LastUsedAt = now
	}
}

// Decay wears down the effectiveness of stale patterns and then removes
// patterns below MinEffectiveness.
func (p *PatternStore) Decay(now time.Time) (decayed, removed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for trigger, pattern := range p.patterns {
		next := p.ebbinghaus.DecayStale(pattern.Effectiveness, now, pattern.LastUsedAt, pattern.DecayedAt, p.cfg.StaleAfter)
		if next < pattern.Effectiveness {
			pattern.Effectiveness = next
			pattern.DecayedAt = now
			decayed++
		}
		if pattern.Effectiveness < p.cfg.MinEffectiveness {
			delete(p.patterns, trigger)
			removed++
		}
	}
	if removed > 0 {
		p.logger.Debug("removed ineffective patterns", zap.Int("removed", removed))
	}
	return decayed, removed
}

// MeanEffectiveness returns the average effectiveness of all patterns, or 0
// when there are none.
func (p *PatternStore) MeanEffectiveness() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.patterns) == 0 {
		return 0
	}
	var sum float64
	for _, pattern := range p.patterns {
		sum += pattern.Effectiveness
	}
	return sum / float64(len(p.patterns))
}

// Len returns the number of patterns.
func (p *PatternStore) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.patterns)
}

// Snapshot returns copies of all patterns ordered by trigger.
func (p *PatternStore) Snapshot() []*LearnedPattern {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*LearnedPattern, 0, len(p.patterns))
	for _, pattern := range p.patterns {
		out = append(out, pattern.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Trigger < out[j].Trigger })
	return out
}

// Replace discards the current contents and loads patterns.
func (p *PatternStore) Replace(patterns []*LearnedPattern) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.patterns = make(map[string]*LearnedPattern, len(patterns))
	for _, pattern := range patterns {
		if pattern == nil || pattern.Trigger == "" {
			continue
		}
		c := pattern.Clone()
		c.Effectiveness = intelligence.Clamp01(c.Effectiveness)
		p.patterns[c.Trigger] = c
	}
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max])) + "…"
}
