// Package evolution holds the companion's slowly changing self-model: the
// personality trait registry, the autonomy estimator with its fallback chain,
// the interaction window they learn from, and the periodic evolution cycle
// that updates them.
package evolution

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lumenqi/lumen-core/pkg/intelligence"
)

// Trait names. The vocabulary is fixed; unknown names are rejected.
const (
	TraitWarmth         = "warmth"
	TraitHumor          = "humor"
	TraitEmpathy        = "empathy"
	TraitSupportiveness = "supportiveness"
	TraitPlayfulness    = "playfulness"
	TraitCuriosity      = "curiosity"
	TraitTechnicalDepth = "technical_depth"
	TraitCreativity     = "creativity"
	TraitFormality      = "formality"
	TraitEnthusiasm     = "enthusiasm"
)

// TraitNames lists the trait vocabulary in a stable order.
var TraitNames = []string{
	TraitWarmth, TraitHumor, TraitEmpathy, TraitSupportiveness, TraitPlayfulness,
	TraitCuriosity, TraitTechnicalDepth, TraitCreativity, TraitFormality, TraitEnthusiasm,
}

const (
	// DefaultTraitValue is the value of a trait that has never been adjusted.
	DefaultTraitValue = 0.5

	// DefaultChangeRate is the largest net change a trait may take in one cycle.
	DefaultChangeRate = 0.1

	// MaxInfluenceLog bounds the influence log kept per trait.
	MaxInfluenceLog = 200
)

// ErrUnknownTrait is returned for names outside the trait vocabulary.
var ErrUnknownTrait = errors.New("unknown trait")

// Influence records one applied change to a trait.
type Influence struct {
	Source    string    `json:"source"`
	Magnitude float64   `json:"magnitude"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Trait is a named personality dimension.
type Trait struct {
	Name         string      `json:"name"`
	Value        float64     `json:"value"`
	ChangeRate   float64     `json:"change_rate"`
	InfluenceLog []Influence `json:"influence_log"`
}

func (t *Trait) clone() *Trait {
	c := *t
	c.InfluenceLog = append([]Influence(nil), t.InfluenceLog...)
	return &c
}

// TraitDelta is a proposed change to a trait, collected while a cycle scans
// its interactions and committed in one call to Apply.
type TraitDelta struct {
	Trait  string
	Delta  float64
	Source string
	Reason string
}

// TraitChange reports the net change applied to one trait.
type TraitChange struct {
	Trait    string  `json:"trait"`
	Previous float64 `json:"previous"`
	Current  float64 `json:"current"`
}

// TraitRegistry holds the trait values. It is safe for concurrent use.
type TraitRegistry struct {
	mu     sync.RWMutex
	traits map[string]*Trait
}

// NewTraitRegistry returns a registry with every trait at its default.
func NewTraitRegistry() *TraitRegistry {
	r := &TraitRegistry{traits: make(map[string]*Trait, len(TraitNames))}
	for _, name := range TraitNames {
		r.traits[name] = defaultTrait(name)
	}
	return r
}

func defaultTrait(name string) *Trait {
	return &Trait{Name: name, Value: DefaultTraitValue, ChangeRate: DefaultChangeRate}
}

// IsTrait reports whether name belongs to the trait vocabulary.
func IsTrait(name string) bool {
	for _, n := range TraitNames {
		if n == name {
			return true
		}
	}
	return false
}

// Value returns the current value of a trait.
func (r *TraitRegistry) Value(name string) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.traits[name]
	if !ok {
		return 0, ErrUnknownTrait
	}
	return t.Value, nil
}

// Values returns every trait value keyed by name.
func (r *TraitRegistry) Values() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]float64, len(r.traits))
	for name, t := range r.traits {
		out[name] = t.Value
	}
	return out
}

// Apply commits a batch of deltas. Deltas for the same trait are summed, the
// sum is capped to the trait's ChangeRate and the result clamped to [0, 1].
// Each trait that actually moved gets one influence entry naming every reason
// that contributed. Deltas for unknown traits are ignored.
func (r *TraitRegistry) Apply(deltas []TraitDelta, now time.Time) []TraitChange {
	type pending struct {
		sum     float64
		source  string
		reasons []string
	}
	byTrait := make(map[string]*pending)
	for _, d := range deltas {
		if !IsTrait(d.Trait) || d.Delta == 0 {
			continue
		}
		p, ok := byTrait[d.Trait]
		if !ok {
			p = &pending{source: d.Source}
			byTrait[d.Trait] = p
		}
		p.sum += d.Delta
		if d.Reason != "" && !containsString(p.reasons, d.Reason) {
			p.reasons = append(p.reasons, d.Reason)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var changes []TraitChange
	for _, name := range TraitNames {
		p, ok := byTrait[name]
		if !ok {
			continue
		}
		t := r.traits[name]
		net := intelligence.ClampRange(p.sum, -t.ChangeRate, t.ChangeRate)
		next := intelligence.Clamp01(t.Value + net)
		if next == t.Value {
			continue
		}
		changes = append(changes, TraitChange{Trait: name, Previous: t.Value, Current: next})
		t.InfluenceLog = appendBounded(t.InfluenceLog, Influence{
			Source:    p.source,
			Magnitude: next - t.Value,
			Reason:    strings.Join(p.reasons, "; "),
			Timestamp: now,
		}, MaxInfluenceLog)
		t.Value = next
	}
	return changes
}

// Snapshot returns copies of every trait ordered by name.
func (r *TraitRegistry) Snapshot() []*Trait {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Trait, 0, len(r.traits))
	for _, t := range r.traits {
		out = append(out, t.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Replace loads persisted traits. Unknown names are dropped and missing
// traits keep their defaults.
func (r *TraitRegistry) Replace(traits []*Trait) {
	loaded := make(map[string]*Trait, len(TraitNames))
	for _, name := range TraitNames {
		loaded[name] = defaultTrait(name)
	}
	for _, t := range traits {
		if t == nil || !IsTrait(t.Name) {
			continue
		}
		c := t.clone()
		c.Value = intelligence.Clamp01(c.Value)
		if c.ChangeRate <= 0 {
			c.ChangeRate = DefaultChangeRate
		}
		if len(c.InfluenceLog) > MaxInfluenceLog {
			c.InfluenceLog = c.InfluenceLog[len(c.InfluenceLog)-MaxInfluenceLog:]
		}
		loaded[c.Name] = c
	}

	r.mu.Lock()
	r.traits = loaded
	r.mu.Unlock()
}

func appendBounded[T any](s []T, v T, max int) []T {
	s = append(s, v)
	if len(s) > max {
		s = append(s[:0:0], s[len(s)-max:]...)
	}
	return s
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
