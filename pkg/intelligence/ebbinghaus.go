package intelligence

import (
	"math"
	"time"
)

// EbbinghausManager applies exponential forgetting to memories and patterns.
//
// Retention follows R = e^(-decayRate * days), where days is the time since the
// item was last touched. The same curve scales relevance scores (recency decay)
// and wears down pattern effectiveness once a pattern goes stale.
//
// Example usage:
//
//	manager := NewEbbinghausManager(0.1, 0.3)
//	retention := manager.CalculateRetention(now, lastAccessedAt)
//	effectiveness = manager.Reinforce(effectiveness)
type EbbinghausManager struct {
	// decayRate is the per-day decay constant k.
	decayRate float64

	// reinforcementFactor determines how much effectiveness grows on a
	// successful use. Typical range: 0.2-0.5
	reinforcementFactor float64
}

// NewEbbinghausManager creates a new forgetting curve manager.
//
// Parameters:
//   - decayRate: Per-day decay constant (0.05-0.2 recommended, 0 uses 0.1)
//   - reinforcementFactor: Growth on successful use (0.2-0.5 recommended, 0 uses 0.3)
func NewEbbinghausManager(decayRate, reinforcementFactor float64) *EbbinghausManager {
	if decayRate <= 0 {
		decayRate = 0.1
	}
	if reinforcementFactor <= 0 {
		reinforcementFactor = 0.3
	}
	return &EbbinghausManager{
		decayRate:           decayRate,
		reinforcementFactor: reinforcementFactor,
	}
}

// DecayRate returns the per-day decay constant.
func (m *EbbinghausManager) DecayRate() float64 {
	return m.decayRate
}

// CalculateRetention returns e^(-decayRate * days since lastTouched) in [0, 1].
// A lastTouched in the future counts as zero elapsed time.
func (m *EbbinghausManager) CalculateRetention(now, lastTouched time.Time) float64 {
	days := now.Sub(lastTouched).Hours() / 24.0
	if days < 0 {
		days = 0
	}
	return Clamp01(math.Exp(-m.decayRate * days))
}

// Reinforce strengthens a value on successful use:
//
//	new = min(1.0, current + reinforcement_factor * (1 - current))
//
// Low values gain more than high values, and the result never exceeds 1.
func (m *EbbinghausManager) Reinforce(current float64) float64 {
	return Clamp01(current + m.reinforcementFactor*(1.0-current))
}

// DecayStale wears down effectiveness for the idle time beyond staleAfter
// since lastUsed. lastDecayed marks the end of the previous decay so repeated
// calls only charge the time elapsed since then. Values never increase and
// stay in [0, 1].
func (m *EbbinghausManager) DecayStale(effectiveness float64, now, lastUsed, lastDecayed time.Time, staleAfter time.Duration) float64 {
	start := lastUsed.Add(staleAfter)
	if lastDecayed.After(start) {
		start = lastDecayed
	}
	if !now.After(start) {
		return Clamp01(effectiveness)
	}
	days := now.Sub(start).Hours() / 24.0
	return Clamp01(effectiveness * math.Exp(-m.decayRate*days))
}
