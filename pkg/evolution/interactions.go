package evolution

import (
	"sync"
	"time"

	"github.com/lumenqi/lumen-core/pkg/memory"
)

const (
	// DefaultWindowSize is the number of recent interactions the cycle learns from.
	DefaultWindowSize = 100

	// WindowCycles is how many cycles read an interaction before it expires.
	WindowCycles = 5
)

// Interaction is one answered query, the training signal of the estimator.
type Interaction struct {
	Query         string        `json:"query"`
	Response      string        `json:"response"`
	Source        memory.Source `json:"source"`
	Confidence    float64       `json:"confidence"`
	Effectiveness float64       `json:"effectiveness"`
	Emotion       string        `json:"emotion"`
	Engagement    float64       `json:"engagement"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Window is a rolling buffer of the most recent interactions. An
// interaction stays in the window for WindowCycles reads, so consecutive
// cycles see overlapping data while an idle companion stops learning from
// old turns. It is safe for concurrent use.
type Window struct {
	mu      sync.Mutex
	entries []windowEntry
	size    int
	fresh   int
}

type windowEntry struct {
	in    Interaction
	reads int
}

// NewWindow creates a window holding at most size interactions.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Window{size: size}
}

// Add appends an interaction, evicting the oldest when full.
func (w *Window) Add(in Interaction) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, windowEntry{in: in})
	if len(w.entries) > w.size {
		w.entries = append([]windowEntry(nil), w.entries[len(w.entries)-w.size:]...)
	}
	if w.fresh < w.size {
		w.fresh++
	}
}

// Len returns the number of buffered interactions.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// Read returns a copy of the window and the number of interactions added
// since the previous Read. The fresh interactions are the tail of the
// returned slice. Entries read WindowCycles times are expired afterwards.
func (w *Window) Read() ([]Interaction, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Interaction, len(w.entries))
	kept := w.entries[:0]
	for i, e := range w.entries {
		out[i] = e.in
		e.reads++
		if e.reads < WindowCycles {
			kept = append(kept, e)
		}
	}
	w.entries = kept
	fresh := w.fresh
	w.fresh = 0
	return out, fresh
}

// WindowStats summarizes an interaction window.
type WindowStats struct {
	Total             int                   `json:"total"`
	New               int                   `json:"new"`
	BySource          map[memory.Source]int `json:"by_source"`
	MeanEffectiveness float64               `json:"mean_effectiveness"`
	MeanConfidence    float64               `json:"mean_confidence"`
	MeanEngagement    float64               `json:"mean_engagement"`
	Successful        int                   `json:"successful"`
	Failed            int                   `json:"failed"`
}

const (
	successEffectiveness = 0.7
	failureEffectiveness = 0.3
)

// Summarize aggregates interactions.
func Summarize(items []Interaction) WindowStats {
	stats := WindowStats{Total: len(items), BySource: make(map[memory.Source]int)}
	if len(items) == 0 {
		return stats
	}
	var eff, conf, eng float64
	for _, in := range items {
		stats.BySource[in.Source]++
		eff += in.Effectiveness
		conf += in.Confidence
		eng += in.Engagement
		switch {
		case in.Effectiveness > successEffectiveness:
			stats.Successful++
		case in.Effectiveness < failureEffectiveness:
			stats.Failed++
		}
	}
	n := float64(len(items))
	stats.MeanEffectiveness = eff / n
	stats.MeanConfidence = conf / n
	stats.MeanEngagement = eng / n
	return stats
}

// SourceFraction returns the share of interactions answered by src.
func (s WindowStats) SourceFraction(src memory.Source) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.BySource[src]) / float64(s.Total)
}
