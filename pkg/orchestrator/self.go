package orchestrator

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/lumenqi/lumen-core/pkg/evolution"
	"github.com/lumenqi/lumen-core/pkg/memory"
)

// Rand picks the response prefix. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// selfPrefixes open every answer the companion gives from its own knowledge.
var selfPrefixes = []string{
	"Based on what I've learned, ",
	"From what we've talked about before, ",
	"If I remember right, ",
	"Here's what I know: ",
	"Thinking back on our conversations, ",
}

// patternSaturation is the pattern count at which pattern density reaches 1.
const patternSaturation = 50.0

// SelfSource answers from learned patterns and remembered responses once the
// autonomy level reaches its threshold.
type SelfSource struct {
	patterns  *memory.PatternStore
	estimator *evolution.Estimator
	rand      Rand
}

// NewSelfSource creates the self source. Remembered responses come from the
// relevant memories in each Request. A nil rnd uses the global source.
func NewSelfSource(patterns *memory.PatternStore, estimator *evolution.Estimator, rnd Rand) *SelfSource {
	if rnd == nil {
		rnd = globalRand{}
	}
	return &SelfSource{patterns: patterns, estimator: estimator, rand: rnd}
}

// Name returns memory.SourceSelf.
func (s *SelfSource) Name() memory.Source {
	return memory.SourceSelf
}

// Confidence returns min(0.9, level/100*0.8 + density*0.2) where density is
// the pattern count over 50, capped at 1.
func (s *SelfSource) Confidence(level float64) float64 {
	density := math.Min(1, float64(s.patterns.Len())/patternSaturation)
	return math.Min(0.9, level/100*0.8+density*0.2)
}

// Answer returns ErrSourceSkipped below the threshold or when nothing
// learned matches the query. A matching pattern is preferred over a
// remembered response. Only responses that came from a model are reused.
func (s *SelfSource) Answer(ctx context.Context, req Request) (Answer, error) {
	level := s.estimator.Level()
	if level < evolution.Threshold(level) {
		return Answer{}, ErrSourceSkipped
	}
	if err := ctx.Err(); err != nil {
		return Answer{}, err
	}

	answer := Answer{Confidence: s.Confidence(level)}
	if p, _, ok := s.patterns.BestMatch(req.Query); ok {
		answer.Text = s.wrap(p.ResponseTemplate)
		answer.Basis = p.ResponseTemplate
		answer.PatternTrigger = p.Trigger
		return answer, nil
	}

	for _, m := range req.Memories {
		if strings.TrimSpace(m.Response) == "" || m.Source == memory.SourceNone || m.Source == memory.SourceSelf {
			continue
		}
		answer.Text = s.wrap(m.Response)
		answer.Basis = m.Response
		answer.MemoryIDs = []int64{m.ID}
		return answer, nil
	}
	return Answer{}, ErrSourceSkipped
}

func (s *SelfSource) wrap(text string) string {
	return selfPrefixes[s.rand.IntN(len(selfPrefixes))] + text
}
