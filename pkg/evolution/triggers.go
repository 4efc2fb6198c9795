package evolution

import (
	"github.com/lumenqi/lumen-core/pkg/intelligence"
)

type traitEffect struct {
	trait string
	delta float64
}

type keywordTrigger struct {
	words   []string
	effects []traitEffect
}

// CreativityKeywords mark a request for imaginative output.
var CreativityKeywords = []string{"imagine", "create", "story", "idea"}

var keywordTriggers = []keywordTrigger{
	{
		words:   []string{"haha", "lol", "funny", "joke"},
		effects: []traitEffect{{TraitHumor, 0.08}, {TraitPlayfulness, 0.03}},
	},
	{
		words:   []string{"help", "stuck"},
		effects: []traitEffect{{TraitSupportiveness, 0.07}, {TraitEmpathy, 0.05}},
	},
	{
		words:   []string{"code", "technical", "algorithm", "programming", "debug"},
		effects: []traitEffect{{TraitTechnicalDepth, 0.05}},
	},
	{
		words:   []string{"why", "curious", "wonder"},
		effects: []traitEffect{{TraitCuriosity, 0.04}},
	},
	{
		words:   CreativityKeywords,
		effects: []traitEffect{{TraitCreativity, 0.06}},
	},
	{
		words:   []string{"thanks", "thank", "appreciate"},
		effects: []traitEffect{{TraitWarmth, 0.05}},
	},
}

var emotionTriggers = map[string][]traitEffect{
	intelligence.EmotionSad:        {{TraitSupportiveness, 0.1}, {TraitPlayfulness, -0.03}},
	intelligence.EmotionHappy:      {{TraitEnthusiasm, 0.05}, {TraitWarmth, 0.03}},
	intelligence.EmotionAngry:      {{TraitEmpathy, 0.06}, {TraitHumor, -0.04}},
	intelligence.EmotionFrustrated: {{TraitEmpathy, 0.06}, {TraitHumor, -0.04}},
}

// TraitDeltas returns the trait adjustments one interaction asks for. The
// emotion is the interaction's own, or detected from the query when empty.
func TraitDeltas(in Interaction) []TraitDelta {
	var deltas []TraitDelta
	for _, trig := range keywordTriggers {
		matched := intelligence.MatchedWords(in.Query, trig.words)
		if len(matched) == 0 {
			continue
		}
		for _, e := range trig.effects {
			deltas = append(deltas, TraitDelta{
				Trait:  e.trait,
				Delta:  e.delta,
				Source: string(in.Source),
				Reason: "keyword: " + matched[0],
			})
		}
	}

	emotion := intelligence.DetectEmotion(in.Query, in.Emotion)
	for _, e := range emotionTriggers[emotion] {
		deltas = append(deltas, TraitDelta{
			Trait:  e.trait,
			Delta:  e.delta,
			Source: string(in.Source),
			Reason: "emotion: " + emotion,
		})
	}
	return deltas
}
