package intelligence_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lumenqi/lumen-core/pkg/intelligence"
)

func TestEvaluateImportance(t *testing.T) {
	evaluator := intelligence.NewImportanceEvaluator()

	tests := []struct {
		name     string
		query    string
		response string
		want     int
	}{
		{"plain", "What time is it?", "Noon.", 1},
		{"one keyword", "Remember my name is Sam", "Got it.", 3},
		{"two keywords", "Always remember this", "Sure.", 5},
		{"long response", "Tell me a story", strings.Repeat("x", 201), 2},
		{"very long response", "Tell me a story", strings.Repeat("x", 501), 3},
		{"capped", "remember always never prefer important favorite love hate", strings.Repeat("x", 600), 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluator.EvaluateImportance(tt.query, tt.response))
		})
	}
}

func TestClassifyKind(t *testing.T) {
	assert.Equal(t, intelligence.KindLearnedFact, intelligence.ClassifyKind("Remember that my cat is Miso"))
	assert.Equal(t, intelligence.KindPreference, intelligence.ClassifyKind("I prefer green tea"))
	assert.Equal(t, intelligence.KindSkill, intelligence.ClassifyKind("How do I center a div?"))
	assert.Equal(t, intelligence.KindConversation, intelligence.ClassifyKind("Good morning"))
}

func TestSentimentAndEmotion(t *testing.T) {
	assert.Equal(t, 0.5, intelligence.AnalyzeSentiment("The sky is blue"))
	assert.Equal(t, 1.0, intelligence.AnalyzeSentiment("This is great and awesome"))
	assert.Equal(t, 0.0, intelligence.AnalyzeSentiment("I feel sad and lonely"))

	assert.Equal(t, intelligence.EmotionSad, intelligence.DetectEmotion("I feel sad and lonely", ""))
	assert.Equal(t, intelligence.EmotionHappy, intelligence.DetectEmotion("This is great", ""))
	assert.Equal(t, intelligence.EmotionFrustrated, intelligence.DetectEmotion("I'm stuck on this bug", ""))
	assert.Equal(t, "excited", intelligence.DetectEmotion("I feel sad", "excited"), "hint wins")
}

func TestEngagement(t *testing.T) {
	assert.Equal(t, 0.1, intelligence.Engagement(strings.Repeat("a", 10)))
	assert.Equal(t, 1.0, intelligence.Engagement(strings.Repeat("a", 250)))
}
