package intelligence

import "math"

// Emotion labels produced by DetectEmotion.
const (
	EmotionNeutral    = "neutral"
	EmotionHappy      = "happy"
	EmotionSad        = "sad"
	EmotionAngry      = "angry"
	EmotionFrustrated = "frustrated"
)

var (
	positiveWords   = []string{"love", "great", "awesome", "good", "excellent", "amazing", "happy", "glad", "wonderful", "thanks"}
	negativeWords   = []string{"hate", "bad", "terrible", "awful", "horrible", "worse", "sad", "lonely", "tired", "upset"}
	angerWords      = []string{"angry", "furious", "annoyed", "mad"}
	frustratedWords = []string{"frustrated", "frustrating", "stuck", "ugh"}
)

// AnalyzeSentiment returns the share of positive words among the sentiment
// words of text. Text without sentiment words is neutral (0.5).
func AnalyzeSentiment(text string) float64 {
	positive := len(MatchedWords(text, positiveWords))
	negative := len(MatchedWords(text, negativeWords))
	if positive+negative == 0 {
		return 0.5
	}
	return float64(positive) / float64(positive+negative)
}

// DetectEmotion returns hint when the caller supplied one, otherwise an emotion
// inferred from keywords and sentiment.
func DetectEmotion(text, hint string) string {
	if hint != "" {
		return hint
	}
	switch {
	case ContainsAny(text, angerWords):
		return EmotionAngry
	case ContainsAny(text, frustratedWords):
		return EmotionFrustrated
	}

	sentiment := AnalyzeSentiment(text)
	switch {
	case sentiment < 0.3:
		return EmotionSad
	case sentiment > 0.7:
		return EmotionHappy
	default:
		return EmotionNeutral
	}
}

// Engagement estimates how engaged the user is from the query length,
// saturating at 100 characters.
func Engagement(query string) float64 {
	return math.Min(float64(len(query))/100.0, 1.0)
}
