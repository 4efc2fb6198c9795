package intelligence

import "strings"

// Importance bounds for a memory.
const (
	MinImportance = 1
	MaxImportance = 10
)

// Memory kinds assigned by ClassifyKind.
const (
	KindConversation = "conversation"
	KindLearnedFact  = "learned_fact"
	KindPreference   = "preference"
	KindSkill        = "skill"
)

// ImportanceEvaluator scores how important an interaction is to remember.
//
// The score is an integer in [1, 10]:
//   - +KeywordWeight for each importance keyword found in the query
//   - +1 when the response is longer than 200 characters
//   - +1 more when it is longer than 500 characters
//
// Example usage:
//
//	evaluator := NewImportanceEvaluator()
//	score := evaluator.EvaluateImportance("Always remember I prefer tea", response)
type ImportanceEvaluator struct {
	// keywords raise importance when present in the query.
	keywords []string

	// keywordWeight is added per matched keyword.
	keywordWeight int
}

// DefaultImportanceKeywords are the words that mark a turn as worth keeping.
var DefaultImportanceKeywords = []string{
	"remember", "always", "never", "prefer", "important",
	"favorite", "love", "hate",
}

// NewImportanceEvaluator creates an evaluator with DefaultImportanceKeywords
// and a weight of 2 per keyword.
func NewImportanceEvaluator() *ImportanceEvaluator {
	return &ImportanceEvaluator{
		keywords:      DefaultImportanceKeywords,
		keywordWeight: 2,
	}
}

// EvaluateImportance returns the importance of a query/response pair.
func (e *ImportanceEvaluator) EvaluateImportance(query, response string) int {
	score := MinImportance
	score += e.keywordWeight * len(MatchedWords(query, e.keywords))

	// Length factor
	if len(response) > 200 {
		score++
	}
	if len(response) > 500 {
		score++
	}

	return ClampImportance(score)
}

// ClampImportance clamps an importance score to [MinImportance, MaxImportance].
func ClampImportance(score int) int {
	if score < MinImportance {
		return MinImportance
	}
	if score > MaxImportance {
		return MaxImportance
	}
	return score
}

// ClassifyKind picks the memory kind of a query.
func ClassifyKind(query string) string {
	lower := strings.ToLower(query)
	switch {
	case ContainsAny(lower, []string{"remember", "fact", "note that"}):
		return KindLearnedFact
	case ContainsAny(lower, []string{"prefer", "favorite", "favourite", "i like", "i love", "i hate"}):
		return KindPreference
	case ContainsAny(lower, []string{"how do", "how to", "teach", "explain how", "show me how"}):
		return KindSkill
	default:
		return KindConversation
	}
}
