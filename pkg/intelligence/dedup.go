package intelligence

// DefaultDuplicateThreshold is the keyword-set similarity above which two
// memories are considered near-duplicates.
const DefaultDuplicateThreshold = 0.8

// JaccardSimilarity returns |A∩B| / |A∪B| for two keyword sets.
//
// Two empty sets have similarity 0: a memory with no keywords carries no
// signal to merge on.
func JaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	intersection := 0
	for k := range small {
		if _, ok := large[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// IsDuplicate reports whether two keyword sets exceed threshold.
// A threshold of 0 uses DefaultDuplicateThreshold.
func IsDuplicate(a, b map[string]struct{}, threshold float64) bool {
	if threshold == 0 {
		threshold = DefaultDuplicateThreshold
	}
	return JaccardSimilarity(a, b) > threshold
}

// ConfidenceWeightedMean merges two confidences, weighting each by itself:
// (a² + b²) / (a + b). Both zero yields zero.
func ConfidenceWeightedMean(a, b float64) float64 {
	if a+b == 0 {
		return 0
	}
	return Clamp01((a*a + b*b) / (a + b))
}

// Clamp01 clamps v to [0, 1].
func Clamp01(v float64) float64 {
	return ClampRange(v, 0, 1)
}

// ClampRange clamps v to [lo, hi].
func ClampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
