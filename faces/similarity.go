package faces

import "math"

// Scorer compares two descriptors of the same kind. It never fails: any
// unusable pair scores 0.0.
type Scorer func(a, b Descriptor) float64

// ScorerFor returns the scoring function tied to a descriptor kind.
func ScorerFor(kind Kind) Scorer {
	if kind == KindLearned {
		return CosineSimilarity
	}
	return EuclideanSimilarity
}

// scorable reports whether a and b can be scored against each other
func scorable(a, b Descriptor) bool {
	return !a.Empty() && !b.Empty() && a.Kind == b.Kind && len(a.Values) == len(b.Values)
}

// EuclideanSimilarity returns 1 / (1 + ||a - b||), in (0, 1].
func EuclideanSimilarity(a, b Descriptor) float64 {
	if !scorable(a, b) {
		return 0.0
	}

	var sum float64
	for i := range a.Values {
		diff := float64(a.Values[i]) - float64(b.Values[i])
		sum += diff * diff
	}

	similarity := 1.0 / (1.0 + math.Sqrt(sum))
	if math.IsNaN(similarity) {
		return 0.0
	}
	return similarity
}

// CosineSimilarity returns the dot product of the unit-normalized vectors,
// in [-1, 1].
func CosineSimilarity(a, b Descriptor) float64 {
	if !scorable(a, b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a.Values {
		x, y := float64(a.Values[i]), float64(b.Values[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(similarity) {
		return 0.0
	}
	// clamp floating point drift
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return similarity
}
