package pcc

import "pcc-go/internal/model"

// Jaccard returns the Jaccard similarity of the two signatures' path sets:
// |intersection| / |union|. Sizes are ignored. Two empty signatures are
// identical (1.0).
func Jaccard(a, b model.TreeSignature) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	intersection := 0
	for path := range a {
		if _, ok := b[path]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// WeightedJaccard is Jaccard weighted by size equality: a path present in
// both trees counts fully only when the byte sizes also match, and half
// otherwise. It penalizes trees whose files merely share names.
func WeightedJaccard(a, b model.TreeSignature) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	var score float64
	intersection := 0
	for path, sizeA := range a {
		sizeB, ok := b[path]
		if !ok {
			continue
		}
		intersection++
		if sizeA == sizeB {
			score += 1.0
		} else {
			score += 0.5
		}
	}
	union := len(a) + len(b) - intersection
	return score / float64(union)
}
