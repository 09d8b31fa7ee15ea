package heuristics

import (
	"math"
)

func termFrequency(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	return tf
}

// Cosine similarity of the term-frequency vectors of two texts, in the range [0,1].
//
// Both texts are tokenized with TokenizeText. Terms missing from one text count as zero. Returns 0 if either text has no tokens.
func Similarity(a, b string) float64 {
	tfA := termFrequency(TokenizeText(a))
	tfB := termFrequency(TokenizeText(b))
	if len(tfA) == 0 || len(tfB) == 0 {
		return 0
	}

	// terms only in B contribute zero to the dot product, so iterating A is enough for that
	var dot, magA, magB float64
	for term, ca := range tfA {
		magA += float64(ca * ca)
		if cb, ok := tfB[term]; ok {
			dot += float64(ca * cb)
		}
	}
	for _, cb := range tfB {
		magB += float64(cb * cb)
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	// clamp floating point drift
	if sim > 1 {
		sim = 1
	}
	return sim
}
