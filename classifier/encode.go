package classifier

import (
	"math"
	"sort"

	"github.com/spaolacci/murmur3"

	"github.com/topicmod/topicmod/features"
)

// dense features appended after the hashed token buckets
const denseInputs = 6

func inputSize(buckets int) int {
	return buckets + denseInputs
}

type sparseInput struct {
	idx int
	val float64
}

func bucketOf(token string, buckets int) int {
	return int(murmur3.Sum32([]byte(token)) % uint32(buckets))
}

// Turns a feature vector in to the network's (sparse) input: L2-normalized token counts per hash bucket, followed by the dense features scaled to roughly [0,1]. Output is ordered by index.
func encode(fv features.FeatureVector, buckets int) []sparseInput {
	counts := make(map[int]float64)
	for _, tok := range fv.Tokens() {
		counts[bucketOf(tok, buckets)]++
	}
	var norm float64
	for _, c := range counts {
		norm += c * c
	}
	norm = math.Sqrt(norm)

	out := make([]sparseInput, 0, len(counts)+denseInputs)
	for idx, c := range counts {
		out = append(out, sparseInput{idx: idx, val: c / norm})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].idx < out[j].idx })

	dense := [denseInputs]float64{
		math.Min(1, math.Log1p(float64(fv.Length))/7),
		math.Min(1, math.Log1p(float64(fv.TokenCount))/5),
		boolInput(fv.HasLink),
		boolInput(fv.HasMention),
		boolInput(fv.HasUppercase),
		math.Min(1, float64(fv.EmojiCount)/10),
	}
	for i, v := range dense {
		if v != 0 {
			out = append(out, sparseInput{idx: buckets + i, val: v})
		}
	}
	return out
}

func boolInput(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
