package classifier

import (
	"math"
)

// Model which scores every message the same, for exercising decision logic in tests.
func NewConstantModel(score float64) *Model {
	score = math.Min(math.Max(score, 1e-6), 1-1e-6)
	p := Params{
		Version: paramsVersion,
		Buckets: 1,
		Hidden:  1,
		W1:      [][]float64{make([]float64, inputSize(1))},
		B1:      []float64{0},
		W2:      []float64{0},
		B2:      math.Log(score / (1 - score)),
	}
	return &Model{p: p}
}
