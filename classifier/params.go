package classifier

import (
	"fmt"
	"math"
)

const paramsVersion = 1

// Serializable network parameters. W1 is indexed [hidden][input].
type Params struct {
	Version int         `json:"version"`
	Buckets int         `json:"buckets"`
	Hidden  int         `json:"hidden"`
	W1      [][]float64 `json:"w1"`
	B1      []float64   `json:"b1"`
	W2      []float64   `json:"w2"`
	B2      float64     `json:"b2"`
}

func (p *Params) Validate() error {
	if p.Version != paramsVersion {
		return fmt.Errorf("unsupported classifier params version: %d", p.Version)
	}
	if p.Buckets <= 0 || p.Hidden <= 0 {
		return fmt.Errorf("invalid classifier dimensions: buckets=%d hidden=%d", p.Buckets, p.Hidden)
	}
	if len(p.W1) != p.Hidden || len(p.B1) != p.Hidden || len(p.W2) != p.Hidden {
		return fmt.Errorf("classifier params do not match hidden size %d", p.Hidden)
	}
	inputs := inputSize(p.Buckets)
	for j, row := range p.W1 {
		if len(row) != inputs {
			return fmt.Errorf("classifier params row %d has %d inputs, expected %d", j, len(row), inputs)
		}
		for _, w := range row {
			if !finite(w) {
				return fmt.Errorf("classifier params contain non-finite weight")
			}
		}
	}
	for j := 0; j < p.Hidden; j++ {
		if !finite(p.B1[j]) || !finite(p.W2[j]) {
			return fmt.Errorf("classifier params contain non-finite weight")
		}
	}
	if !finite(p.B2) {
		return fmt.Errorf("classifier params contain non-finite weight")
	}
	return nil
}

func (p *Params) clone() Params {
	out := Params{
		Version: p.Version,
		Buckets: p.Buckets,
		Hidden:  p.Hidden,
		W1:      make([][]float64, len(p.W1)),
		B1:      append([]float64(nil), p.B1...),
		W2:      append([]float64(nil), p.W2...),
		B2:      p.B2,
	}
	for j, row := range p.W1 {
		out.W1[j] = append([]float64(nil), row...)
	}
	return out
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
