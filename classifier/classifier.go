// Trainable binary classifier for chat message features.
//
// The model is a small feed-forward network: one sigmoid hidden layer over a hashed bag-of-words plus a handful of dense features, and a sigmoid output read as "probability the message is appropriate". Training is deterministic for a given example set and Options (examples are ordered by key, and weights are initialized from a seeded source).
package classifier

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/topicmod/topicmod/examplestore"
	"github.com/topicmod/topicmod/features"
)

var (
	ErrInsufficientData = errors.New("insufficient training data")
	ErrTrainingFailed   = errors.New("classifier training failed")
)

// fewest examples Train will accept (and both labels must be present)
const MinTrainingExamples = 2

type Options struct {
	Buckets        int
	Hidden         int
	Epochs         int
	LearningRate   float64
	ErrorThreshold float64
	Seed           int64
}

func DefaultOptions() Options {
	return Options{
		Buckets:        256,
		Hidden:         8,
		Epochs:         1000,
		LearningRate:   0.3,
		ErrorThreshold: 0.005,
		Seed:           1,
	}
}

type Model struct {
	p Params
}

func FromParams(p Params) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Model{p: p.clone()}, nil
}

// Copy of the model's parameters, safe to serialize or mutate.
func (m *Model) Params() Params {
	return m.p.clone()
}

// Probability, in [0,1], that the message is appropriate.
func (m *Model) Infer(fv features.FeatureVector) float64 {
	out, _ := m.forward(encode(fv, m.p.Buckets), nil)
	return out
}

// hidden activations are written to hbuf if it is non-nil
func (m *Model) forward(x []sparseInput, hbuf []float64) (float64, []float64) {
	if hbuf == nil {
		hbuf = make([]float64, m.p.Hidden)
	}
	z := m.p.B2
	for j := 0; j < m.p.Hidden; j++ {
		row := m.p.W1[j]
		a := m.p.B1[j]
		for _, in := range x {
			a += row[in.idx] * in.val
		}
		hbuf[j] = sigmoid(a)
		z += m.p.W2[j] * hbuf[j]
	}
	return sigmoid(z), hbuf
}

func target(l examplestore.Label) float64 {
	if l == examplestore.LabelAppropriate {
		return 1
	}
	return 0
}

// Fits a new model to the examples.
//
// Fails with ErrInsufficientData if there are fewer than MinTrainingExamples examples, or if only one label is present; and with ErrTrainingFailed if the parameters diverge.
func Train(examples []examplestore.LabeledExample, opts Options) (*Model, error) {
	def := DefaultOptions()
	if opts.Buckets <= 0 {
		opts.Buckets = def.Buckets
	}
	if opts.Hidden <= 0 {
		opts.Hidden = def.Hidden
	}
	if opts.Epochs <= 0 {
		opts.Epochs = def.Epochs
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = def.LearningRate
	}

	if len(examples) < MinTrainingExamples {
		return nil, fmt.Errorf("%w: have %d examples, need at least %d", ErrInsufficientData, len(examples), MinTrainingExamples)
	}

	ordered := make([]examplestore.LabeledExample, len(examples))
	copy(ordered, examples)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Key < ordered[j].Key })

	var pos, neg int
	inputs := make([][]sparseInput, len(ordered))
	targets := make([]float64, len(ordered))
	for i, ex := range ordered {
		if !ex.Label.Valid() {
			return nil, fmt.Errorf("%w: example %s has invalid label %q", ErrTrainingFailed, ex.Key, ex.Label)
		}
		inputs[i] = encode(ex.Features, opts.Buckets)
		targets[i] = target(ex.Label)
		if targets[i] > 0 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return nil, fmt.Errorf("%w: need both appropriate and rejected examples (have %d and %d)", ErrInsufficientData, pos, neg)
	}

	m := &Model{p: initParams(opts)}
	hbuf := make([]float64, opts.Hidden)
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		var sqErr float64
		for i, x := range inputs {
			out, h := m.forward(x, hbuf)
			diff := out - targets[i]
			sqErr += diff * diff
			m.backprop(x, h, diff, opts.LearningRate)
		}
		mse := sqErr / float64(len(inputs))
		if math.IsNaN(mse) || math.IsInf(mse, 0) {
			return nil, fmt.Errorf("%w: diverged at epoch %d", ErrTrainingFailed, epoch)
		}
		if mse < opts.ErrorThreshold {
			break
		}
	}
	if err := m.p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTrainingFailed, err)
	}
	return m, nil
}

// one stochastic gradient step, for cross-entropy loss on a sigmoid output (so the output delta is just out-target)
func (m *Model) backprop(x []sparseInput, h []float64, delta, rate float64) {
	for j := 0; j < m.p.Hidden; j++ {
		dh := delta * m.p.W2[j] * h[j] * (1 - h[j])
		m.p.W2[j] -= rate * delta * h[j]
		row := m.p.W1[j]
		for _, in := range x {
			row[in.idx] -= rate * dh * in.val
		}
		m.p.B1[j] -= rate * dh
	}
	m.p.B2 -= rate * delta
}

func initParams(opts Options) Params {
	rng := rand.New(rand.NewSource(opts.Seed))
	inputs := inputSize(opts.Buckets)
	scale := math.Sqrt(6.0 / float64(inputs+opts.Hidden))
	p := Params{
		Version: paramsVersion,
		Buckets: opts.Buckets,
		Hidden:  opts.Hidden,
		W1:      make([][]float64, opts.Hidden),
		B1:      make([]float64, opts.Hidden),
		W2:      make([]float64, opts.Hidden),
	}
	for j := 0; j < opts.Hidden; j++ {
		p.W1[j] = make([]float64, inputs)
		for i := range p.W1[j] {
			p.W1[j][i] = (rng.Float64()*2 - 1) * scale
		}
		p.W2[j] = (rng.Float64()*2 - 1) * math.Sqrt(6.0/float64(opts.Hidden+1))
	}
	return p
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
