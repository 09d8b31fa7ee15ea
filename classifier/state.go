package classifier

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/topicmod/topicmod/features"
)

const DefaultTrainingGoal = 1000

// Lifecycle state of the deployment's classifier. Treated as immutable once published: retraining builds a new State.
type State struct {
	Trained      bool      `json:"trained"`
	TrainingGoal int       `json:"trainingGoal"`
	ExampleCount int       `json:"exampleCount"`
	TrainedAt    time.Time `json:"trainedAt"`
	Params       *Params   `json:"params,omitempty"`

	model *Model
}

func NewState(goal int) *State {
	if goal <= 0 {
		goal = DefaultTrainingGoal
	}
	return &State{
		TrainingGoal: goal,
	}
}

func NewTrainedState(m *Model, goal, exampleCount int) *State {
	p := m.Params()
	return &State{
		Trained:      true,
		TrainingGoal: goal,
		ExampleCount: exampleCount,
		TrainedAt:    time.Now().UTC(),
		Params:       &p,
		model:        m,
	}
}

// Score for the features, and whether there is a trained model to produce it.
func (s *State) Infer(fv features.FeatureVector) (float64, bool) {
	if s == nil || !s.Trained || s.model == nil {
		return 0, false
	}
	return s.model.Infer(fv), true
}

func (s *State) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// Decodes a state produced by Encode, rebuilding the model from its parameters.
func DecodeState(raw []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decoding classifier state: %w", err)
	}
	if s.TrainingGoal <= 0 {
		s.TrainingGoal = DefaultTrainingGoal
	}
	if !s.Trained {
		s.Params = nil
		return &s, nil
	}
	if s.Params == nil {
		return nil, fmt.Errorf("classifier state marked trained but has no parameters")
	}
	m, err := FromParams(*s.Params)
	if err != nil {
		return nil, fmt.Errorf("restoring classifier: %w", err)
	}
	s.model = m
	return &s, nil
}
