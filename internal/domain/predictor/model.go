package predictor

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Model is the opaque regression estimator boundary. Training happens
// offline; the service only evaluates a feature vector.
type Model interface {
	Predict(features []float64) (float64, error)
}

// linearArtifact is the serialized regression emitted by the trainer:
// intercept plus one coefficient per schema column, optionally with the
// standard-scaler parameters baked in at training time.
type linearArtifact struct {
	Type         string    `json:"type"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Scaler       *scaler   `json:"scaler,omitempty"`
}

type scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

type linearModel struct {
	artifact linearArtifact
}

// ParseModel decodes a model artifact produced by the trainer.
func ParseModel(data []byte) (Model, error) {
	var artifact linearArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if len(artifact.Coefficients) == 0 {
		return nil, fmt.Errorf("model artifact has no coefficients")
	}
	if artifact.Scaler != nil {
		if len(artifact.Scaler.Mean) != len(artifact.Coefficients) ||
			len(artifact.Scaler.Scale) != len(artifact.Coefficients) {
			return nil, fmt.Errorf("model scaler dimensions do not match coefficients")
		}
	}
	return &linearModel{artifact: artifact}, nil
}

func (m *linearModel) Predict(features []float64) (float64, error) {
	coeffs := m.artifact.Coefficients
	if len(features) != len(coeffs) {
		return 0, fmt.Errorf("feature vector has %d values, model expects %d", len(features), len(coeffs))
	}
	x := features
	if s := m.artifact.Scaler; s != nil {
		x = make([]float64, len(features))
		for i, v := range features {
			if s.Scale[i] != 0 {
				x[i] = (v - s.Mean[i]) / s.Scale[i]
			}
		}
	}
	return m.artifact.Intercept + floats.Dot(x, coeffs), nil
}
