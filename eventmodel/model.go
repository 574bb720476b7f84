// Package eventmodel talks to the pretrained audio-event classifier: a model
// that takes a 16 kHz mono waveform and returns per-frame scores over a fixed
// label vocabulary.
package eventmodel

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// EventScore is one vocabulary label with its clip-level score
type EventScore struct {
	Label string  `json:"name"`
	Score float64 `json:"score"`
}

// Prediction is the raw model output: Scores is frames x len(Labels)
type Prediction struct {
	Scores [][]float64 `json:"scores"`
	Labels []string    `json:"labels"`
}

// Model classifies a waveform sampled at the model's expected rate
type Model interface {
	Predict(ctx context.Context, waveform []float64) (*Prediction, error)
}

// ClassMeans averages the per-frame scores of every class
func (p *Prediction) ClassMeans() ([]float64, error) {
	if p == nil || len(p.Scores) == 0 {
		return nil, fmt.Errorf("prediction has no frames")
	}
	if len(p.Labels) == 0 {
		return nil, fmt.Errorf("prediction has no labels")
	}

	means := make([]float64, len(p.Labels))
	for i, frame := range p.Scores {
		if len(frame) != len(p.Labels) {
			return nil, fmt.Errorf("frame %d has %d scores, vocabulary has %d labels", i, len(frame), len(p.Labels))
		}
		floats.Add(means, frame)
	}
	floats.Scale(1/float64(len(p.Scores)), means)
	return means, nil
}

// TopK ranks classes by mean score across frames and returns the k highest.
// Equal scores keep vocabulary order.
func TopK(p *Prediction, k int) ([]EventScore, error) {
	means, err := p.ClassMeans()
	if err != nil {
		return nil, err
	}

	indices := make([]int, len(means))
	for i := range indices {
		indices[i] = i
	}
	slices.SortStableFunc(indices, func(a, b int) int {
		return cmp.Compare(means[b], means[a])
	})

	k = min(max(k, 0), len(indices))
	top := make([]EventScore, k)
	for i, idx := range indices[:k] {
		top[i] = EventScore{Label: p.Labels[idx], Score: means[idx]}
	}
	return top, nil
}
