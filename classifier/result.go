package classifier

import (
	"time"

	"github.com/google/uuid"
)

// EnvironmentReport is a CategoryResult with its display text
type EnvironmentReport struct {
	CategoryResult
	Name        string `json:"name"`
	Description string `json:"description"`
}

// EmotionReport is an EmotionResult with its display text
type EmotionReport struct {
	EmotionResult
	Description string `json:"emotion_description"`
}

// Analysis is the composed output of one classification request
type Analysis struct {
	ID          string             `json:"id"`
	Timestamp   time.Time          `json:"timestamp"`
	Environment *EnvironmentReport `json:"environment,omitempty"`
	Emotion     *EmotionReport     `json:"emotion,omitempty"`
}

// NewAnalysis creates an empty analysis with a fresh ID
func NewAnalysis() *Analysis {
	return &Analysis{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}
}

// WithEnvironment attaches an environment result
func (a *Analysis) WithEnvironment(r CategoryResult) *Analysis {
	info := DescribeCategory(r.Category)
	a.Environment = &EnvironmentReport{
		CategoryResult: r,
		Name:           info.Name,
		Description:    info.Description,
	}
	return a
}

// WithEmotion attaches an emotion result
func (a *Analysis) WithEmotion(r EmotionResult) *Analysis {
	a.Emotion = &EmotionReport{
		EmotionResult: r,
		Description:   DescribeEmotion(r.Emotion),
	}
	return a
}
