package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/RyanBlaney/sonido-vibe/classifier/config"
	"github.com/RyanBlaney/sonido-vibe/eventmodel"
	"gonum.org/v1/gonum/floats"
)

// EmotionDistribution holds one probability per emotion, indexed by Emotion.
// It is either all zero or sums to 1.
type EmotionDistribution [config.NumEmotions]float64

// Get returns the probability of e
func (d EmotionDistribution) Get(e Emotion) float64 {
	if e < 0 || int(e) >= config.NumEmotions {
		return 0
	}
	return d[e]
}

// Total returns the sum of all probabilities
func (d EmotionDistribution) Total() float64 {
	return floats.Sum(d[:])
}

// IsZero reports whether no mapped event contributed
func (d EmotionDistribution) IsZero() bool {
	return d == EmotionDistribution{}
}

// MarshalJSON writes an object keyed by emotion name in declaration order
func (d EmotionDistribution) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range config.Emotions() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(e.String()))
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(d[e], 'g', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object keyed by emotion name. Missing emotions are zero.
func (d *EmotionDistribution) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = EmotionDistribution{}
	for name, p := range raw {
		e, ok := config.ParseEmotion(name)
		if !ok {
			return fmt.Errorf("unknown emotion %q", name)
		}
		d[e] = p
	}
	return nil
}

// AggregateEmotions folds event scores into an emotion distribution: each
// mapped event adds its score to its emotion, then the accumulators are
// divided by their total. Unmapped labels are skipped. When nothing maps the
// result is all zero.
func AggregateEmotions(events []eventmodel.EventScore, mapping EmotionMapping) EmotionDistribution {
	var dist EmotionDistribution
	for _, ev := range events {
		emotion, ok := mapping[ev.Label]
		if !ok || emotion < 0 || int(emotion) >= config.NumEmotions {
			continue
		}
		dist[emotion] += ev.Score
	}

	total := dist.Total()
	if total > 0 {
		floats.Scale(1/total, dist[:])
	}
	return dist
}

// DominantEmotion returns the most probable emotion. Ties go to the emotion
// declared first. An all-zero distribution yields calm at 0.5.
func DominantEmotion(dist EmotionDistribution) (Emotion, float64) {
	if dist.IsZero() {
		return config.EmotionCalm, 0.5
	}

	winner := config.EmotionHappy
	for _, e := range config.Emotions()[1:] {
		if dist[e] > dist[winner] {
			winner = e
		}
	}
	return winner, dist[winner]
}

// Evidence backs an EmotionResult with the strongest events and the full
// distribution
type Evidence struct {
	TopEvents    []eventmodel.EventScore `json:"top_classes,omitempty"`
	Distribution *EmotionDistribution    `json:"all_emotion_scores,omitempty"`
	Error        string                  `json:"error,omitempty"`
}

// EmotionResult is the output of the event-model path
type EmotionResult struct {
	Emotion    Emotion  `json:"emotion"`
	Confidence float64  `json:"confidence"`
	Evidence   Evidence `json:"details"`
}

// NewEmotionResult aggregates the top events and attaches the first
// evidenceCount of them as evidence
func NewEmotionResult(top []eventmodel.EventScore, mapping EmotionMapping, evidenceCount int) EmotionResult {
	dist := AggregateEmotions(top, mapping)
	emotion, confidence := DominantEmotion(dist)

	evidenceCount = min(max(evidenceCount, 0), len(top))
	evidence := make([]eventmodel.EventScore, evidenceCount)
	copy(evidence, top[:evidenceCount])

	return EmotionResult{
		Emotion:    emotion,
		Confidence: confidence,
		Evidence: Evidence{
			TopEvents:    evidence,
			Distribution: &dist,
		},
	}
}

// FallbackEmotionResult is the safe default returned when the emotion path
// failed upstream of aggregation
func FallbackEmotionResult(err error) EmotionResult {
	r := EmotionResult{Emotion: config.EmotionCalm, Confidence: 0.5}
	if err != nil {
		r.Evidence.Error = err.Error()
	}
	return r
}
