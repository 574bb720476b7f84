package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/RyanBlaney/sonido-vibe/classifier/config"
	"github.com/RyanBlaney/sonido-vibe/eventmodel"
	"github.com/RyanBlaney/sonido-vibe/external"
	"github.com/RyanBlaney/sonido-vibe/transcode/wavtest"
)

// scriptedModel returns a fixed prediction and records what it was sent
type scriptedModel struct {
	mu         sync.Mutex
	prediction *eventmodel.Prediction
	err        error
	received   []int
}

func (m *scriptedModel) Predict(ctx context.Context, waveform []float64) (*eventmodel.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, len(waveform))
	if m.err != nil {
		return nil, m.err
	}
	return m.prediction, nil
}

func rainyPrediction() *eventmodel.Prediction {
	return &eventmodel.Prediction{
		Labels: []string{"Speech", "Rain", "Dog", "Wind", "Siren", "Music"},
		Scores: [][]float64{
			{0.1, 0.7, 0.3, 0.2, 0.05, 0.0},
			{0.1, 0.5, 0.3, 0.2, 0.05, 0.1},
		},
	}
}

func sineClip(sampleRate int, seconds float64) string {
	n := int(float64(sampleRate) * seconds)
	return wavtest.Base64(wavtest.PCM16(wavtest.Sine(440, 0.5, sampleRate, n), sampleRate, 1))
}

func TestClassifyEnvironmentSineEndToEnd(t *testing.T) {
	c := NewClassifier(nil, nil, nil)

	r := c.ClassifyEnvironment(context.Background(), sineClip(16000, 1))
	if r.Error != "" {
		t.Fatalf("unexpected error: %s", r.Error)
	}
	if r.Features == nil {
		t.Fatal("features missing")
	}

	// the decoder peak-normalizes, so the half-amplitude sine arrives at full scale
	if math.Abs(r.Features.Energy-1/math.Sqrt2) > 0.001 {
		t.Errorf("energy = %v, want ~0.707", r.Features.Energy)
	}
	if math.Abs(r.Features.SpectralCentroidHz-440) > 5 {
		t.Errorf("centroid = %v, want ~440", r.Features.SpectralCentroidHz)
	}
	if math.Abs(r.Features.ZeroCrossingRate*16000-880) > 2 {
		t.Errorf("zcr = %v, want ~880 crossings per second", r.Features.ZeroCrossingRate)
	}

	if r.Category != config.CategoryEnergetic || math.Abs(r.Confidence-0.8) > 1e-9 {
		t.Errorf("got %s %v, want energetic 0.8", r.Category, r.Confidence)
	}
}

func TestClassifyEnvironmentSilence(t *testing.T) {
	c := NewClassifier(nil, nil, nil)
	silent := wavtest.Base64(wavtest.PCM16(make([]float64, 8000), 16000, 1))

	r := c.ClassifyEnvironment(context.Background(), silent)
	if r.Category != config.CategoryIndoor || math.Abs(r.Confidence-0.85) > 1e-9 {
		t.Fatalf("got %s %v, want indoor 0.85", r.Category, r.Confidence)
	}
	if r.Features.Energy != 0 || r.Features.ZeroCrossingRate != 0 || r.Features.SpectralCentroidHz != 0 {
		t.Fatalf("silent features = %+v", *r.Features)
	}
}

func TestClassifyEnvironmentFallsBackOnBadInput(t *testing.T) {
	c := NewClassifier(nil, nil, nil)

	for _, payload := range []string{"", "%%%not-base64%%%", wavtest.Base64([]byte("RIFF....WAVEjunk"))} {
		r := c.ClassifyEnvironment(context.Background(), payload)
		if r.Category != config.CategoryCalm || r.Confidence != 0.5 {
			t.Fatalf("payload %q: got %s %v, want calm 0.5", payload, r.Category, r.Confidence)
		}
		if r.Error == "" {
			t.Fatalf("payload %q: fallback should record the error", payload)
		}
	}
}

func TestClassifyEmotionResamplesAndAggregates(t *testing.T) {
	model := &scriptedModel{prediction: rainyPrediction()}
	c := NewClassifier(nil, nil, eventmodel.NewStaticHandle(model))

	r := c.ClassifyEmotion(context.Background(), sineClip(44100, 0.5))

	if len(model.received) != 1 || model.received[0] != 8000 {
		t.Fatalf("model received %v samples, want one call with 8000", model.received)
	}

	// means: Speech 0.1, Rain 0.6, Dog 0.3, Wind 0.2, Siren 0.05, Music 0.05
	// mapped: calm 0.8, energetic 0.1, anxious 0.05, happy 0.05
	if r.Emotion != config.EmotionCalm {
		t.Fatalf("emotion = %s", r.Emotion)
	}
	if math.Abs(r.Confidence-0.8) > 1e-9 {
		t.Fatalf("confidence = %v", r.Confidence)
	}
	if len(r.Evidence.TopEvents) != 5 {
		t.Fatalf("evidence = %+v", r.Evidence.TopEvents)
	}
	if r.Evidence.TopEvents[0].Label != "Rain" || r.Evidence.TopEvents[1].Label != "Dog" {
		t.Fatalf("evidence order = %+v", r.Evidence.TopEvents)
	}
	if r.Evidence.Error != "" {
		t.Fatalf("unexpected error %q", r.Evidence.Error)
	}
}

func TestClassifyEmotionTopKLimitsAggregation(t *testing.T) {
	model := &scriptedModel{prediction: rainyPrediction()}
	cfg := config.DefaultClassifierConfig()
	cfg.Emotion.TopK = 1
	c := NewClassifier(cfg, nil, eventmodel.NewStaticHandle(model))

	r := c.ClassifyEmotion(context.Background(), sineClip(16000, 0.25))
	if r.Emotion != config.EmotionCalm || math.Abs(r.Confidence-1) > 1e-12 {
		t.Fatalf("got %s %v, want calm 1", r.Emotion, r.Confidence)
	}
	if len(r.Evidence.TopEvents) != 1 {
		t.Fatalf("evidence = %+v", r.Evidence.TopEvents)
	}
}

func TestClassifyEmotionFallbacks(t *testing.T) {
	failing := &scriptedModel{err: errors.New("inference server down")}
	loadFails := eventmodel.NewHandle(func(ctx context.Context) (eventmodel.Model, error) {
		return nil, errors.New("vocabulary unavailable")
	})
	malformed := &scriptedModel{prediction: &eventmodel.Prediction{Labels: []string{"Rain"}}}

	tests := []struct {
		name    string
		handle  *eventmodel.Handle
		payload string
		service bool
	}{
		{"no model", nil, sineClip(16000, 0.1), false},
		{"model error", eventmodel.NewStaticHandle(failing), sineClip(16000, 0.1), true},
		{"load error", loadFails, sineClip(16000, 0.1), true},
		{"malformed prediction", eventmodel.NewStaticHandle(malformed), sineClip(16000, 0.1), true},
		{"bad audio", eventmodel.NewStaticHandle(failing), "???", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewClassifier(nil, nil, tt.handle).ClassifyEmotion(context.Background(), tt.payload)
			if r.Emotion != config.EmotionCalm || r.Confidence != 0.5 {
				t.Fatalf("got %s %v, want calm 0.5", r.Emotion, r.Confidence)
			}
			if r.Evidence.Error == "" || r.Evidence.TopEvents != nil || r.Evidence.Distribution != nil {
				t.Fatalf("fallback evidence = %+v", r.Evidence)
			}
			if tt.service && !strings.HasPrefix(r.Evidence.Error, "event_model") {
				t.Fatalf("error %q should come from the event model", r.Evidence.Error)
			}
		})
	}
}

func TestClassifyEmotionNoSignal(t *testing.T) {
	model := &scriptedModel{prediction: &eventmodel.Prediction{
		Labels: []string{"Dog", "Bird"},
		Scores: [][]float64{{0.9, 0.1}},
	}}
	r := NewClassifier(nil, nil, eventmodel.NewStaticHandle(model)).ClassifyEmotion(context.Background(), sineClip(16000, 0.1))

	if r.Emotion != config.EmotionCalm || r.Confidence != 0.5 {
		t.Fatalf("got %s %v, want calm 0.5", r.Emotion, r.Confidence)
	}
	if r.Evidence.Distribution == nil || !r.Evidence.Distribution.IsZero() {
		t.Fatalf("distribution = %v", r.Evidence.Distribution)
	}
	if r.Evidence.Error != "" {
		t.Fatalf("no-signal is not an error: %q", r.Evidence.Error)
	}
}

func TestAnalyzeRunsBothPaths(t *testing.T) {
	model := &scriptedModel{prediction: rainyPrediction()}
	c := NewClassifier(nil, nil, eventmodel.NewStaticHandle(model))

	a, err := c.Analyze(context.Background(), sineClip(16000, 0.5), PathAll)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == "" || a.Timestamp.IsZero() {
		t.Fatalf("analysis not stamped: %+v", a)
	}
	if a.Environment == nil || a.Environment.Category != config.CategoryEnergetic {
		t.Fatalf("environment = %+v", a.Environment)
	}
	if a.Environment.Description != DescribeCategory(config.CategoryEnergetic).Description {
		t.Fatalf("environment description = %q", a.Environment.Description)
	}
	if a.Emotion == nil || a.Emotion.Emotion != config.EmotionCalm {
		t.Fatalf("emotion = %+v", a.Emotion)
	}
	if a.Emotion.Description != DescribeEmotion(config.EmotionCalm) {
		t.Fatalf("emotion description = %q", a.Emotion.Description)
	}

	b, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"environment":{`, `"category":"energetic"`, `"emotion":"calm"`, `"all_emotion_scores":{"happy":`} {
		if !strings.Contains(string(b), key) {
			t.Errorf("json missing %s: %s", key, b)
		}
	}
}

func TestAnalyzeSinglePathAndFallback(t *testing.T) {
	c := NewClassifier(nil, nil, nil)

	a, err := c.Analyze(context.Background(), sineClip(16000, 0.5), PathEnvironment)
	if err != nil {
		t.Fatal(err)
	}
	if a.Emotion != nil || a.Environment == nil {
		t.Fatalf("only the environment path should run: %+v", a)
	}

	a, err = c.Analyze(context.Background(), "not audio", PathAll)
	if err != nil {
		t.Fatal(err)
	}
	if a.Environment.Category != config.CategoryCalm || a.Emotion.Emotion != config.EmotionCalm {
		t.Fatalf("decode failure should fall back on both paths: %+v %+v", a.Environment, a.Emotion)
	}
}

func TestAnalyzeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClassifier(nil, nil, nil).Analyze(ctx, sineClip(16000, 0.1), PathAll)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestServiceErrorsAreRecognisable(t *testing.T) {
	err := asServiceError("predict", errors.New("boom"))
	if !external.IsServiceError(err) {
		t.Fatal("expected ServiceError")
	}
	if again := asServiceError("load", err); again != err {
		t.Fatal("ServiceError should not be wrapped twice")
	}
}
