package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-vibe/classifier"
	"github.com/RyanBlaney/sonido-vibe/eventmodel"
	"github.com/RyanBlaney/sonido-vibe/publish"
	"github.com/RyanBlaney/sonido-vibe/recommend"
	"github.com/RyanBlaney/sonido-vibe/transcode/wavtest"
)

type fixedModel struct{}

func (fixedModel) Predict(ctx context.Context, waveform []float64) (*eventmodel.Prediction, error) {
	return &eventmodel.Prediction{
		Labels: []string{"Rain", "Speech", "Dog"},
		Scores: [][]float64{{0.6, 0.2, 0.4}},
	}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publish.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev publish.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// stalledPublisher behaves like a broker that never acknowledges
type stalledPublisher struct {
	mu   sync.Mutex
	errs []error
}

func (p *stalledPublisher) Publish(ctx context.Context, ev publish.Event) error {
	<-ctx.Done()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, ctx.Err())
	return ctx.Err()
}

func (p *stalledPublisher) Close() error { return nil }

type cannedGenerator string

func (g cannedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return string(g), nil
}

func newTestServer(t *testing.T, model eventmodel.Model, gen recommend.TextGenerator) (*Server, *recordingPublisher) {
	t.Helper()
	catalog, err := recommend.DefaultCatalog()
	if err != nil {
		t.Fatal(err)
	}
	var handle *eventmodel.Handle
	if model != nil {
		handle = eventmodel.NewStaticHandle(model)
	}
	pub := &recordingPublisher{}
	s := NewServer(
		classifier.NewClassifier(nil, nil, handle),
		recommend.NewRecommender(catalog, gen),
		pub,
	)
	return s, pub
}

func sineBody(t *testing.T, extra string) *bytes.Buffer {
	t.Helper()
	clip := wavtest.Base64(wavtest.PCM16(wavtest.Sine(440, 0.5, 16000, 8000), 16000, 1))
	return bytes.NewBufferString(`{"audioData":"` + clip + `"` + extra + `}`)
}

func do(t *testing.T, h http.Handler, method, path string, body *bytes.Buffer) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func TestRootAndHealth(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	h := s.Handler(nil, nil)

	rec := do(t, h, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK || decode[map[string]string](t, rec)["message"] != "VIBE Music Recommendation API" {
		t.Fatalf("root = %d %s", rec.Code, rec.Body)
	}

	rec = do(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || decode[map[string]string](t, rec)["status"] != "ok" {
		t.Fatalf("health = %d %s", rec.Code, rec.Body)
	}
}

func TestAnalyze(t *testing.T) {
	s, pub := newTestServer(t, nil, nil)

	rec := do(t, s.Handler(nil, nil), http.MethodPost, "/api/analyze", sineBody(t, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rec.Code, rec.Body)
	}

	got := decode[map[string]any](t, rec)
	if got["category"] != "energetic" || got["confidence"] != 0.8 {
		t.Fatalf("response = %v", got)
	}
	if got["description"] != classifier.DescribeCategory(classifier.Category(1)).Description {
		t.Fatalf("description = %v", got["description"])
	}

	if len(pub.events) != 1 || pub.events[0].Kind != publish.KindEnvironment || pub.events[0].Label != "energetic" {
		t.Fatalf("published %+v", pub.events)
	}
}

func TestAnalyzeUndecodableAudioStillAnswers(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	rec := do(t, s.Router(), http.MethodPost, "/api/analyze", bytes.NewBufferString(`{"audioData":"bm90IGEgd2F2"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[map[string]any](t, rec)
	if got["category"] != "calm" || got["confidence"] != 0.5 {
		t.Fatalf("response = %v", got)
	}
}

func TestAnalyzeEmptyAudioFallsBack(t *testing.T) {
	s, pub := newTestServer(t, nil, nil)

	rec := do(t, s.Router(), http.MethodPost, "/api/analyze", bytes.NewBufferString(`{"audioData":""}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rec.Code, rec.Body)
	}
	got := decode[map[string]any](t, rec)
	if got["category"] != "calm" || got["confidence"] != 0.5 {
		t.Fatalf("response = %v", got)
	}
	if len(pub.events) != 1 || !pub.events[0].Fallback {
		t.Fatalf("published %+v", pub.events)
	}
}

func TestStalledPublisherDoesNotHoldResponse(t *testing.T) {
	catalog, err := recommend.DefaultCatalog()
	if err != nil {
		t.Fatal(err)
	}
	pub := &stalledPublisher{}
	s := NewServer(classifier.NewClassifier(nil, nil, nil), recommend.NewRecommender(catalog, nil), pub).
		WithPublishTimeout(50 * time.Millisecond)

	start := time.Now()
	rec := do(t, s.Router(), http.MethodPost, "/api/analyze", sineBody(t, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rec.Code, rec.Body)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("response took %v", elapsed)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.errs) != 1 || pub.errs[0] != context.DeadlineExceeded {
		t.Fatalf("publish errors = %v", pub.errs)
	}
}

func TestBadRequests(t *testing.T) {
	s, pub := newTestServer(t, nil, nil)
	h := s.Router()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"audioData":`, http.StatusBadRequest},
		{"wrong type", `{"audioData":42}`, http.StatusBadRequest},
		{"missing audio", `{}`, http.StatusUnprocessableEntity},
		{"null audio", `{"audioData":null}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		for _, path := range []string{"/api/analyze", "/api/recommend", "/api/analyze-emotion"} {
			t.Run(tt.name+path, func(t *testing.T) {
				rec := do(t, h, http.MethodPost, path, bytes.NewBufferString(tt.body))
				if rec.Code != tt.code {
					t.Fatalf("status = %d, want %d", rec.Code, tt.code)
				}
				if decode[map[string]string](t, rec)["detail"] == "" {
					t.Fatal("error response should carry a detail")
				}
			})
		}
	}
	if len(pub.events) != 0 {
		t.Fatalf("rejected requests published %d events", len(pub.events))
	}

	if rec := do(t, h, http.MethodGet, "/api/analyze", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /api/analyze = %d", rec.Code)
	}
}

func TestRecommend(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	h := s.Router()

	type response struct {
		Category        string            `json:"category"`
		Description     string            `json:"description"`
		Recommendations []recommend.Track `json:"recommendations"`
	}

	got := decode[response](t, do(t, h, http.MethodPost, "/api/recommend", sineBody(t, `,"limit":2`)))
	if got.Category != "energetic" || len(got.Recommendations) != 2 {
		t.Fatalf("response = %+v", got)
	}
	for _, tr := range got.Recommendations {
		if !strings.HasPrefix(tr.ID, "energetic_") {
			t.Fatalf("track %s is not energetic", tr.ID)
		}
	}

	got = decode[response](t, do(t, h, http.MethodPost, "/api/recommend", sineBody(t, "")))
	if len(got.Recommendations) != 1 {
		t.Fatalf("default limit returned %d tracks", len(got.Recommendations))
	}

	got = decode[response](t, do(t, h, http.MethodPost, "/api/recommend", sineBody(t, `,"limit":-4`)))
	if len(got.Recommendations) != 1 {
		t.Fatalf("limit is clamped to at least one track, got %d", len(got.Recommendations))
	}
}

func TestAnalyzeEmotion(t *testing.T) {
	s, pub := newTestServer(t, fixedModel{}, cannedGenerator("빗소리와 함께 쉬어가요."))

	rec := do(t, s.Router(), http.MethodPost, "/api/analyze-emotion", sineBody(t, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rec.Code, rec.Body)
	}

	var got struct {
		Emotion               string            `json:"emotion"`
		Confidence            float64           `json:"confidence"`
		EmotionDescription    string            `json:"emotion_description"`
		RecommendationMessage string            `json:"recommendation_message"`
		Recommendations       []recommend.Track `json:"recommendations"`
		EmotionDetails        struct {
			TopClasses []struct {
				Name  string  `json:"name"`
				Score float64 `json:"score"`
			} `json:"top_classes"`
			AllEmotionScores map[string]float64 `json:"all_emotion_scores"`
		} `json:"emotion_details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}

	// Rain 0.6 and Dog 0.4 are calm or unmapped, Speech 0.2 is energetic
	if got.Emotion != "calm" || got.Confidence < 0.74 || got.Confidence > 0.76 {
		t.Fatalf("emotion = %s %v", got.Emotion, got.Confidence)
	}
	if got.EmotionDescription != classifier.DescribeEmotion(classifier.Emotion(3)) {
		t.Fatalf("description = %q", got.EmotionDescription)
	}
	if got.RecommendationMessage != "빗소리와 함께 쉬어가요." {
		t.Fatalf("message = %q", got.RecommendationMessage)
	}
	if len(got.Recommendations) != 1 || !strings.HasPrefix(got.Recommendations[0].ID, "nature_") {
		t.Fatalf("recommendations = %+v", got.Recommendations)
	}
	if len(got.EmotionDetails.TopClasses) != 3 || got.EmotionDetails.TopClasses[0].Name != "Rain" {
		t.Fatalf("top classes = %+v", got.EmotionDetails.TopClasses)
	}
	if len(got.EmotionDetails.AllEmotionScores) != 6 {
		t.Fatalf("all emotion scores = %v", got.EmotionDetails.AllEmotionScores)
	}

	if len(pub.events) != 1 || pub.events[0].Kind != publish.KindEmotion {
		t.Fatalf("published %+v", pub.events)
	}
}

func TestAnalyzeEmotionWithoutModel(t *testing.T) {
	s, pub := newTestServer(t, nil, nil)

	rec := do(t, s.Router(), http.MethodPost, "/api/analyze-emotion", sineBody(t, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[map[string]any](t, rec)
	if got["emotion"] != "calm" || got["confidence"] != 0.5 {
		t.Fatalf("response = %v", got)
	}
	if got["recommendation_message"] != "평온한 상태시군요. 이 분위기를 유지할 수 있는 음악을 추천합니다." {
		t.Fatalf("message = %v", got["recommendation_message"])
	}
	details, _ := got["emotion_details"].(map[string]any)
	if details["error"] == nil {
		t.Fatalf("fallback details should carry the error: %v", details)
	}
	if len(pub.events) != 1 || !pub.events[0].Fallback {
		t.Fatalf("published %+v", pub.events)
	}
}

func TestEmotions(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	got := decode[map[string][]map[string]string](t, do(t, s.Router(), http.MethodGet, "/api/emotions", nil))
	want := []string{"happy", "sad", "angry", "calm", "energetic", "anxious"}
	if len(got["emotions"]) != len(want) {
		t.Fatalf("emotions = %v", got)
	}
	for i, e := range got["emotions"] {
		if e["id"] != want[i] || e["description"] == "" {
			t.Fatalf("emotion %d = %v", i, e)
		}
	}
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	h := s.Handler(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("allow origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("credentials should be allowed")
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("preflight = %d %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unknown origins must not be allowed")
	}
}

func TestAccessLog(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	var buf bytes.Buffer

	do(t, s.Handler(nil, &buf), http.MethodGet, "/health", nil)
	if !strings.Contains(buf.String(), `"GET /health HTTP/1.1" 200`) {
		t.Fatalf("access log = %q", buf.String())
	}
}
