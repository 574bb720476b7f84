package eventmodel

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-vibe/external"
)

type stubModel struct{}

func (stubModel) Predict(ctx context.Context, waveform []float64) (*Prediction, error) {
	return &Prediction{}, nil
}

func TestTopKMeansAcrossFrames(t *testing.T) {
	p := &Prediction{
		Labels: []string{"Speech", "Music", "Rain", "Siren"},
		Scores: [][]float64{
			{0.2, 0.9, 0.1, 0.4},
			{0.4, 0.1, 0.1, 0.4},
		},
	}

	top, err := TopK(p, 3)
	if err != nil {
		t.Fatal(err)
	}

	// means: Speech 0.3, Music 0.5, Rain 0.1, Siren 0.4
	want := []string{"Music", "Siren", "Speech"}
	if len(top) != len(want) {
		t.Fatalf("len = %d", len(top))
	}
	for i, label := range want {
		if top[i].Label != label {
			t.Fatalf("top[%d] = %s, want %s", i, top[i].Label, label)
		}
	}
	if math.Abs(top[0].Score-0.5) > 1e-12 {
		t.Fatalf("Music mean = %v", top[0].Score)
	}
}

func TestTopKTiesKeepVocabularyOrder(t *testing.T) {
	p := &Prediction{
		Labels: []string{"A", "B", "C"},
		Scores: [][]float64{{0.5, 0.5, 0.5}},
	}

	top, err := TopK(p, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 3 || top[0].Label != "A" || top[1].Label != "B" || top[2].Label != "C" {
		t.Fatalf("unexpected order: %+v", top)
	}
}

func TestTopKRejectsMalformedPredictions(t *testing.T) {
	tests := []struct {
		name string
		p    *Prediction
	}{
		{"nil", nil},
		{"no frames", &Prediction{Labels: []string{"A"}}},
		{"no labels", &Prediction{Scores: [][]float64{{1}}}},
		{"ragged", &Prediction{Labels: []string{"A", "B"}, Scores: [][]float64{{1, 0}, {1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := TopK(tt.p, 5); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestHandleLoadsOnceUnderConcurrency(t *testing.T) {
	var loads atomic.Int32
	h := NewHandle(func(ctx context.Context) (Model, error) {
		loads.Add(1)
		time.Sleep(20 * time.Millisecond)
		return stubModel{}, nil
	})

	var wg sync.WaitGroup
	models := make([]Model, 16)
	for i := range models {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := h.Get(context.Background())
			if err != nil {
				t.Errorf("Get: %v", err)
			}
			models[i] = m
		}(i)
	}
	wg.Wait()

	if n := loads.Load(); n != 1 {
		t.Fatalf("loader called %d times, want 1", n)
	}
	for i, m := range models {
		if m != models[0] {
			t.Fatalf("caller %d observed a different model", i)
		}
	}
	if !h.Loaded() {
		t.Fatal("handle should report loaded")
	}
}

func TestHandleRetriesAfterFailedLoad(t *testing.T) {
	var calls int
	h := NewHandle(func(ctx context.Context) (Model, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("network down")
		}
		return stubModel{}, nil
	})

	if _, err := h.Get(context.Background()); err == nil {
		t.Fatal("expected first load to fail")
	}
	if h.Loaded() {
		t.Fatal("failed load must not be cached")
	}
	if _, err := h.Get(context.Background()); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestHandleWaiterHonoursItsContext(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	h := NewHandle(func(ctx context.Context) (Model, error) {
		close(started)
		<-release
		return stubModel{}, nil
	})

	first := make(chan error, 1)
	go func() {
		_, err := h.Get(context.Background())
		first <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := h.Get(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("waiting caller err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("waiting caller returned after %v", elapsed)
	}

	close(release)
	if err := <-first; err != nil {
		t.Fatalf("loading caller: %v", err)
	}
	if !h.Loaded() {
		t.Fatal("model should be loaded once the loader returns")
	}
}

func TestStaticHandle(t *testing.T) {
	h := NewStaticHandle(stubModel{})
	m, err := h.Get(context.Background())
	if err != nil || m == nil {
		t.Fatalf("static handle: %v %v", m, err)
	}

	if _, err := NewHandle(nil).Get(context.Background()); err == nil {
		t.Fatal("expected error from handle without loader")
	}
}

func newInferenceServer(t *testing.T, predictStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/labels", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"labels": []string{"Speech", "Rain"}})
	})
	mux.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		if predictStatus != http.StatusOK {
			http.Error(w, "model exploded", predictStatus)
			return
		}
		var req predictReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.SampleRate != 16000 || len(req.Waveform) != 3 {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"scores": [][]float64{{0.1, 0.8}, {0.3, 0.6}}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPModelPredict(t *testing.T) {
	srv := newInferenceServer(t, http.StatusOK)

	h := NewHandle(HTTPLoader(&HTTPConfig{URL: srv.URL + "/", Timeout: 5 * time.Second, SampleRate: 16000}))
	m, err := h.Get(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	pred, err := m.Predict(context.Background(), []float64{0, 0.5, -0.5})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	top, err := TopK(pred, 1)
	if err != nil {
		t.Fatal(err)
	}
	if top[0].Label != "Rain" || math.Abs(top[0].Score-0.7) > 1e-12 {
		t.Fatalf("top = %+v", top[0])
	}
}

func TestHTTPModelErrorsAreServiceErrors(t *testing.T) {
	srv := newInferenceServer(t, http.StatusInternalServerError)

	m, err := LoadHTTPModel(context.Background(), &HTTPConfig{URL: srv.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	_, err = m.Predict(context.Background(), []float64{0, 0, 0})
	var se *external.ServiceError
	if !errors.As(err, &se) || se.Service != "event_model" || se.Op != "predict" {
		t.Fatalf("expected predict ServiceError, got %v", err)
	}

	_, err = LoadHTTPModel(context.Background(), &HTTPConfig{URL: "http://127.0.0.1:1", Timeout: time.Second})
	if !external.IsServiceError(err) {
		t.Fatalf("expected labels ServiceError, got %v", err)
	}
}
