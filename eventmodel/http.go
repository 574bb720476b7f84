package eventmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-vibe/external"
)

const serviceName = "event_model"

// HTTPConfig points at a remote inference server exposing
// GET {url}/labels and POST {url}/predict
type HTTPConfig struct {
	URL        string        `json:"url" mapstructure:"url"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	SampleRate int           `json:"sample_rate" mapstructure:"sample_rate"`
}

// DefaultHTTPConfig returns a local inference server on port 8501
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		URL:        "http://localhost:8501",
		Timeout:    30 * time.Second,
		SampleRate: 16000,
	}
}

type labelsResp struct {
	Labels []string `json:"labels"`
}

type predictReq struct {
	SampleRate int       `json:"sample_rate"`
	Waveform   []float64 `json:"waveform"`
}

type predictResp struct {
	Scores [][]float64 `json:"scores"`
}

// HTTPModel is a Model served over HTTP. The vocabulary is fetched once at
// load time and attached to every Prediction.
type HTTPModel struct {
	baseURL    string
	sampleRate int
	client     *http.Client
	labels     []string
}

// HTTPLoader returns a Loader that fetches the vocabulary from cfg.URL
func HTTPLoader(cfg *HTTPConfig) Loader {
	return func(ctx context.Context) (Model, error) {
		return LoadHTTPModel(ctx, cfg)
	}
}

// LoadHTTPModel fetches the label vocabulary and returns a ready model
func LoadHTTPModel(ctx context.Context, cfg *HTTPConfig) (*HTTPModel, error) {
	if cfg == nil {
		cfg = DefaultHTTPConfig()
	}
	m := &HTTPModel{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		sampleRate: cfg.SampleRate,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
	if m.sampleRate <= 0 {
		m.sampleRate = 16000
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/labels", nil)
	if err != nil {
		return nil, external.Wrap(serviceName, "labels", err)
	}

	var out labelsResp
	if err := m.do(req, &out); err != nil {
		return nil, external.Wrap(serviceName, "labels", err)
	}
	if len(out.Labels) == 0 {
		return nil, external.Wrap(serviceName, "labels", fmt.Errorf("empty vocabulary"))
	}

	m.labels = out.Labels
	return m, nil
}

// Labels returns the model vocabulary
func (m *HTTPModel) Labels() []string {
	return m.labels
}

// Predict sends the waveform to the inference server
func (m *HTTPModel) Predict(ctx context.Context, waveform []float64) (*Prediction, error) {
	b, err := json.Marshal(predictReq{SampleRate: m.sampleRate, Waveform: waveform})
	if err != nil {
		return nil, external.Wrap(serviceName, "predict", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/predict", bytes.NewReader(b))
	if err != nil {
		return nil, external.Wrap(serviceName, "predict", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out predictResp
	if err := m.do(req, &out); err != nil {
		return nil, external.Wrap(serviceName, "predict", err)
	}

	return &Prediction{Scores: out.Scores, Labels: m.labels}, nil
}

func (m *HTTPModel) do(req *http.Request, out any) error {
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
