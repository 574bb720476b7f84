// Package publish emits classification results to a message broker so other
// services can react to what the listener hears.
package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-vibe/classifier"
	"github.com/RyanBlaney/sonido-vibe/logging"
	"github.com/google/uuid"
)

// Event kinds
const (
	KindEnvironment = "environment"
	KindEmotion     = "emotion"
)

// Backends accepted by New
const (
	BackendNone  = "none"
	BackendMQTT  = "mqtt"
	BackendKafka = "kafka"
)

// Event is one published classification
type Event struct {
	ID         string    `json:"id"`
	AnalysisID string    `json:"analysis_id"`
	Kind       string    `json:"kind"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Fallback   bool      `json:"fallback,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewEvent stamps a fresh event
func NewEvent(kind, label string, confidence float64) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Label:      label,
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
	}
}

// EventsFromAnalysis returns one event per path present in a
func EventsFromAnalysis(a *classifier.Analysis) []Event {
	if a == nil {
		return nil
	}
	var events []Event
	if a.Environment != nil {
		ev := NewEvent(KindEnvironment, a.Environment.Category.String(), a.Environment.Confidence)
		ev.AnalysisID = a.ID
		ev.Fallback = a.Environment.Error != ""
		events = append(events, ev)
	}
	if a.Emotion != nil {
		ev := NewEvent(KindEmotion, a.Emotion.Emotion.String(), a.Emotion.Confidence)
		ev.AnalysisID = a.ID
		ev.Fallback = a.Emotion.Evidence.Error != ""
		events = append(events, ev)
	}
	return events
}

// Publisher delivers events to a broker
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Config selects and configures the publication backend
type Config struct {
	Backend string       `json:"backend" mapstructure:"backend"`
	MQTT    *MQTTConfig  `json:"mqtt" mapstructure:"mqtt"`
	Kafka   *KafkaConfig `json:"kafka" mapstructure:"kafka"`
}

// DefaultConfig publishes nothing
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendNone,
		MQTT:    DefaultMQTTConfig(),
		Kafka:   DefaultKafkaConfig(),
	}
}

// New creates the publisher named by cfg.Backend
func New(cfg *Config) (Publisher, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendNone:
		return Noop{}, nil
	case BackendMQTT:
		return NewMQTTPublisher(cfg.MQTT)
	case BackendKafka:
		return NewKafkaPublisher(cfg.Kafka)
	default:
		return nil, fmt.Errorf("unknown publish backend %q", cfg.Backend)
	}
}

// PublishAnalysis sends every event of a. Failures are logged and dropped.
func PublishAnalysis(ctx context.Context, p Publisher, a *classifier.Analysis) {
	if p == nil {
		return
	}
	for _, ev := range EventsFromAnalysis(a) {
		if err := p.Publish(ctx, ev); err != nil {
			logging.Error(err, "Failed to publish event", logging.Fields{
				"component":   "publish",
				"kind":        ev.Kind,
				"analysis_id": ev.AnalysisID,
			})
		}
	}
}

// Noop discards every event
type Noop struct{}

func (Noop) Publish(ctx context.Context, ev Event) error { return nil }
func (Noop) Close() error                                { return nil }
