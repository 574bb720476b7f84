package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-vibe/logging"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the Kafka publisher
type KafkaConfig struct {
	Brokers      []string      `json:"brokers" mapstructure:"brokers"`
	Topic        string        `json:"topic" mapstructure:"topic"`
	Acks         int           `json:"acks" mapstructure:"acks"`
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
}

// DefaultKafkaConfig returns a single local broker
func DefaultKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "vibe.analysis",
		Acks:         int(kafka.RequireOne),
		WriteTimeout: 5 * time.Second,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to one topic keyed by kind, so every event of
// a kind lands on the same partition
type KafkaPublisher struct {
	writer messageWriter
	logger logging.Logger
}

// NewKafkaPublisher creates a publisher backed by a kafka.Writer
func NewKafkaPublisher(cfg *KafkaConfig) (*KafkaPublisher, error) {
	if cfg == nil {
		cfg = DefaultKafkaConfig()
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("kafka topic must not be empty")
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequiredAcks(cfg.Acks),
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: false,
	}
	return newKafkaPublisher(w), nil
}

func newKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		logger: logging.WithFields(logging.Fields{
			"component": "kafka_publisher",
		}),
	}
}

// Publish writes ev synchronously
func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.Kind),
		Value: value,
		Time:  ev.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.ID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}

	p.logger.Debug("Event published", logging.Fields{
		"kind": ev.Kind,
		"id":   ev.ID,
	})
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
