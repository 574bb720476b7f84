package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-vibe/logging"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures the MQTT publisher. Topic may contain a {kind}
// placeholder.
type MQTTConfig struct {
	Broker   string        `json:"broker" mapstructure:"broker"`
	ClientID string        `json:"client_id" mapstructure:"client_id"`
	Username string        `json:"username" mapstructure:"username"`
	Password string        `json:"-" mapstructure:"password"`
	Topic    string        `json:"topic" mapstructure:"topic"`
	QoS      byte          `json:"qos" mapstructure:"qos"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
}

// DefaultMQTTConfig returns a local broker at QoS 1
func DefaultMQTTConfig() *MQTTConfig {
	return &MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "sonido-vibe",
		Topic:    "vibe/{kind}",
		QoS:      1,
		Timeout:  5 * time.Second,
	}
}

// mqttClient is the part of mqtt.Client the publisher uses
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes events as JSON to an MQTT broker
type MQTTPublisher struct {
	client mqttClient
	cfg    *MQTTConfig
	logger logging.Logger
}

// NewMQTTPublisher connects to the broker
func NewMQTTPublisher(cfg *MQTTConfig) (*MQTTPublisher, error) {
	if cfg == nil {
		cfg = DefaultMQTTConfig()
	}
	logger := logging.WithFields(logging.Fields{
		"component": "mqtt_publisher",
		"broker":    cfg.Broker,
	})

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("MQTT connection established")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", logging.Fields{"error": err.Error()})
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeoutOrDefault(cfg.Timeout)) {
		return nil, fmt.Errorf("connect to MQTT broker %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", cfg.Broker, err)
	}

	return newMQTTPublisher(client, cfg), nil
}

func newMQTTPublisher(client mqttClient, cfg *MQTTConfig) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		cfg:    cfg,
		logger: logging.WithFields(logging.Fields{
			"component": "mqtt_publisher",
		}),
	}
}

// Publish sends ev to the topic for its kind and waits for the broker
func (p *MQTTPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	topic := formatTopic(p.cfg.Topic, ev.Kind)
	token := p.client.Publish(topic, p.cfg.QoS, false, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeoutOrDefault(p.cfg.Timeout)):
		return errors.New("publish to " + topic + ": timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug("Event published", logging.Fields{
		"topic": topic,
		"id":    ev.ID,
	})
	return nil
}

// Close disconnects from the broker
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

func formatTopic(pattern, kind string) string {
	return strings.ReplaceAll(pattern, "{kind}", kind)
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Second
	}
	return d
}
