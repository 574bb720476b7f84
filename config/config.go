// Package config loads the service configuration from an optional YAML file,
// a .env file and VIBE_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	clsconfig "github.com/RyanBlaney/sonido-vibe/classifier/config"
	"github.com/RyanBlaney/sonido-vibe/eventmodel"
	"github.com/RyanBlaney/sonido-vibe/logging"
	"github.com/RyanBlaney/sonido-vibe/publish"
	"github.com/RyanBlaney/sonido-vibe/recommend"
	"github.com/RyanBlaney/sonido-vibe/transcode"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. VIBE_SERVER_ADDR
const EnvPrefix = "VIBE"

// Config is the full service configuration
type Config struct {
	Server     ServerConfig              `mapstructure:"server"`
	Log        LogConfig                 `mapstructure:"log"`
	Decoder    *transcode.DecoderConfig  `mapstructure:"decoder"`
	Emotion    *clsconfig.EmotionConfig  `mapstructure:"emotion"`
	EventModel *eventmodel.HTTPConfig    `mapstructure:"event_model"`
	Generator  *recommend.MessagesConfig `mapstructure:"generator"`
	Catalog    CatalogConfig             `mapstructure:"catalog"`
	Publish    *publish.Config           `mapstructure:"publish"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// LogConfig configures the global logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// CatalogConfig points at an optional track catalog overriding the built-in one
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment apply.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("generator.api_key", EnvPrefix+"_GENERATOR_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.publish_timeout", 2*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	dec := transcode.DefaultDecoderConfig()
	v.SetDefault("decoder.ffmpeg_path", dec.FFmpegPath)
	v.SetDefault("decoder.timeout", dec.Timeout)

	emo := clsconfig.DefaultEmotionConfig()
	v.SetDefault("emotion.target_sample_rate", emo.TargetSampleRate)
	v.SetDefault("emotion.top_k", emo.TopK)
	v.SetDefault("emotion.evidence_count", emo.EvidenceCount)
	v.SetDefault("emotion.resample.quality", emo.Resample.Quality)

	em := eventmodel.DefaultHTTPConfig()
	v.SetDefault("event_model.url", em.URL)
	v.SetDefault("event_model.timeout", em.Timeout)
	v.SetDefault("event_model.sample_rate", em.SampleRate)

	gen := recommend.DefaultMessagesConfig()
	v.SetDefault("generator.url", gen.URL)
	v.SetDefault("generator.api_key", "")
	v.SetDefault("generator.model", gen.Model)
	v.SetDefault("generator.version", gen.Version)
	v.SetDefault("generator.max_tokens", gen.MaxTokens)
	v.SetDefault("generator.timeout", gen.Timeout)

	v.SetDefault("catalog.path", "")

	pub := publish.DefaultConfig()
	v.SetDefault("publish.backend", pub.Backend)
	v.SetDefault("publish.mqtt.broker", pub.MQTT.Broker)
	v.SetDefault("publish.mqtt.client_id", pub.MQTT.ClientID)
	v.SetDefault("publish.mqtt.username", "")
	v.SetDefault("publish.mqtt.password", "")
	v.SetDefault("publish.mqtt.topic", pub.MQTT.Topic)
	v.SetDefault("publish.mqtt.qos", pub.MQTT.QoS)
	v.SetDefault("publish.mqtt.timeout", pub.MQTT.Timeout)
	v.SetDefault("publish.kafka.brokers", pub.Kafka.Brokers)
	v.SetDefault("publish.kafka.topic", pub.Kafka.Topic)
	v.SetDefault("publish.kafka.acks", pub.Kafka.Acks)
	v.SetDefault("publish.kafka.write_timeout", pub.Kafka.WriteTimeout)
}

// GeneratorEnabled reports whether an API key for the text generator is set
func (c *Config) GeneratorEnabled() bool {
	return c.Generator != nil && strings.TrimSpace(c.Generator.APIKey) != ""
}

// NewLogger builds the logger described by the log section
func (l LogConfig) NewLogger(out io.Writer) logging.Logger {
	if out == nil {
		out = os.Stderr
	}
	opts := logging.Options{
		Output: out,
		Level:  logging.ParseLevel(l.Level),
		JSON:   strings.EqualFold(l.Format, "json"),
	}
	if f, ok := out.(*os.File); ok && !opts.JSON {
		if fi, err := f.Stat(); err == nil {
			opts.Colors = fi.Mode()&os.ModeCharDevice != 0
		}
	}
	return logging.NewDefaultLoggerWithOptions(opts)
}
