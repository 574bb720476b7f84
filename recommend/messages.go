package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-vibe/external"
)

const generatorService = "text_generator"

// TextGenerator turns a prompt into free text
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// MessagesConfig configures a client for a /v1/messages style endpoint
type MessagesConfig struct {
	URL       string        `json:"url" mapstructure:"url"`
	APIKey    string        `json:"-" mapstructure:"api_key"`
	Model     string        `json:"model" mapstructure:"model"`
	Version   string        `json:"version" mapstructure:"version"`
	MaxTokens int           `json:"max_tokens" mapstructure:"max_tokens"`
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
}

// DefaultMessagesConfig returns the public endpoint without credentials
func DefaultMessagesConfig() *MessagesConfig {
	return &MessagesConfig{
		URL:       "https://api.anthropic.com",
		Model:     "claude-3-5-sonnet-20241022",
		Version:   "2023-06-01",
		MaxTokens: 1024,
		Timeout:   30 * time.Second,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesReq struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResp struct {
	Content []contentBlock `json:"content"`
}

// MessagesClient is a TextGenerator backed by a messages API
type MessagesClient struct {
	cfg    *MessagesConfig
	client *http.Client
}

// NewMessagesClient creates a client. Unset fields take their defaults.
func NewMessagesClient(cfg *MessagesConfig) *MessagesClient {
	def := DefaultMessagesConfig()
	if cfg == nil {
		cfg = def
	}
	c := *cfg
	if c.URL == "" {
		c.URL = def.URL
	}
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.Version == "" {
		c.Version = def.Version
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	c.URL = strings.TrimRight(c.URL, "/")

	return &MessagesClient{
		cfg:    &c,
		client: &http.Client{Timeout: c.Timeout},
	}
}

// Generate sends prompt as a single user turn and returns the first text block
func (c *MessagesClient) Generate(ctx context.Context, prompt string) (string, error) {
	b, err := json.Marshal(messagesReq{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", external.Wrap(generatorService, "generate", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/v1/messages", bytes.NewReader(b))
	if err != nil {
		return "", external.Wrap(generatorService, "generate", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", c.cfg.Version)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", external.Wrap(generatorService, "generate", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", external.Wrap(generatorService, "generate",
			fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body))))
	}

	var out messagesResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", external.Wrap(generatorService, "generate", fmt.Errorf("decode: %w", err))
	}
	for _, block := range out.Content {
		if block.Type == "text" || block.Type == "" {
			return block.Text, nil
		}
	}
	return "", external.Wrap(generatorService, "generate", errors.New("no text in response"))
}
