package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	DefaultModel     = openai.GPT4oMini
	defaultMaxTokens = 2000
)

// ErrEmptyContent is returned when the model answers without any text.
var ErrEmptyContent = errors.New("llm: empty content")

// Config captures the runtime settings required to talk to the chat completion API.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// Client sends correction instructions to a chat completion model.
type Client struct {
	cfg    Config
	api    *openai.Client
	logger *zap.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithLogger attaches a logger for request diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.APIKey == "" {
		return nil, errors.New("llm: api key required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	client := &Client{
		cfg:    cfg,
		api:    openai.NewClientWithConfig(apiCfg),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Model reports the chat model used for corrections.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Correct sends instruction as the system prompt and payload as the user
// message. Aggressiveness is passed through as the sampling temperature.
func (c *Client) Correct(ctx context.Context, instruction, payload string, aggressiveness float64) (string, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return "", errors.New("llm correct: instruction required")
	}
	if strings.TrimSpace(payload) == "" {
		return "", errors.New("llm correct: payload required")
	}
	if aggressiveness < 0 {
		aggressiveness = 0
	}

	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, Content: payload},
		},
		Temperature: float32(aggressiveness),
		MaxTokens:   c.cfg.MaxTokens,
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm correct: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm correct: no choices: %w", ErrEmptyContent)
	}
	choice := resp.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", fmt.Errorf("llm correct: finish_reason=%q refusal=%q: %w", choice.FinishReason, choice.Message.Refusal, ErrEmptyContent)
	}

	c.logger.Debug("correction response",
		zap.String("model", c.cfg.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return content, nil
}
