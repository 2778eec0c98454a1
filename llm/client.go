// Package llm wraps an OpenAI-compatible chat endpoint. Any server
// exposing /v1/chat/completions works: OpenAI, Ollama, LM Studio,
// vLLM. Requests carry optional JPEG frames for vision models, and
// transient failures (rate limits, server errors) retry with
// exponential backoff.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/bizkut/eden-fft-agent/log"
	"github.com/bizkut/eden-fft-agent/metrics"
)

// Config selects the endpoint and sampling parameters.
type Config struct {
	// BaseURL is the OpenAI-compatible API root, e.g.
	// http://localhost:11434/v1 for Ollama.
	BaseURL string `yaml:"base_url"`
	// APIKey may be any non-empty string for local servers.
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
	// MaxRetries bounds retry attempts on transient failures.
	MaxRetries uint `yaml:"max_retries"`
	// RetryBaseDelay seeds the exponential backoff.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434/v1"
	}
	if c.APIKey == "" {
		c.APIKey = "ollama"
	}
	if c.Model == "" {
		c.Model = "llama3"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 500
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = 2 * time.Second
	}
	return c
}

// Client is a chat client over one configured model.
type Client struct {
	cfg     Config
	api     openai.Client
	logger  *log.Logger
	metrics *metrics.Collector
}

// New builds a client. logger and collector may be nil.
func New(cfg Config, logger *log.Logger, collector *metrics.Collector) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{
		cfg: cfg,
		// The SDK's built-in retry is disabled; the backoff policy
		// below owns retries so attempts stay observable.
		api: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
			option.WithMaxRetries(0),
		),
		logger:  logger,
		metrics: collector,
	}
}

// Chat sends a text-only request and returns the model's reply.
func (c *Client) Chat(ctx context.Context, systemPrompt, prompt string) (string, error) {
	return c.complete(ctx, c.messages(systemPrompt, openai.UserMessage(prompt)))
}

// ChatWithImages sends a multimodal request carrying JPEG frames
// alongside the prompt.
func (c *Client) ChatWithImages(ctx context.Context, systemPrompt, prompt string, jpegFrames [][]byte) (string, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
	}
	for _, frame := range jpegFrames {
		url := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame)
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}))
	}
	return c.complete(ctx, c.messages(systemPrompt, openai.UserMessage(parts)))
}

func (c *Client) messages(systemPrompt string, user openai.ChatCompletionMessageParamUnion) []openai.ChatCompletionMessageParamUnion {
	var msgs []openai.ChatCompletionMessageParamUnion
	if systemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(systemPrompt))
	}
	return append(msgs, user)
}

func (c *Client) complete(ctx context.Context, msgs []openai.ChatCompletionMessageParamUnion) (string, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.cfg.RetryBaseDelay
	expo.MaxInterval = 30 * time.Second

	reply, err := backoff.Retry(ctx, func() (string, error) {
		c.metrics.IncLLMCall()
		resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:       openai.ChatModel(c.cfg.Model),
			Messages:    msgs,
			Temperature: openai.Float(c.cfg.Temperature),
			MaxTokens:   openai.Int(c.cfg.MaxTokens),
		})
		if err != nil {
			c.metrics.IncLLMFailure()
			if !retryable(err) {
				return "", backoff.Permanent(err)
			}
			c.logger.Warn("model request failed, will retry", map[string]any{"error": err.Error()})
			return "", err
		}
		if len(resp.Choices) == 0 {
			c.metrics.IncLLMFailure()
			return "", backoff.Permanent(errors.New("model returned no choices"))
		}
		return resp.Choices[0].Message.Content, nil
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(c.cfg.MaxRetries+1))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return reply, nil
}

// retryable reports whether a request error is transient. Rate limits,
// timeouts, and server-side errors retry; anything else (bad request,
// auth) is permanent.
func retryable(err error) bool {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		// Network-level failure; the endpoint may be mid-restart.
		return true
	}
	switch {
	case apiErr.StatusCode == 429:
		return true
	case apiErr.StatusCode >= 500 && apiErr.StatusCode < 600:
		return true
	default:
		return false
	}
}
