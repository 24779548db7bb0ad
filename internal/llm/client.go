// Package llm wraps the text-generation provider behind a small prompt-in,
// text-out contract with a fast/smart model split.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Model selects the quality/latency tradeoff for a generation call.
type Model string

const (
	// ModelFast is for high-volume extraction calls.
	ModelFast Model = "fast"
	// ModelSmart is for solution generation where quality matters.
	ModelSmart Model = "smart"
)

// Resolved returns the provider model name this Model maps to, for
// attribution on generated records.
func (m Model) Resolved() string {
	return string(chatModel(m))
}

// Options configures a single generation call.
type Options struct {
	System    string
	Model     Model
	MaxTokens int
}

// Generator is the boundary contract consumed by the extractors. A nil
// Generator means the collaborator is absent and callers degrade to
// placeholder output.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// Client implements Generator against the OpenAI chat API.
type Client struct {
	client *openai.Client
}

// NewClient creates an OpenAI-backed generator. An empty API key is an error;
// callers treat that as "collaborator absent".
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key not set")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{client: &c}, nil
}

// NewClientFrom wraps an existing OpenAI client, letting the embedding and
// generation layers share one connection.
func NewClientFrom(client *openai.Client) *Client {
	return &Client{client: client}
}

// Generate runs one chat completion. Rate-limit errors retry with exponential
// backoff; other errors fail immediately.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if opts.System != "" {
		messages = append(messages, openai.SystemMessage(opts.System))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    chatModel(opts.Model),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	var content string
	operation := func() error {
		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("empty completion response"))
		}
		content = resp.Choices[0].Message.Content
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return content, nil
}

func chatModel(m Model) openai.ChatModel {
	if m == ModelSmart {
		return openai.ChatModelGPT4o
	}
	return openai.ChatModelGPT4oMini
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
