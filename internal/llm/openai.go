package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kalambet/fitbuddy/internal/session"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 200
	DefaultTemperature = 0.8
	DefaultTimeout     = 60 * time.Second
)

// Options configures an OpenAI-compatible backend.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Temperature <= 0 {
		o.Temperature = DefaultTemperature
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// OpenAI talks to the OpenAI chat completions API through go-openai.
type OpenAI struct {
	client *openai.Client
	opts   Options
}

// NewOpenAI creates a backend. Options left zero take the package defaults.
func NewOpenAI(opts Options) *OpenAI {
	opts = opts.withDefaults()

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}

	return &OpenAI{client: openai.NewClientWithConfig(cfg), opts: opts}
}

// Model returns the configured model name.
func (o *OpenAI) Model() string { return o.opts.Model }

// Complete implements Completer.
func (o *OpenAI) Complete(ctx context.Context, messages []session.Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.opts.Model,
		Messages:    msgs,
		MaxTokens:   o.opts.MaxTokens,
		Temperature: o.opts.Temperature,
	})
	if err != nil {
		return "", classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return "", Wrap(KindOther, errors.New("empty chat response"))
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAI(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Code.(string); ok && code == "invalid_api_key" {
			return Wrap(KindAuth, err)
		}
		return Wrap(KindFromStatus(apiErr.HTTPStatusCode), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return Wrap(KindFromStatus(reqErr.HTTPStatusCode), err)
	}
	return Wrap(KindOf(err), fmt.Errorf("chat completion: %w", err))
}
