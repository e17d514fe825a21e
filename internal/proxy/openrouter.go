package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kalambet/fitbuddy/internal/llm"
	"github.com/kalambet/fitbuddy/internal/session"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "openai/gpt-4o-mini"
	maxErrorBody   = 4 << 10
)

// Client communicates with the OpenRouter API. It never retries; a failed
// call is returned to the caller classified as *llm.Error.
type Client struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	referer     string
	title       string
	model       string
	maxTokens   int
	temperature float32
}

// NewClient creates an OpenRouter client. Zero option fields take the llm
// package defaults; the model defaults to the OpenRouter name of gpt-4o-mini.
func NewClient(opts llm.Options) *Client {
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = llm.DefaultMaxTokens
	}
	if opts.Temperature <= 0 {
		opts.Temperature = llm.DefaultTemperature
	}
	if opts.Timeout <= 0 {
		opts.Timeout = llm.DefaultTimeout
	}
	baseURL := defaultBaseURL
	if opts.BaseURL != "" {
		baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	return &Client{
		apiKey:      opts.APIKey,
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		referer:     "https://github.com/kalambet/fitbuddy",
		title:       "Fit Buddy",
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Complete implements llm.Completer.
func (c *Client) Complete(ctx context.Context, messages []session.Message) (string, error) {
	req := ChatRequest{
		Model:       c.model,
		Messages:    make([]ChatMessage, len(messages)),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	for i, m := range messages {
		req.Messages[i] = ChatMessage{Role: string(m.Role), Content: m.Content}
	}

	resp, err := c.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", llm.Wrap(llm.KindOther, errors.New("empty chat response"))
	}
	return resp.Choices[0].Message.Content, nil
}

// statusError is returned for any non-200 upstream response.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("unexpected status %d", e.status)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

// Chat sends a non-streaming chat completion request.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, llm.Wrap(llm.KindOther, fmt.Errorf("marshaling request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, llm.Wrap(llm.KindOther, fmt.Errorf("creating request: %w", err))
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, llm.Wrap(llm.KindOf(err), fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, llm.Wrap(llm.KindFromStatus(resp.StatusCode), &statusError{
			status: resp.StatusCode,
			body:   strings.TrimSpace(string(respBody)),
		})
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, llm.Wrap(llm.KindOther, fmt.Errorf("decoding response: %w", err))
	}
	if out.Error != nil {
		kind := llm.KindFromStatus(out.Error.Code)
		return nil, llm.Wrap(kind, fmt.Errorf("upstream error %d: %s", out.Error.Code, out.Error.Message))
	}
	return &out, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", c.referer)
	req.Header.Set("X-Title", c.title)
}
