package proxy

// ChatMessage is one OpenAI-compatible chat message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the OpenAI-compatible chat completion request.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
}

// ChatResponse is the subset of the completion response the client reads.
// OpenRouter may report provider failures in Error with a 200 status.
type ChatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model,omitempty"`
	Choices []ChatChoice `json:"choices"`
	Error   *ErrorBody   `json:"error,omitempty"`
}

type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// ErrorBody is OpenRouter's error envelope.
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
