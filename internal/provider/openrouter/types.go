// Package openrouter is the HTTP client for the OpenRouter chat completions
// endpoint. The API key is supplied per call and never stored on the client.
package openrouter

// Request defaults used by the comparison UI.
const (
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7
)

// Message is a single message in a chat conversation, in the
// OpenAI-compatible format OpenRouter accepts.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request body for chat completions.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// NewUserRequest builds the single-turn request sent for every prompt:
// one user message, max_tokens 1000, temperature 0.7.
func NewUserRequest(model, prompt string) ChatRequest {
	maxTokens := DefaultMaxTokens
	temperature := DefaultTemperature
	return ChatRequest{
		Model:       model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}
}

// ChatResponse is the subset of the completion response we read.
type ChatResponse struct {
	ID      string      `json:"id"`
	Model   string      `json:"model"`
	Choices []Choice    `json:"choices"`
	Usage   *TokenUsage `json:"usage,omitempty"` // nil when the provider sent no usage
}

// Choice represents one completion choice from the model.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// TokenUsage tracks token consumption for a single call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TextContent extracts the text content from the first choice, if any.
func (r *ChatResponse) TextContent() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// TotalTokens returns the provider-reported total, or nil without usage.
func (r *ChatResponse) TotalTokens() *int {
	if r == nil || r.Usage == nil {
		return nil
	}
	n := r.Usage.TotalTokens
	return &n
}
