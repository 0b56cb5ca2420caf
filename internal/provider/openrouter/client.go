package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 120 * time.Second
	defaultTitle   = "LLM API Selection Assistant"

	maxResponseBody = 8 << 20
	maxErrorBody    = 64 << 10
)

// Client is an HTTP client for chat completions. It holds no credential:
// the API key travels with each call. Failures are isolated per model by
// circuit breakers (sony/gobreaker); there are no retries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	referer    string
	title      string
	logger     *slog.Logger
	useBreaker bool

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*ChatResponse]
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithBaseURL overrides the default OpenRouter base URL.
func WithBaseURL(url string) Option {
	return func(cl *Client) {
		cl.baseURL = strings.TrimRight(url, "/")
	}
}

// WithTimeout sets the transport-level timeout for a single call.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient.Timeout = d
		}
	}
}

// WithReferer sets the HTTP-Referer header OpenRouter uses for app attribution.
func WithReferer(referer string) Option {
	return func(cl *Client) {
		cl.referer = referer
	}
}

// WithTitle sets the X-Title header.
func WithTitle(title string) Option {
	return func(cl *Client) {
		cl.title = title
	}
}

// WithBreaker turns per-model circuit breaking on or off.
func WithBreaker(enabled bool) Option {
	return func(cl *Client) {
		cl.useBreaker = enabled
	}
}

// WithLogger sets a structured logger for the client.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// NewClient creates a client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    DefaultBaseURL,
		title:      defaultTitle,
		logger:     slog.Default(),
		useBreaker: true,
		breakers:   make(map[string]*gobreaker.CircuitBreaker[*ChatResponse]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChatCompletion makes a single chat completion request using apiKey as
// the bearer credential.
func (c *Client) ChatCompletion(ctx context.Context, apiKey string, req ChatRequest) (*ChatResponse, error) {
	if !c.useBreaker {
		return c.doRequest(ctx, apiKey, req)
	}

	cb := c.getOrCreateBreaker(req.Model)
	resp, err := cb.Execute(func() (*ChatResponse, error) {
		return c.doRequest(ctx, apiKey, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &ClassifiedError{
				Type:    ErrProviderOverloaded,
				Message: fmt.Sprintf("model %s is temporarily unavailable (circuit open)", req.Model),
			}
		}
		return nil, err
	}
	return resp, nil
}

// doRequest performs one HTTP round trip and parses the response.
func (c *Client) doRequest(ctx context.Context, apiKey string, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	if c.referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		httpReq.Header.Set("X-Title", c.title)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, &ClassifiedError{Type: ErrTimeout, Message: "request timed out"}
		}
		return nil, &ClassifiedError{
			Type:    ErrTransport,
			Message: scrub(err.Error(), apiKey),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ce := classifyHTTPError(resp)
		ce.Message = scrub(ce.Message, apiKey)
		c.logger.Warn("openrouter request failed",
			"model", req.Model,
			"status", resp.StatusCode,
			"error_type", ce.Type.String(),
		)
		return nil, ce
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &ClassifiedError{
			Type:       ErrTransport,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("read response body: %v", err),
		}
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, &ClassifiedError{
			Type:       ErrMalformedResponse,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("parse response JSON: %v", err),
		}
	}

	return &chatResp, nil
}

// getOrCreateBreaker returns the circuit breaker for the given model,
// creating one if it doesn't exist.
func (c *Client) getOrCreateBreaker(model string) *gobreaker.CircuitBreaker[*ChatResponse] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[model]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker[*ChatResponse](gobreaker.Settings{
		Name:        "openrouter-" + model,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Info("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Caller-side problems say nothing about the provider's health.
			var ce *ClassifiedError
			if !errors.As(err, &ce) {
				return false
			}
			switch {
			case ce.Type == ErrAuth, ce.Type == ErrContentFiltered, ce.Type == ErrContextTooLong:
				return true
			case ce.StatusCode == http.StatusForbidden:
				return true
			default:
				return false
			}
		},
	})

	c.breakers[model] = cb
	return cb
}

// scrub removes the credential from text that may end up in errors or logs.
func scrub(text, apiKey string) string {
	if apiKey == "" {
		return text
	}
	return strings.ReplaceAll(text, apiKey, "[REDACTED]")
}
