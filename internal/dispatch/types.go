// Package dispatch fans one prompt out to several models concurrently,
// waits for every call to settle, and derives per-call latency, token and
// cost metrics. Per-model failures stay inside the returned results; only
// an invalid request is returned as an error.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/leandrotocalini/promptlab/internal/history"
	"github.com/leandrotocalini/promptlab/internal/provider/openrouter"
	"github.com/leandrotocalini/promptlab/internal/registry"
)

// NoResponsePlaceholder replaces the completion text when a successful
// gateway reply carries none.
const NoResponsePlaceholder = "No response received"

// Status is the lifecycle state of one model call.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ErrorKind says why a call failed.
type ErrorKind string

const (
	ErrorKindCredential ErrorKind = "credential" // gateway rejected the API key
	ErrorKindTransport  ErrorKind = "transport"  // network failure or non-2xx reply
	ErrorKindMalformed  ErrorKind = "malformed"  // 2xx reply that could not be parsed
	ErrorKindInternal   ErrorKind = "internal"   // the call panicked
)

// Request is one user submission. It is not retained after Dispatch returns.
type Request struct {
	Prompt     string
	ModelIDs   []string
	Credential string
}

// Result is the outcome of one model call. Optional fields are pointers:
// LatencyMs is set once settled, TokenCount and EstimatedCost only on
// success, ErrorMessage only on failure.
type Result struct {
	ModelID        string                 `json:"model"`
	Status         Status                 `json:"status"`
	ResponseText   string                 `json:"response,omitempty"`
	LatencyMs      *int64                 `json:"latencyMs,omitempty"`
	TokenCount     *int                   `json:"tokens,omitempty"`
	EstimatedCost  *float64               `json:"cost,omitempty"`
	Usage          *openrouter.TokenUsage `json:"usage,omitempty"`
	ErrorMessage   string                 `json:"error,omitempty"`
	ErrorKind      ErrorKind              `json:"errorKind,omitempty"`
	UpstreamStatus int                    `json:"upstreamStatus,omitempty"`
}

// Succeeded reports whether the call completed with a response.
func (r Result) Succeeded() bool { return r.Status == StatusSucceeded }

// Failed reports whether the call ended in an error.
func (r Result) Failed() bool { return r.Status == StatusFailed }

// Settled reports whether the call reached a terminal state.
func (r Result) Settled() bool { return r.Succeeded() || r.Failed() }

// ValidationError rejects a request before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

// Gateway makes chat completion calls. Satisfied by *openrouter.Client.
type Gateway interface {
	ChatCompletion(ctx context.Context, apiKey string, req openrouter.ChatRequest) (*openrouter.ChatResponse, error)
}

// Catalog resolves model IDs and prices. Satisfied by *registry.Registry.
type Catalog interface {
	Get(id string) (registry.ModelDescriptor, bool)
	Price(id string) (float64, bool)
}

// HistoryAppender receives one entry per successful call. Satisfied by
// *history.Store.
type HistoryAppender interface {
	Append(e history.Entry)
}

// Recorder receives every settled result for usage telemetry.
type Recorder interface {
	Record(ctx context.Context, r Result) error
}

// Observer is notified as results change state: once per model with a
// pending result when the dispatch starts, then once per model as it
// settles, in settlement order. Calls are serialized.
type Observer func(Result)

// Clock allows injecting time for testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
