package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/leandrotocalini/promptlab/internal/history"
	"github.com/leandrotocalini/promptlab/internal/metrics"
	"github.com/leandrotocalini/promptlab/internal/provider/openrouter"
)

// Orchestrator runs dispatches. It keeps no per-dispatch state; the only
// thing it mutates is the injected history.
type Orchestrator struct {
	catalog  Catalog
	gateway  Gateway
	history  HistoryAppender
	recorder Recorder
	logger   *slog.Logger
	clock    Clock

	callTimeout    time.Duration
	maxConcurrency int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithClock overrides the clock used for latency (for testing).
func WithClock(c Clock) Option {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

// WithRecorder sends every settled result to r.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithCallTimeout bounds each upstream call. Zero leaves it to the transport.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.callTimeout = d
	}
}

// WithMaxConcurrency caps in-flight calls per dispatch. Zero means one
// goroutine per model.
func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) {
		o.maxConcurrency = n
	}
}

// New creates an orchestrator. hist may be nil to skip history.
func New(catalog Catalog, gateway Gateway, hist HistoryAppender, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalog: catalog,
		gateway: gateway,
		history: hist,
		logger:  slog.Default(),
		clock:   realClock{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Validate checks req against the catalog. The returned prompt is trimmed.
func (o *Orchestrator) Validate(req Request) (string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", &ValidationError{Field: "prompt", Reason: "prompt is required"}
	}
	if req.Credential == "" {
		return "", &ValidationError{Field: "credential", Reason: "API key is required"}
	}
	if len(req.ModelIDs) == 0 {
		return "", &ValidationError{Field: "models", Reason: "at least one model is required"}
	}

	seen := make(map[string]bool, len(req.ModelIDs))
	var unknown []string
	for _, id := range req.ModelIDs {
		if seen[id] {
			return "", &ValidationError{Field: "models", Reason: fmt.Sprintf("duplicate model %q", id)}
		}
		seen[id] = true
		if _, ok := o.catalog.Get(id); !ok {
			unknown = append(unknown, fmt.Sprintf("%q", id))
		}
	}
	if len(unknown) > 0 {
		return "", &ValidationError{Field: "models", Reason: "unknown model " + strings.Join(unknown, ", ")}
	}
	return prompt, nil
}

// Dispatch sends the prompt to every requested model and returns one
// settled result per model ID. It returns only after all calls settle.
// The only error is *ValidationError, returned before any call is made.
func (o *Orchestrator) Dispatch(ctx context.Context, req Request) (map[string]Result, error) {
	return o.DispatchObserved(ctx, req, nil)
}

// DispatchObserved is Dispatch with an observer for live progress.
//
// Upstream calls do not inherit ctx cancellation: if the caller goes away,
// in-flight calls still run to completion or time out in the transport, and
// their results are simply dropped.
func (o *Orchestrator) DispatchObserved(ctx context.Context, req Request, observe Observer) (map[string]Result, error) {
	prompt, err := o.Validate(req)
	if err != nil {
		return nil, err
	}

	var obsMu sync.Mutex
	notify := func(r Result) {
		if observe == nil {
			return
		}
		obsMu.Lock()
		defer obsMu.Unlock()
		observe(r)
	}

	for _, id := range req.ModelIDs {
		notify(Result{ModelID: id, Status: StatusPending})
	}

	callCtx := context.WithoutCancel(ctx)
	promptLength := utf8.RuneCountInString(prompt)
	results := make([]Result, len(req.ModelIDs))

	var g errgroup.Group
	if o.maxConcurrency > 0 {
		g.SetLimit(o.maxConcurrency)
	}

	for i, id := range req.ModelIDs {
		g.Go(func() error {
			results[i] = o.call(callCtx, id, prompt, promptLength, req.Credential)
			notify(results[i])
			return nil // a failed model must not cancel the others
		})
	}
	g.Wait()

	// History and ledger are written after the join, in request order.
	now := o.clock.Now()
	out := make(map[string]Result, len(results))
	for _, r := range results {
		out[r.ModelID] = r
		if r.Succeeded() && o.history != nil {
			o.history.Append(history.NewEntry(prompt, r.ModelID, r.ResponseText,
				*r.LatencyMs, *r.TokenCount, *r.EstimatedCost, now))
		}
		if o.recorder != nil {
			if err := o.recorder.Record(callCtx, r); err != nil {
				o.logger.Warn("failed to record usage", "model", r.ModelID, "error", err)
			}
		}
	}

	o.logger.Info("dispatch settled",
		"models", len(results),
		"succeeded", countStatus(results, StatusSucceeded),
		"failed", countStatus(results, StatusFailed),
	)
	return out, nil
}

// call performs one model call and turns its outcome into a settled Result.
func (o *Orchestrator) call(ctx context.Context, modelID, prompt string, promptLength int, credential string) (res Result) {
	if o.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
	}

	start := o.clock.Now()
	defer func() {
		if p := recover(); p != nil {
			o.logger.Error("model call panicked", "model", modelID, "panic", p)
			res = failed(modelID, o.since(start), ErrorKindInternal, 0, "internal error")
		}
	}()

	resp, err := o.gateway.ChatCompletion(ctx, credential, openrouter.NewUserRequest(modelID, prompt))
	latency := o.since(start)

	if err != nil {
		kind, status := classify(err)
		msg := openrouter.UserMessage(err)
		o.logger.Warn("model call failed",
			"model", modelID,
			"kind", string(kind),
			"latency_ms", latency,
			"error", msg,
		)
		return failed(modelID, latency, kind, status, msg)
	}

	text := resp.TextContent()
	if text == "" {
		text = NoResponsePlaceholder
	}
	tokens, cost := metrics.Compute(o.catalog, modelID, resp.TotalTokens(), promptLength)

	o.logger.Info("model call succeeded",
		"model", modelID,
		"latency_ms", latency,
		"tokens", tokens,
	)

	return Result{
		ModelID:       modelID,
		Status:        StatusSucceeded,
		ResponseText:  text,
		LatencyMs:     &latency,
		TokenCount:    &tokens,
		EstimatedCost: &cost,
		Usage:         resp.Usage,
	}
}

func (o *Orchestrator) since(start time.Time) int64 {
	ms := o.clock.Now().Sub(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

func failed(modelID string, latency int64, kind ErrorKind, status int, msg string) Result {
	return Result{
		ModelID:        modelID,
		Status:         StatusFailed,
		LatencyMs:      &latency,
		ErrorMessage:   msg,
		ErrorKind:      kind,
		UpstreamStatus: status,
	}
}

// classify maps a gateway error to an ErrorKind and upstream HTTP status.
func classify(err error) (ErrorKind, int) {
	var ce *openrouter.ClassifiedError
	if !errors.As(err, &ce) {
		return ErrorKindTransport, 0
	}
	switch ce.Type {
	case openrouter.ErrAuth:
		return ErrorKindCredential, ce.StatusCode
	case openrouter.ErrMalformedResponse:
		return ErrorKindMalformed, ce.StatusCode
	default:
		return ErrorKindTransport, ce.StatusCode
	}
}

func countStatus(results []Result, s Status) int {
	n := 0
	for _, r := range results {
		if r.Status == s {
			n++
		}
	}
	return n
}

// Summary aggregates a dispatch for display.
type Summary struct {
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	TotalTokens int     `json:"totalTokens"`
	TotalCost   float64 `json:"totalCost"`
	// AllCredentialErrors is true when every model rejected the key; the UI
	// should ask for it again.
	AllCredentialErrors bool `json:"allCredentialErrors"`
}

// Summarize totals a dispatch's results.
func Summarize(results map[string]Result) Summary {
	var s Summary
	credentialFailures := 0
	for _, r := range results {
		switch r.Status {
		case StatusSucceeded:
			s.Succeeded++
			s.TotalTokens += *r.TokenCount
			s.TotalCost += *r.EstimatedCost
		case StatusFailed:
			s.Failed++
			if r.ErrorKind == ErrorKindCredential {
				credentialFailures++
			}
		}
	}
	s.AllCredentialErrors = len(results) > 0 && credentialFailures == len(results)
	return s
}

// Ordered returns results in the order of ids. IDs without a result are
// skipped. With nil ids, results are sorted by model ID.
func Ordered(results map[string]Result, ids []string) []Result {
	if ids == nil {
		for id := range results {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	}
	out := make([]Result, 0, len(ids))
	for _, id := range ids {
		if r, ok := results[id]; ok {
			out = append(out, r)
		}
	}
	return out
}
