package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/leandrotocalini/promptlab/internal/dispatch"
	"github.com/leandrotocalini/promptlab/internal/ledger"
	"github.com/leandrotocalini/promptlab/internal/provider/openrouter"
)

// Error bodies of the /api/chat contract.
const (
	msgPromptRequired = "Prompt is required"
	msgKeyRequired    = "API key is required"
	msgInternal       = "Internal server error"
	msgRateLimited    = "Rate limit exceeded. Try again later."
)

const maxRequestBody = 1 << 20

type chatRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
	APIKey string `json:"apiKey"`
}

type chatResponse struct {
	Response string                 `json:"response"`
	Tokens   *int                   `json:"tokens"`
	Latency  int64                  `json:"latency"`
	Model    string                 `json:"model"`
	Usage    *openrouter.TokenUsage `json:"usage"`
	Cost     float64                `json:"cost"`
}

type compareRequest struct {
	Prompt string   `json:"prompt"`
	Models []string `json:"models"`
	APIKey string   `json:"apiKey"`
}

type compareResponse struct {
	Results []dispatch.Result `json:"results"`
	Summary dispatch.Summary  `json:"summary"`
}

// handleChat sends one prompt to one model.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, msgPromptRequired)
		return
	}
	if req.APIKey == "" {
		writeError(w, http.StatusBadRequest, msgKeyRequired)
		return
	}

	results, err := s.dispatcher.Dispatch(r.Context(), dispatch.Request{
		Prompt:     req.Prompt,
		ModelIDs:   []string{req.Model},
		Credential: req.APIKey,
	})
	if err != nil {
		writeValidationError(w, err)
		return
	}

	res, ok := results[req.Model]
	if !ok {
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if res.Failed() {
		status, msg := chatFailure(res)
		writeError(w, status, msg)
		return
	}

	out := chatResponse{
		Response: res.ResponseText,
		Latency:  *res.LatencyMs,
		Model:    req.Model,
		Usage:    res.Usage,
		Cost:     *res.EstimatedCost,
	}
	if res.Usage != nil {
		tokens := res.Usage.TotalTokens
		out.Tokens = &tokens
	}
	writeJSON(w, http.StatusOK, out)
}

// chatFailure maps a failed result onto the /api/chat status codes:
// 401 for a rejected key, the upstream status for other HTTP failures,
// 500 for everything else.
func chatFailure(res dispatch.Result) (int, string) {
	switch {
	case res.ErrorKind == dispatch.ErrorKindCredential:
		return http.StatusUnauthorized, openrouter.InvalidKeyMessage
	case res.ErrorKind == dispatch.ErrorKindTransport && res.UpstreamStatus >= 400:
		return res.UpstreamStatus, openrouter.GenericFailureMessage
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// handleCompare fans one prompt out to several models.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	results, err := s.dispatcher.Dispatch(r.Context(), req.toDispatch())
	if err != nil {
		writeValidationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, compareResponse{
		Results: dispatch.Ordered(results, req.Models),
		Summary: dispatch.Summarize(results),
	})
}

func (c compareRequest) toDispatch() dispatch.Request {
	return dispatch.Request{Prompt: c.Prompt, ModelIDs: c.Models, Credential: c.APIKey}
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.List())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.history.List())
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.history.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		writeError(w, http.StatusNotFound, "usage ledger disabled")
		return
	}
	totals, err := s.usage.Totals(r.Context())
	if err != nil {
		s.logger.Error("usage totals failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if totals == nil {
		totals = []ledger.ModelTotals{}
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	type jsonEntry struct {
		Time    string `json:"time"`
		Level   string `json:"level"`
		Message string `json:"message"`
	}

	out := []jsonEntry{}
	if s.logs != nil {
		for _, e := range s.logs.Entries() {
			out = append(out, jsonEntry{
				Time:    e.Time.Format("15:04:05"),
				Level:   e.Level,
				Message: e.Message,
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"models":  s.catalog.Len(),
		"history": s.history.Len(),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var ve *dispatch.ValidationError
	if !errors.As(err, &ve) {
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	switch ve.Field {
	case "prompt":
		writeError(w, http.StatusBadRequest, msgPromptRequired)
	case "credential":
		writeError(w, http.StatusBadRequest, msgKeyRequired)
	default:
		writeError(w, http.StatusBadRequest, ve.Reason)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
