package openrouter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrorType classifies gateway errors.
type ErrorType int

const (
	ErrAuth               ErrorType = iota // HTTP 401
	ErrRateLimit                           // HTTP 429
	ErrProviderOverloaded                  // HTTP 502, 503, or open circuit
	ErrContextTooLong                      // HTTP 400 + context_length_exceeded
	ErrContentFiltered                     // HTTP 400 + content_filter
	ErrMalformedResponse                   // 2xx body that is not JSON
	ErrTimeout                             // request deadline exceeded
	ErrTransport                           // connection-level failure
	ErrUnknown                             // anything else
)

// String returns the human-readable name of the error type.
func (e ErrorType) String() string {
	switch e {
	case ErrAuth:
		return "auth_error"
	case ErrRateLimit:
		return "rate_limit"
	case ErrProviderOverloaded:
		return "provider_overloaded"
	case ErrContextTooLong:
		return "context_length_exceeded"
	case ErrContentFiltered:
		return "content_filter"
	case ErrMalformedResponse:
		return "malformed_response"
	case ErrTimeout:
		return "timeout"
	case ErrTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// User-facing messages for the auth and generic failure cases.
const (
	InvalidKeyMessage     = "Invalid API key. Please check your OpenRouter API key."
	GenericFailureMessage = "Failed to get response from OpenRouter API"
)

// ClassifiedError wraps a gateway error with its classification.
type ClassifiedError struct {
	Type       ErrorType
	StatusCode int    // 0 when no HTTP response was received
	Message    string // upstream-provided text when available
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("openrouter %s (HTTP %d): %s", e.Type, e.StatusCode, e.Message)
}

// IsAuth reports whether err is an invalid-credential error.
func IsAuth(err error) bool {
	var ce *ClassifiedError
	return errors.As(err, &ce) && ce.Type == ErrAuth
}

// UserMessage renders err for display: a fixed message for auth failures,
// the upstream diagnostic otherwise, and a generic fallback when empty.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ce *ClassifiedError
	if !errors.As(err, &ce) {
		return err.Error()
	}
	if ce.Type == ErrAuth {
		return InvalidKeyMessage
	}
	if strings.TrimSpace(ce.Message) == "" {
		return GenericFailureMessage
	}
	return ce.Message
}

// errorBody is the JSON error body returned by OpenRouter.
type errorBody struct {
	Error struct {
		Message string          `json:"message"`
		Type    string          `json:"type"`
		Code    json.RawMessage `json:"code"`
	} `json:"error"`
}

// classifyHTTPError classifies a non-2xx response.
func classifyHTTPError(resp *http.Response) *ClassifiedError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var errBody errorBody
	json.Unmarshal(body, &errBody) //nolint:errcheck // best-effort parse

	msg := errBody.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	ce := &ClassifiedError{StatusCode: resp.StatusCode, Message: msg}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		ce.Type = ErrAuth
	case http.StatusTooManyRequests:
		ce.Type = ErrRateLimit
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		ce.Type = ErrProviderOverloaded
	case http.StatusBadRequest:
		ce.Type = classifyBadRequest(msg, errBody)
	default:
		ce.Type = ErrUnknown
	}
	return ce
}

// classifyBadRequest looks inside a 400 body for the well-known causes.
func classifyBadRequest(msg string, errBody errorBody) ErrorType {
	combined := strings.ToLower(string(errBody.Error.Code) + " " + errBody.Error.Type + " " + msg)

	if strings.Contains(combined, "context_length_exceeded") ||
		strings.Contains(combined, "maximum context length") {
		return ErrContextTooLong
	}
	if strings.Contains(combined, "content_filter") ||
		strings.Contains(combined, "flagged") {
		return ErrContentFiltered
	}
	return ErrUnknown
}
