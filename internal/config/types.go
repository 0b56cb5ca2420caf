// Package config loads the PromptLab settings file. The file never holds
// an API key: credentials are supplied per request.
package config

import "time"

// Config is the full settings tree.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Gateway GatewayConfig `json:"gateway"`
	History HistoryConfig `json:"history"`
	Limits  LimitsConfig  `json:"limits"`
	Ledger  LedgerConfig  `json:"ledger"`
	Log     LogConfig     `json:"log"`
	Models  []ModelConfig `json:"models,omitempty"` // replaces the built-in catalog when set
}

type ServerConfig struct {
	Addr string `json:"addr"`
}

// GatewayConfig controls the upstream completion endpoint.
type GatewayConfig struct {
	BaseURL        string `json:"baseURL"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	Referer        string `json:"referer,omitempty"`
	Title          string `json:"title,omitempty"`
	CircuitBreaker *bool  `json:"circuitBreaker,omitempty"`
}

// Timeout returns the per-call timeout.
func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// BreakerEnabled reports whether per-model circuit breakers are on.
func (g GatewayConfig) BreakerEnabled() bool {
	return g.CircuitBreaker == nil || *g.CircuitBreaker
}

type HistoryConfig struct {
	Capacity int `json:"capacity"`
}

// LimitsConfig controls concurrency and rate limits.
type LimitsConfig struct {
	MaxCallsPerHour int `json:"maxCallsPerHour,omitempty"` // 0 = unlimited
	MaxConcurrency  int `json:"maxConcurrency,omitempty"`  // 0 = one goroutine per model
}

// LedgerConfig points at the SQLite usage ledger. Empty path disables it.
type LedgerConfig struct {
	Path string `json:"path,omitempty"`
}

type LogConfig struct {
	Level string `json:"level"`
	// RedactPatterns are extra regular expressions scrubbed from log lines,
	// on top of the built-in API key shapes.
	RedactPatterns []string `json:"redactPatterns,omitempty"`
}

// ModelConfig is one catalog entry from the settings file.
type ModelConfig struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description,omitempty"`
	PricePer1kTokens float64 `json:"pricePer1kTokens"`
}
