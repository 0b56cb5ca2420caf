package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	configDir  = ".promptlab"
	configFile = "config.json"
	localFile  = "promptlab.json"
)

// envVarPattern matches ${VAR_NAME} references in string values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Default returns the settings used when no file is present.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Addr: ":3000"},
		Gateway: GatewayConfig{BaseURL: "https://openrouter.ai/api/v1", TimeoutSeconds: 120, Title: "LLM API Selection Assistant"},
		History: HistoryConfig{Capacity: 10},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads the settings file at path. With an empty path it tries
// ./promptlab.json, then ~/.promptlab/config.json, and falls back to
// defaults when neither exists. An explicit path must exist.
func Load(path string) (*Config, error) {
	if path != "" {
		return loadFile(path)
	}

	candidates := []string{localFile}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, configDir, configFile))
	}
	for _, p := range candidates {
		cfg, err := loadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return cfg, err
	}
	return Default(), nil
}

func loadFile(path string) (*Config, error) {
	cfg := Default()
	if err := loadJSON(path, cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// loadJSON reads a JSON file, resolves ${VAR} references, and unmarshals it
// into dest.
func loadJSON(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	resolved := resolveEnvVars(string(data))

	if err := json.Unmarshal([]byte(resolved), dest); err != nil {
		return fmt.Errorf("parse JSON: %w", err)
	}

	return nil
}

// resolveEnvVars replaces all ${VAR_NAME} patterns in s with the
// corresponding environment variable values. Unset variables resolve to "".
func resolveEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills zero values a file may have cleared.
func applyDefaults(cfg *Config) {
	d := Default()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = d.Server.Addr
	}
	if cfg.Gateway.BaseURL == "" {
		cfg.Gateway.BaseURL = d.Gateway.BaseURL
	}
	if cfg.Gateway.TimeoutSeconds == 0 {
		cfg.Gateway.TimeoutSeconds = d.Gateway.TimeoutSeconds
	}
	if cfg.History.Capacity == 0 {
		cfg.History.Capacity = d.History.Capacity
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
}

// Validate checks value ranges and the model list.
func (c *Config) Validate() error {
	var errs []string

	if u, err := url.Parse(c.Gateway.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("gateway.baseURL %q is not an absolute URL", c.Gateway.BaseURL))
	}
	if c.Gateway.TimeoutSeconds < 0 {
		errs = append(errs, "gateway.timeoutSeconds must not be negative")
	}
	if c.History.Capacity < 0 {
		errs = append(errs, "history.capacity must not be negative")
	}
	if c.Limits.MaxCallsPerHour < 0 {
		errs = append(errs, "limits.maxCallsPerHour must not be negative")
	}
	if c.Limits.MaxConcurrency < 0 {
		errs = append(errs, "limits.maxConcurrency must not be negative")
	}
	for i, p := range c.Log.RedactPatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Sprintf("log.redactPatterns[%d]: %v", i, err))
		}
	}

	seen := make(map[string]bool)
	for i, m := range c.Models {
		switch {
		case m.ID == "":
			errs = append(errs, fmt.Sprintf("models[%d].id is required", i))
		case seen[m.ID]:
			errs = append(errs, fmt.Sprintf("models[%d]: duplicate id %q", i, m.ID))
		}
		seen[m.ID] = true
		if m.PricePer1kTokens < 0 {
			errs = append(errs, fmt.Sprintf("models[%d].pricePer1kTokens must not be negative", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid fields:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
