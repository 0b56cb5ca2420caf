package main

import (
	"fmt"
	"log/slog"

	"github.com/leandrotocalini/promptlab/internal/config"
	"github.com/leandrotocalini/promptlab/internal/dispatch"
	"github.com/leandrotocalini/promptlab/internal/history"
	"github.com/leandrotocalini/promptlab/internal/ledger"
	"github.com/leandrotocalini/promptlab/internal/logging"
	"github.com/leandrotocalini/promptlab/internal/provider/openrouter"
	"github.com/leandrotocalini/promptlab/internal/registry"
)

// app holds the wired components shared by serve and compare.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	logs    *logging.Ring
	catalog *registry.Registry
	history *history.Store
	ledger  *ledger.Ledger // nil when disabled
	orch    *dispatch.Orchestrator
}

// loadConfig reads the config file and applies the --log-level override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp wires the orchestrator and its collaborators from cfg.
func newApp(cfg *config.Config) (*app, error) {
	logger, ring, err := logging.Setup(cfg.Log.Level, cfg.Log.RedactPatterns...)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		logs:    ring,
		catalog: buildCatalog(cfg.Models),
		history: history.New(cfg.History.Capacity),
	}

	client := openrouter.NewClient(
		openrouter.WithBaseURL(cfg.Gateway.BaseURL),
		openrouter.WithTimeout(cfg.Gateway.Timeout()),
		openrouter.WithReferer(cfg.Gateway.Referer),
		openrouter.WithTitle(cfg.Gateway.Title),
		openrouter.WithBreaker(cfg.Gateway.BreakerEnabled()),
		openrouter.WithLogger(logger),
	)

	opts := []dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithCallTimeout(cfg.Gateway.Timeout()),
		dispatch.WithMaxConcurrency(cfg.Limits.MaxConcurrency),
	}
	if cfg.Ledger.Path != "" {
		l, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("open usage ledger: %w", err)
		}
		a.ledger = l
		opts = append(opts, dispatch.WithRecorder(l))
	}

	a.orch = dispatch.New(a.catalog, client, a.history, opts...)
	return a, nil
}

// Close releases the ledger, if any.
func (a *app) Close() error {
	if a.ledger == nil {
		return nil
	}
	return a.ledger.Close()
}

// buildCatalog returns the configured models, or the built-in catalog when
// none are configured.
func buildCatalog(models []config.ModelConfig) *registry.Registry {
	if len(models) == 0 {
		return registry.Default()
	}
	descs := make([]registry.ModelDescriptor, 0, len(models))
	for _, m := range models {
		descs = append(descs, registry.ModelDescriptor{
			ID:               m.ID,
			Name:             m.Name,
			Description:      m.Description,
			PricePer1kTokens: m.PricePer1kTokens,
		})
	}
	return registry.New(descs...)
}
