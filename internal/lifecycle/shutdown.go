// Package lifecycle runs the promptlab server process: it intercepts
// SIGINT/SIGTERM, cancels the root context, and runs registered shutdown
// hooks (HTTP drain, ledger close) within a grace period.
package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownConfig configures the shutdown behavior.
type ShutdownConfig struct {
	GracePeriod time.Duration // deadline passed to hooks after a signal
	QuickPeriod time.Duration // deadline passed to hooks on normal exit
}

// DefaultShutdownConfig returns the serve command's defaults.
func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{
		GracePeriod: 10 * time.Second,
		QuickPeriod: 5 * time.Second,
	}
}

// ShutdownHook is called during shutdown. Name is for logging.
type ShutdownHook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Manager coordinates shutdown for the server process.
type Manager struct {
	config  ShutdownConfig
	logger  *slog.Logger
	started time.Time
	stopCh  chan struct{}

	mu       sync.Mutex
	cancel   context.CancelFunc
	hooks    []ShutdownHook
	shutdown bool
	stopOnce sync.Once
}

// NewManager creates a lifecycle manager.
func NewManager(config ShutdownConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		config:  config,
		logger:  logger,
		started: time.Now(),
		stopCh:  make(chan struct{}),
	}
}

// OnShutdown registers a hook. Hooks run in registration order.
func (m *Manager) OnShutdown(name string, fn func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, ShutdownHook{Name: name, Fn: fn})
}

// Stop triggers a graceful shutdown as if a signal had arrived.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Run installs signal handlers, runs mainFn, and handles shutdown.
// It returns the process exit code.
func (m *Manager) Run(mainFn func(ctx context.Context) error) int {
	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- mainFn(ctx)
	}()

	select {
	case sig := <-sigCh:
		m.logger.Info("received signal, shutting down",
			"signal", sig.String(),
			"uptime", m.Uptime().Round(time.Second).String(),
		)
		return m.gracefulShutdown(errCh)

	case <-m.stopCh:
		m.logger.Info("shutdown requested", "uptime", m.Uptime().Round(time.Second).String())
		return m.gracefulShutdown(errCh)

	case err := <-errCh:
		m.runHooks(m.config.QuickPeriod)
		if err != nil {
			m.logger.Error("server exited", "error", err)
			return 1
		}
		return 0
	}
}

// gracefulShutdown cancels the root context, runs hooks under the grace
// period, and waits for mainFn to return.
func (m *Manager) gracefulShutdown(errCh <-chan error) int {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return 1
	}
	m.shutdown = true
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.runHooks(m.config.GracePeriod)

	select {
	case <-errCh:
	case <-time.After(m.config.GracePeriod):
		m.logger.Warn("server did not stop within grace period")
		return 1
	}

	m.logger.Info("shutdown complete", "uptime", m.Uptime().Round(time.Second).String())
	return 0
}

func (m *Manager) runHooks(timeout time.Duration) {
	m.mu.Lock()
	hooks := make([]ShutdownHook, len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, hook := range hooks {
		m.logger.Debug("running shutdown hook", "name", hook.Name)
		if err := hook.Fn(ctx); err != nil {
			m.logger.Error("shutdown hook failed", "name", hook.Name, "error", err)
		}
	}
}

// Uptime returns how long the manager has been running.
func (m *Manager) Uptime() time.Duration {
	return time.Since(m.started)
}
