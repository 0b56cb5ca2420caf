package lifecycle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestManager_RunNormal(t *testing.T) {
	m := NewManager(DefaultShutdownConfig(), testLogger())

	code := m.Run(func(ctx context.Context) error {
		return nil
	})

	if code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}

func TestManager_RunError(t *testing.T) {
	m := NewManager(DefaultShutdownConfig(), testLogger())

	code := m.Run(func(ctx context.Context) error {
		return fmt.Errorf("listen :8080: address in use")
	})

	if code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
}

func TestManager_ShutdownHooksRunInOrder(t *testing.T) {
	m := NewManager(DefaultShutdownConfig(), testLogger())

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"http", "ledger"} {
		m.OnShutdown(name, func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	m.Run(func(ctx context.Context) error {
		return nil
	})

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "http" || order[1] != "ledger" {
		t.Errorf("hooks ran in wrong order: %v", order)
	}
}

func TestManager_ShutdownHookError(t *testing.T) {
	m := NewManager(DefaultShutdownConfig(), testLogger())

	var secondRan bool
	m.OnShutdown("failing", func(ctx context.Context) error {
		return fmt.Errorf("hook failed")
	})
	m.OnShutdown("succeeding", func(ctx context.Context) error {
		secondRan = true
		return nil
	})

	m.Run(func(ctx context.Context) error {
		return nil
	})

	if !secondRan {
		t.Error("second hook should still run after first hook fails")
	}
}

func TestManager_StopCancelsContextAndRunsHooks(t *testing.T) {
	m := NewManager(ShutdownConfig{GracePeriod: time.Second, QuickPeriod: time.Second}, testLogger())

	hookRan := make(chan struct{})
	m.OnShutdown("http", func(ctx context.Context) error {
		close(hookRan)
		return nil
	})

	started := make(chan struct{})
	go func() {
		<-started
		m.Stop()
		m.Stop() // idempotent
	}()

	var ctxErr error
	code := m.Run(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		ctxErr = ctx.Err()
		return nil
	})

	if code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
	if ctxErr != context.Canceled {
		t.Errorf("expected canceled context, got %v", ctxErr)
	}
	select {
	case <-hookRan:
	default:
		t.Error("shutdown hook did not run")
	}
}

func TestManager_StopGracePeriodExceeded(t *testing.T) {
	m := NewManager(ShutdownConfig{GracePeriod: 20 * time.Millisecond, QuickPeriod: time.Second}, testLogger())

	release := make(chan struct{})
	defer close(release)

	m.Stop()
	code := m.Run(func(ctx context.Context) error {
		<-release
		return nil
	})

	if code != 1 {
		t.Errorf("expected exit code 1 when main ignores cancellation, got %d", code)
	}
}

func TestManager_Uptime(t *testing.T) {
	m := NewManager(DefaultShutdownConfig(), testLogger())

	time.Sleep(10 * time.Millisecond)
	if uptime := m.Uptime(); uptime < 10*time.Millisecond {
		t.Errorf("uptime too short: %v", uptime)
	}
}

func TestDefaultShutdownConfig(t *testing.T) {
	cfg := DefaultShutdownConfig()

	if cfg.GracePeriod != 10*time.Second {
		t.Errorf("grace period: %v", cfg.GracePeriod)
	}
	if cfg.QuickPeriod != 5*time.Second {
		t.Errorf("quick period: %v", cfg.QuickPeriod)
	}
}
