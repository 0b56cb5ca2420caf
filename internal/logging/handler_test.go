package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(level slog.Level) (*slog.Logger, *bytes.Buffer, *Ring) {
	var buf bytes.Buffer
	noColor := false
	ring := NewRing(3)
	h := NewHandler(&buf, Options{Level: level, Color: &noColor, Ring: ring})
	return slog.New(h), &buf, ring
}

func TestHandler_PlainOutput(t *testing.T) {
	logger, buf, _ := newTestLogger(slog.LevelInfo)
	logger.Info("model call succeeded", "model", "m1", "latency_ms", 120)

	out := buf.String()
	if !strings.Contains(out, "INFO model call succeeded model=m1 latency_ms=120") {
		t.Errorf("unexpected output %q", out)
	}
	if strings.Contains(out, "\033[") {
		t.Error("plain output should have no ANSI codes")
	}
}

func TestHandler_LevelFilter(t *testing.T) {
	logger, buf, ring := newTestLogger(slog.LevelWarn)
	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	if len(ring.Entries()) != 1 {
		t.Errorf("expected 1 ring entry, got %d", len(ring.Entries()))
	}
}

func TestHandler_RingBounded(t *testing.T) {
	logger, _, ring := newTestLogger(slog.LevelInfo)
	for _, m := range []string{"a", "b", "c", "d"} {
		logger.Info(m)
	}
	entries := ring.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Message != "b" || entries[2].Message != "d" {
		t.Errorf("unexpected ring contents %+v", entries)
	}

	entries[0].Message = "mutated"
	if ring.Entries()[0].Message != "b" {
		t.Error("ring mutated through Entries()")
	}
}

func TestHandler_RedactsCredentials(t *testing.T) {
	logger, buf, ring := newTestLogger(slog.LevelInfo)
	logger.Info("request", "auth", "Bearer sk-or-v1-0123456789abcdef0123")

	if strings.Contains(buf.String(), "0123456789abcdef") {
		t.Errorf("credential leaked: %q", buf.String())
	}
	if strings.Contains(ring.Entries()[0].Message, "0123456789abcdef") {
		t.Error("credential leaked into ring")
	}
}

func TestHandler_WithAttrsAndGroup(t *testing.T) {
	logger, buf, _ := newTestLogger(slog.LevelInfo)
	logger.With("component", "server").WithGroup("req").Info("handled", "status", 200)

	out := buf.String()
	if !strings.Contains(out, "component=server") || !strings.Contains(out, "req.status=200") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError,
		"": slog.LevelInfo, "bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_ExtraRedactPatterns(t *testing.T) {
	var buf bytes.Buffer
	logger, ring, err := newLogger(&buf, "info", []string{`tenant-\d+`})
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info("dispatch settled", "owner", "tenant-4411", "key", "sk-or-v1-abcdefabcdefabcdef1234")

	out := buf.String()
	if strings.Contains(out, "tenant-4411") || strings.Contains(out, "abcdefabcdefabcdef1234") {
		t.Errorf("sensitive text leaked: %q", out)
	}
	if got := ring.Entries(); len(got) != 1 || !strings.Contains(got[0].Message, "owner=[REDACTED]") {
		t.Errorf("ring entries: %+v", got)
	}
}

func TestNewLogger_InvalidPattern(t *testing.T) {
	if _, _, err := newLogger(&bytes.Buffer{}, "info", []string{`[`}); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestHandler_CleanLineUnchanged(t *testing.T) {
	logger, buf, _ := newTestLogger(slog.LevelInfo)
	logger.Info("http request", "path", "/api/models")
	if !strings.Contains(buf.String(), "http request path=/api/models") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
