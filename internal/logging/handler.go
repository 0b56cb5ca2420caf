// Package logging provides the process slog handler: coloured terminal
// output when stderr is a TTY, a bounded ring of recent lines for the
// /api/logs endpoint, and credential redaction on everything written.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// ANSI escape codes
const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiGray   = "\033[90m"
)

// Entry is one stored log line.
type Entry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Ring keeps the most recent log entries.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	maxSize int
}

// NewRing creates a ring holding up to maxSize entries.
func NewRing(maxSize int) *Ring {
	if maxSize <= 0 {
		maxSize = 500
	}
	return &Ring{entries: make([]Entry, 0, maxSize), maxSize: maxSize}
}

func (r *Ring) add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) >= r.maxSize {
		r.entries = r.entries[1:]
	}
	r.entries = append(r.entries, e)
}

// Entries returns a copy of all stored entries, oldest first.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]Entry, len(r.entries))
	copy(cp, r.entries)
	return cp
}

// Options configures a Handler.
type Options struct {
	Level    slog.Leveler
	Color    *bool // nil: detect from the writer
	Ring     *Ring
	Redactor *Redactor
}

// Handler is a slog.Handler writing one line per record.
type Handler struct {
	mu       *sync.Mutex
	out      io.Writer
	color    bool
	level    slog.Leveler
	ring     *Ring
	redactor *Redactor
	prefix   string // rendered WithAttrs attributes
	group    string
}

// NewHandler creates a handler writing to out.
func NewHandler(out io.Writer, opts Options) *Handler {
	h := &Handler{
		mu:       &sync.Mutex{},
		out:      out,
		level:    opts.Level,
		ring:     opts.Ring,
		redactor: opts.Redactor,
	}
	if h.level == nil {
		h.level = slog.LevelInfo
	}
	if h.redactor == nil {
		h.redactor = NewRedactor()
	}
	if opts.Color != nil {
		h.color = *opts.Color
	} else if f, ok := out.(*os.File); ok {
		h.color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return h
}

// Setup builds a stderr logger at the named level and installs it as the
// slog default. extraPatterns are added to the built-in redaction rules.
// It returns the logger and the ring backing /api/logs.
func Setup(level string, extraPatterns ...string) (*slog.Logger, *Ring, error) {
	logger, ring, err := newLogger(os.Stderr, level, extraPatterns)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, ring, nil
}

func newLogger(out io.Writer, level string, extraPatterns []string) (*slog.Logger, *Ring, error) {
	redactor := NewRedactor()
	for _, p := range extraPatterns {
		if err := redactor.AddPattern(p); err != nil {
			return nil, nil, fmt.Errorf("redact pattern %q: %w", p, err)
		}
	}
	ring := NewRing(500)
	h := NewHandler(out, Options{Level: ParseLevel(level), Ring: ring, Redactor: redactor})
	return slog.New(h), ring, nil
}

// ParseLevel maps "debug", "info", "warn", "error" to a slog level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, rec slog.Record) error {
	var b strings.Builder
	b.WriteString(rec.Message)
	b.WriteString(h.prefix)
	rec.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.group, a)
		return true
	})
	msg := b.String()
	if h.redactor.ContainsSensitive(msg) {
		msg = h.redactor.Redact(msg)
	}

	t := rec.Time
	if t.IsZero() {
		t = time.Now()
	}
	if h.ring != nil {
		h.ring.add(Entry{Time: t, Level: rec.Level.String(), Message: msg})
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ts := t.Format("15:04:05")
	if !h.color {
		_, err := fmt.Fprintf(h.out, "%s %s %s\n", ts, rec.Level.String(), msg)
		return err
	}

	switch {
	case rec.Level >= slog.LevelError:
		msg = ansiBold + ansiRed + msg + ansiReset
	case rec.Level >= slog.LevelWarn:
		msg = ansiYellow + msg + ansiReset
	case rec.Level < slog.LevelInfo:
		msg = ansiDim + msg + ansiReset
	}
	_, err := fmt.Fprintf(h.out, "%s %s\n", ansiGray+ts+ansiReset, msg)
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	for _, a := range attrs {
		writeAttr(&b, h.group, a)
	}
	h2 := *h
	h2.prefix = h.prefix + b.String()
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	if h.group != "" {
		h2.group = h.group + "." + name
	} else {
		h2.group = name
	}
	return &h2
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, key, ga)
		}
		return
	}
	val := a.Value.String()
	if strings.ContainsAny(val, " \t\n\"=") {
		val = fmt.Sprintf("%q", val)
	}
	fmt.Fprintf(b, " %s=%s", key, val)
}
