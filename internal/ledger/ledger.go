// Package ledger records per-call usage telemetry in SQLite: which model,
// how long, how many tokens, what it cost, and whether it failed. It never
// stores prompts, responses, or credentials.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/leandrotocalini/promptlab/internal/dispatch"
)

// ModelTotals aggregates the ledger for one model.
type ModelTotals struct {
	ModelID      string  `json:"model"`
	Calls        int     `json:"calls"`
	Failures     int     `json:"failures"`
	Tokens       int     `json:"tokens"`
	Cost         float64 `json:"cost"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
}

// Ledger is a SQLite-backed usage log. Safe for concurrent use.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) a ledger at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Ledger, error) {
	dsn := "file::memory:?cache=private"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
		dsn = "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS calls (
			id         TEXT PRIMARY KEY,
			model_id   TEXT NOT NULL,
			status     TEXT NOT NULL,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			tokens     INTEGER NOT NULL DEFAULT 0,
			cost       REAL NOT NULL DEFAULT 0,
			error_kind TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create calls table: %w", err)
	}

	return &Ledger{db: db, now: time.Now}, nil
}

// Record stores one settled result. Pending results are ignored.
func (l *Ledger) Record(ctx context.Context, r dispatch.Result) error {
	if !r.Settled() {
		return nil
	}

	var latency int64
	if r.LatencyMs != nil {
		latency = *r.LatencyMs
	}
	var tokens int
	if r.TokenCount != nil {
		tokens = *r.TokenCount
	}
	var cost float64
	if r.EstimatedCost != nil {
		cost = *r.EstimatedCost
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO calls (id, model_id, status, latency_ms, tokens, cost, error_kind, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), r.ModelID, string(r.Status), latency, tokens, cost, string(r.ErrorKind),
		l.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

// Totals returns per-model aggregates, ordered by model ID.
func (l *Ledger) Totals(ctx context.Context) ([]ModelTotals, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT model_id,
		       COUNT(*),
		       SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
		       SUM(tokens),
		       SUM(cost),
		       AVG(latency_ms)
		FROM calls
		GROUP BY model_id
		ORDER BY model_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	defer rows.Close()

	var out []ModelTotals
	for rows.Next() {
		var t ModelTotals
		if err := rows.Scan(&t.ModelID, &t.Calls, &t.Failures, &t.Tokens, &t.Cost, &t.AvgLatencyMs); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
