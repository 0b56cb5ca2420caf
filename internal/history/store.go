// Package history keeps the in-memory session history: a bounded,
// newest-first log of successful prompt/model exchanges. Nothing is
// persisted; the log lives as long as the process.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is how many entries a store keeps when none is given.
const DefaultCapacity = 10

// Entry is an immutable snapshot of one successful model call.
type Entry struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	ModelID   string    `json:"model"`
	Response  string    `json:"response"`
	LatencyMs int64     `json:"latencyMs"`
	Tokens    int       `json:"tokens"`
	Cost      float64   `json:"cost"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewEntry fills in a fresh ID for an entry.
func NewEntry(prompt, modelID, response string, latencyMs int64, tokens int, cost float64, at time.Time) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		ModelID:   modelID,
		Response:  response,
		LatencyMs: latencyMs,
		Tokens:    tokens,
		Cost:      cost,
		CreatedAt: at,
	}
}

// Store is a capacity-bounded history, newest first. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
}

// New creates a store holding at most capacity entries. A non-positive
// capacity means DefaultCapacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		entries:  make([]Entry, 0, capacity),
		capacity: capacity,
	}
}

// Append inserts e at the front and drops whatever falls past capacity.
// Insert and truncate happen under one lock.
func (s *Store) Append(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries) + 1
	if n > s.capacity {
		n = s.capacity
	}
	next := make([]Entry, n)
	next[0] = e
	copy(next[1:], s.entries)
	s.entries = next
}

// List returns a newest-first copy of the entries.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]Entry, len(s.entries))
	copy(cp, s.entries)
	return cp
}

// Len returns the current number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Capacity returns the maximum number of entries kept.
func (s *Store) Capacity() int {
	return s.capacity
}

// Clear drops every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make([]Entry, 0, s.capacity)
	s.mu.Unlock()
}
