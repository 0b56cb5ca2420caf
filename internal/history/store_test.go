package history

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func entry(i int) Entry {
	return NewEntry(fmt.Sprintf("prompt %d", i), "m1", "ok", 10, 5, 0.001, time.Unix(int64(i), 0))
}

func TestAppend_NewestFirst(t *testing.T) {
	s := New(10)
	s.Append(entry(1))
	s.Append(entry(2))

	got := s.List()
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Prompt != "prompt 2" || got[1].Prompt != "prompt 1" {
		t.Errorf("wrong order: %q, %q", got[0].Prompt, got[1].Prompt)
	}
}

func TestAppend_BoundedToCapacity(t *testing.T) {
	s := New(DefaultCapacity)
	for i := 1; i <= DefaultCapacity+3; i++ {
		s.Append(entry(i))
	}

	got := s.List()
	if len(got) != DefaultCapacity {
		t.Fatalf("expected %d entries, got %d", DefaultCapacity, len(got))
	}
	// Newest first: 13, 12, ..., 4.
	for i, e := range got {
		want := fmt.Sprintf("prompt %d", DefaultCapacity+3-i)
		if e.Prompt != want {
			t.Errorf("entry %d: got %q, want %q", i, e.Prompt, want)
		}
	}
}

func TestList_Idempotent(t *testing.T) {
	s := New(5)
	s.Append(entry(1))
	s.Append(entry(2))

	first := s.List()
	second := s.List()
	if len(first) != len(second) {
		t.Fatalf("length changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("entry %d differs between calls", i)
		}
	}

	first[0].Prompt = "mutated"
	first = first[:0]

	third := s.List()
	if third[0].Prompt != "prompt 2" {
		t.Errorf("store mutated through returned slice: %q", third[0].Prompt)
	}
	if len(third) != 2 {
		t.Errorf("expected 2 entries, got %d", len(third))
	}
}

func TestNoDeduplication(t *testing.T) {
	s := New(5)
	e := entry(1)
	s.Append(e)
	s.Append(e)
	if s.Len() != 2 {
		t.Errorf("expected duplicates to be kept, got %d entries", s.Len())
	}
}

func TestNew_DefaultCapacity(t *testing.T) {
	if New(0).Capacity() != DefaultCapacity {
		t.Error("zero capacity should fall back to default")
	}
	if New(-1).Capacity() != DefaultCapacity {
		t.Error("negative capacity should fall back to default")
	}
}

func TestNewEntry_UniqueIDs(t *testing.T) {
	a, b := entry(1), entry(1)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct non-empty ids, got %q and %q", a.ID, b.ID)
	}
}

func TestClear(t *testing.T) {
	s := New(3)
	s.Append(entry(1))
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d", s.Len())
	}
}

func TestAppend_Concurrent(t *testing.T) {
	s := New(DefaultCapacity)
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append(entry(i))
		}()
	}
	wg.Wait()

	if s.Len() != DefaultCapacity {
		t.Errorf("expected %d entries after concurrent appends, got %d", DefaultCapacity, s.Len())
	}
	seen := make(map[string]bool)
	for _, e := range s.List() {
		if seen[e.ID] {
			t.Errorf("duplicate entry %s", e.ID)
		}
		seen[e.ID] = true
	}
}
