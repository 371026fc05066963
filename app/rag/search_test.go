package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"BookWormAI/app/store"
)

func passage(id string) store.Passage {
	return store.Passage{
		ID:         id,
		BookID:     "book-1",
		ClassLabel: "Class 7",
		Subject:    "Science",
		Language:   "English",
		PageNumber: 1,
		Text:       "text of " + id,
	}
}

// fakeStore is an in-memory store.Store for exercising the search and
// orchestration paths without touching SQLite.
type fakeStore struct {
	mu         sync.Mutex
	passages   map[string]store.Passage
	dim        int
	failUpsert bool
	failScan   bool
}

var _ store.Store = &fakeStore{}

func newFakeStore(dim int) *fakeStore {
	return &fakeStore{passages: make(map[string]store.Passage), dim: dim}
}

func (s *fakeStore) Upsert(ctx context.Context, p store.Passage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpsert {
		return fmt.Errorf("upsert %s: %w", p.ID, store.ErrStoreUnavailable)
	}
	s.passages[p.ID] = p
	return nil
}

func (s *fakeStore) UpsertBatch(ctx context.Context, ps []store.Passage) error {
	for _, p := range ps {
		if err := s.Upsert(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeStore) Scan(ctx context.Context, f store.Filters, fn func(store.Passage) error) error {
	s.mu.Lock()
	if s.failScan {
		s.mu.Unlock()
		return fmt.Errorf("scan: %w", store.ErrStoreUnavailable)
	}
	ids := make([]string, 0, len(s.passages))
	for id := range s.passages {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Strings(ids)
	for _, id := range ids {
		s.mu.Lock()
		p := s.passages[id]
		s.mu.Unlock()
		if !matchFilters(p, f) {
			continue
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeStore) Count(ctx context.Context, f store.Filters) (int, error) {
	n := 0
	err := s.Scan(ctx, f, func(store.Passage) error { n++; return nil })
	return n, err
}

func (s *fakeStore) Has(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.passages[id]
	return ok, nil
}

func (s *fakeStore) Dimension() int { return s.dim }
func (s *fakeStore) Close() error   { return nil }

func matchFilters(p store.Passage, f store.Filters) bool {
	if f.ClassLabel != "" && p.ClassLabel != f.ClassLabel {
		return false
	}
	if f.Subject != "" && p.Subject != f.Subject {
		return false
	}
	if f.Language != "" && p.Language != f.Language {
		return false
	}
	return true
}

func seedPassage(t *testing.T, s *fakeStore, id string, embedding []float32, mutate func(*store.Passage)) {
	t.Helper()
	p := passage(id)
	p.Embedding = embedding
	if mutate != nil {
		mutate(&p)
	}
	if err := s.Upsert(context.Background(), p); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestBruteForceRanking(t *testing.T) {
	st := newFakeStore(2)
	seedPassage(t, st, "psg-far", []float32{0, 1}, nil)
	seedPassage(t, st, "psg-near", []float32{1, 0.1}, nil)
	seedPassage(t, st, "psg-exact", []float32{1, 0}, nil)

	results, err := NewBruteForce(st).Search(context.Background(), []float32{1, 0}, store.Filters{}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"psg-exact", "psg-near", "psg-far"}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, id := range want {
		if results[i].Passage.ID != id {
			t.Fatalf("position %d: got %s, want %s", i, results[i].Passage.ID, id)
		}
	}
	if results[0].Score <= results[1].Score || results[1].Score <= results[2].Score {
		t.Fatalf("scores not descending: %v %v %v", results[0].Score, results[1].Score, results[2].Score)
	}
}

func TestBruteForceTopKBound(t *testing.T) {
	st := newFakeStore(2)
	for i := 0; i < 8; i++ {
		seedPassage(t, st, fmt.Sprintf("psg-%d", i), []float32{1, float32(i)}, nil)
	}

	results, err := NewBruteForce(st).Search(context.Background(), []float32{1, 0}, store.Filters{}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
}

func TestBruteForceDeterministicTieBreak(t *testing.T) {
	st := newFakeStore(2)
	// Identical embeddings, so ordering can only come from the id tie-break.
	seedPassage(t, st, "psg-b", []float32{1, 1}, nil)
	seedPassage(t, st, "psg-a", []float32{1, 1}, nil)
	seedPassage(t, st, "psg-c", []float32{1, 1}, nil)

	engine := NewBruteForce(st)
	for run := 0; run < 3; run++ {
		results, err := engine.Search(context.Background(), []float32{1, 1}, store.Filters{}, 10)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		want := []string{"psg-a", "psg-b", "psg-c"}
		for i, id := range want {
			if results[i].Passage.ID != id {
				t.Fatalf("run %d position %d: got %s, want %s", run, i, results[i].Passage.ID, id)
			}
		}
	}
}

func TestBruteForceSkipsUnusableEmbeddings(t *testing.T) {
	st := newFakeStore(2)
	seedPassage(t, st, "psg-good", []float32{1, 0}, nil)
	seedPassage(t, st, "psg-zero", []float32{0, 0}, nil)
	seedPassage(t, st, "psg-short", []float32{1}, nil)

	results, err := NewBruteForce(st).Search(context.Background(), []float32{1, 0}, store.Filters{}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Passage.ID != "psg-good" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestBruteForceFilters(t *testing.T) {
	st := newFakeStore(2)
	seedPassage(t, st, "psg-sci", []float32{1, 0}, nil)
	seedPassage(t, st, "psg-math", []float32{1, 0}, func(p *store.Passage) { p.Subject = "Math" })

	results, err := NewBruteForce(st).Search(context.Background(), []float32{1, 0},
		store.Filters{Subject: "Math"}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Passage.ID != "psg-math" {
		t.Fatalf("filter not applied: %+v", results)
	}
}

func TestBruteForceEmptyResultIsNotAnError(t *testing.T) {
	st := newFakeStore(2)
	results, err := NewBruteForce(st).Search(context.Background(), []float32{1, 0}, store.Filters{}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestBruteForceRejectsBadInput(t *testing.T) {
	st := newFakeStore(2)
	engine := NewBruteForce(st)

	if _, err := engine.Search(context.Background(), []float32{1, 0}, store.Filters{}, 0); err == nil {
		t.Fatalf("top_k 0 accepted")
	}
	if _, err := engine.Search(context.Background(), []float32{1, 0},
		store.Filters{Subject: "bad\nvalue"}, 5); !errors.Is(err, store.ErrInvalidFilter) {
		t.Fatalf("invalid filter accepted: %v", err)
	}
}

func TestBruteForcePropagatesStoreFailure(t *testing.T) {
	st := newFakeStore(2)
	st.failScan = true

	if _, err := NewBruteForce(st).Search(context.Background(), []float32{1, 0},
		store.Filters{}, 5); !errors.Is(err, store.ErrStoreUnavailable) {
		t.Fatalf("store failure not surfaced: %v", err)
	}
}
