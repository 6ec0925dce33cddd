// Package archivetest provides in-memory doubles for archive lifecycle
// collaborators.
package archivetest

import (
	"context"
	"sort"
	"sync"

	"notification-service/internal/archive"
	"notification-service/internal/models"
)

// Store is a map-backed archive.Store.
type Store[T any] struct {
	mu    sync.Mutex
	rows  map[int]T
	idOf  func(T) int
	calls int
}

// NewStore creates an empty Store; idOf extracts the primary key.
func NewStore[T any](idOf func(T) int) *Store[T] {
	return &Store[T]{rows: make(map[int]T), idOf: idOf}
}

func (s *Store[T]) Persist(_ context.Context, entity T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[s.idOf(entity)] = entity
	return nil
}

func (s *Store[T]) FindByID(_ context.Context, id int) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entity, ok := s.rows[id]
	if !ok {
		var zero T
		return zero, archive.ErrNotFound
	}
	return entity, nil
}

func (s *Store[T]) Delete(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return archive.ErrNotFound
	}
	delete(s.rows, id)
	s.calls++
	return nil
}

func (s *Store[T]) FindAllPage(_ context.Context, page models.Page) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ids)))

	page = page.Normalize()
	out := make([]T, 0)
	for i := page.Offset; i < len(ids) && len(out) < page.Limit; i++ {
		out = append(out, s.rows[ids[i]])
	}
	return out, nil
}

// Has reports whether id is stored.
func (s *Store[T]) Has(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[id]
	return ok
}

// Len returns the number of stored rows.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Deletes counts successful Delete calls.
func (s *Store[T]) Deletes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Refs is a mutable reference table usable as an archive.Guard.
type Refs struct {
	mu   sync.Mutex
	kind string
	refs map[int]map[int]struct{}
}

// NewRefs creates an empty table whose references report kind.
func NewRefs(kind string) *Refs {
	return &Refs{kind: kind, refs: make(map[int]map[int]struct{})}
}

// Add records that referrer points at id.
func (r *Refs) Add(id, referrer int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refs[id] == nil {
		r.refs[id] = make(map[int]struct{})
	}
	r.refs[id][referrer] = struct{}{}
}

// Remove drops the reference from referrer to id.
func (r *Refs) Remove(id, referrer int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.refs[id], referrer)
}

// Guard lists the current referrers of id.
func (r *Refs) Guard(_ context.Context, id int) ([]archive.Reference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.refs[id]))
	for referrer := range r.refs[id] {
		ids = append(ids, referrer)
	}
	sort.Ints(ids)
	out := make([]archive.Reference, 0, len(ids))
	for _, referrer := range ids {
		out = append(out, archive.Reference{Kind: r.kind, ID: referrer})
	}
	return out, nil
}
