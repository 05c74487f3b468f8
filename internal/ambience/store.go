package ambience

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Store owns resolved results and the in-flight marker for each key.
type Store interface {
	Get(key ChapterKey) (Result, bool)
	Put(key ChapterKey, result Result)
	// Coalesce runs fn unless a run for key is already in flight, in which case
	// the caller attaches to it. shared reports whether the caller attached.
	// A caller whose ctx ends stops waiting; the run itself is not cancelled.
	Coalesce(ctx context.Context, key ChapterKey, fn func() (Result, error)) (result Result, shared bool, err error)
	// ForgetBook drops every cached result of a book and reports how many were dropped.
	ForgetBook(bookID string) int
	Len() int
}

// MemoryStore is a process-lifetime Store. Different keys never block each other
// beyond the brief map lookup.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[ChapterKey]Result

	// flightMu orders in-flight bookkeeping with the singleflight calls so the
	// caller that starts a run is always the one reported as not shared.
	flightMu sync.Mutex
	inFlight map[ChapterKey]bool
	group    singleflight.Group
}

// NewMemoryStore creates an empty store. Results are kept until ForgetBook or
// process exit.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		results:  make(map[ChapterKey]Result),
		inFlight: make(map[ChapterKey]bool),
	}
}

func (s *MemoryStore) Get(key ChapterKey) (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[key]
	return r, ok
}

func (s *MemoryStore) Put(key ChapterKey, result Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[key] = result
}

func (s *MemoryStore) Coalesce(ctx context.Context, key ChapterKey, fn func() (Result, error)) (Result, bool, error) {
	name := key.String()

	s.flightMu.Lock()
	shared := s.inFlight[key]
	s.inFlight[key] = true
	ch := s.group.DoChan(name, func() (any, error) {
		r, err := fn()
		s.flightMu.Lock()
		delete(s.inFlight, key)
		// later callers start a new run instead of joining this finished one
		s.group.Forget(name)
		s.flightMu.Unlock()
		return r, err
	})
	s.flightMu.Unlock()

	select {
	case <-ctx.Done():
		return Result{}, shared, ctx.Err()
	case res := <-ch:
		r, _ := res.Val.(Result)
		return r, shared, res.Err
	}
}

func (s *MemoryStore) ForgetBook(bookID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.results {
		if key.BookID == bookID {
			delete(s.results, key)
			n++
		}
	}
	return n
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}
