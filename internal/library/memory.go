package library

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps books for the lifetime of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	books map[string]Book
	now   func() time.Time
}

// NewMemoryStore creates an empty library that is lost on restart. Use
// persistence.SQLiteStore when books must survive.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books: make(map[string]Book),
		now:   time.Now,
	}
}

func (s *MemoryStore) AddBook(ctx context.Context, title string, chapters []ChapterInput) (Book, error) {
	title, normalized, err := NormalizeBook(title, chapters)
	if err != nil {
		return Book{}, err
	}
	book := Book{
		ID:        uuid.NewString(),
		Title:     title,
		Chapters:  normalized,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	s.books[book.ID] = book
	s.mu.Unlock()
	return copyBook(book), nil
}

func (s *MemoryStore) Book(ctx context.Context, bookID string) (Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	book, ok := s.books[bookID]
	if !ok {
		return Book{}, BookNotFound(bookID)
	}
	return copyBook(book), nil
}

func (s *MemoryStore) Chapter(ctx context.Context, bookID string, index int) (Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	book, ok := s.books[bookID]
	if !ok {
		return Chapter{}, BookNotFound(bookID)
	}
	if index < 0 || index >= len(book.Chapters) {
		return Chapter{}, ChapterNotFound(bookID, index)
	}
	return book.Chapters[index], nil
}

func (s *MemoryStore) ChapterText(ctx context.Context, bookID string, index int) (string, error) {
	c, err := s.Chapter(ctx, bookID, index)
	if err != nil {
		return "", err
	}
	return c.Content, nil
}

func (s *MemoryStore) DeleteBook(ctx context.Context, bookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[bookID]; !ok {
		return BookNotFound(bookID)
	}
	delete(s.books, bookID)
	return nil
}

func (s *MemoryStore) PruneBefore(ctx context.Context, t time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0)
	for id, book := range s.books {
		if book.CreatedAt.Before(t) {
			ids = append(ids, id)
			delete(s.books, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func copyBook(b Book) Book {
	b.Chapters = append([]Chapter(nil), b.Chapters...)
	return b
}
