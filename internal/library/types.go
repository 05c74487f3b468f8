package library

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MimeLyc/sonomancer/internal/apperr"
)

// Book is an ingested book. Chapters are ordered by their zero-based Index.
type Book struct {
	ID        string    `json:"book_id"`
	Title     string    `json:"title"`
	Chapters  []Chapter `json:"chapters,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Chapter struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
}

// ChapterInput is a parsed chapter handed over by the ingestion step.
type ChapterInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Store holds ingested books. Missing books or chapters are reported as apperr.ErrNotFound.
type Store interface {
	AddBook(ctx context.Context, title string, chapters []ChapterInput) (Book, error)
	Book(ctx context.Context, bookID string) (Book, error)
	Chapter(ctx context.Context, bookID string, index int) (Chapter, error)
	ChapterText(ctx context.Context, bookID string, index int) (string, error)
	DeleteBook(ctx context.Context, bookID string) error
	// PruneBefore deletes books created before t and returns their ids.
	PruneBefore(ctx context.Context, t time.Time) ([]string, error)
}

// NormalizeBook validates an incoming book and fills in missing titles.
func NormalizeBook(title string, chapters []ChapterInput) (string, []Chapter, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", nil, apperr.New(apperr.ErrValidation, "book title is required")
	}
	if len(chapters) == 0 {
		return "", nil, apperr.New(apperr.ErrValidation, "book has no chapters").WithContext("title", title)
	}

	ret := make([]Chapter, len(chapters))
	for i, c := range chapters {
		chapterTitle := strings.TrimSpace(c.Title)
		if chapterTitle == "" {
			chapterTitle = fmt.Sprintf("Chapter %d", i+1)
		}
		ret[i] = Chapter{Index: i, Title: chapterTitle, Content: c.Content}
	}
	return title, ret, nil
}

// BookNotFound and ChapterNotFound build the errors every Store returns.
func BookNotFound(bookID string) error {
	return apperr.New(apperr.ErrNotFound, "book not found").WithContext("book_id", bookID)
}

func ChapterNotFound(bookID string, index int) error {
	return apperr.New(apperr.ErrNotFound, "chapter not found").
		WithContext("book_id", bookID).
		WithContext("chapter_index", index)
}

