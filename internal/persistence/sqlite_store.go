package persistence

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/MimeLyc/sonomancer/internal/library"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore is a library.Store backed by a single SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ library.Store = (*SQLiteStore)(nil)

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) AddBook(ctx context.Context, title string, chapters []library.ChapterInput) (library.Book, error) {
	title, normalized, err := library.NormalizeBook(title, chapters)
	if err != nil {
		return library.Book{}, err
	}
	book := library.Book{
		ID:        uuid.NewString(),
		Title:     title,
		Chapters:  normalized,
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return library.Book{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO books (id, title, created_at) VALUES (?, ?, ?)`,
		book.ID, book.Title, book.CreatedAt,
	); err != nil {
		return library.Book{}, fmt.Errorf("insert book: %w", err)
	}
	for _, c := range book.Chapters {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chapters (book_id, idx, title, content) VALUES (?, ?, ?, ?)`,
			book.ID, c.Index, c.Title, c.Content,
		); err != nil {
			return library.Book{}, fmt.Errorf("insert chapter %d: %w", c.Index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return library.Book{}, fmt.Errorf("commit book: %w", err)
	}
	return book, nil
}

// Book returns the book with chapter titles only; use Chapter for content.
func (s *SQLiteStore) Book(ctx context.Context, bookID string) (library.Book, error) {
	var book library.Book
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at FROM books WHERE id = ?`, bookID,
	).Scan(&book.ID, &book.Title, &book.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return library.Book{}, library.BookNotFound(bookID)
	}
	if err != nil {
		return library.Book{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, title FROM chapters WHERE book_id = ? ORDER BY idx ASC`, bookID,
	)
	if err != nil {
		return library.Book{}, err
	}
	defer rows.Close()

	book.Chapters = make([]library.Chapter, 0)
	for rows.Next() {
		var c library.Chapter
		if err := rows.Scan(&c.Index, &c.Title); err != nil {
			return library.Book{}, err
		}
		book.Chapters = append(book.Chapters, c)
	}
	if err := rows.Err(); err != nil {
		return library.Book{}, err
	}
	return book, nil
}

func (s *SQLiteStore) Chapter(ctx context.Context, bookID string, index int) (library.Chapter, error) {
	c := library.Chapter{Index: index}
	err := s.db.QueryRowContext(ctx,
		`SELECT title, content FROM chapters WHERE book_id = ? AND idx = ?`, bookID, index,
	).Scan(&c.Title, &c.Content)
	if errors.Is(err, sql.ErrNoRows) {
		if exists, existsErr := s.bookExists(ctx, bookID); existsErr == nil && !exists {
			return library.Chapter{}, library.BookNotFound(bookID)
		}
		return library.Chapter{}, library.ChapterNotFound(bookID, index)
	}
	if err != nil {
		return library.Chapter{}, err
	}
	return c, nil
}

func (s *SQLiteStore) ChapterText(ctx context.Context, bookID string, index int) (string, error) {
	c, err := s.Chapter(ctx, bookID, index)
	if err != nil {
		return "", err
	}
	return c.Content, nil
}

func (s *SQLiteStore) DeleteBook(ctx context.Context, bookID string) error {
	n, err := s.deleteBooks(ctx, []string{bookID})
	if err != nil {
		return err
	}
	if n == 0 {
		return library.BookNotFound(bookID)
	}
	return nil
}

func (s *SQLiteStore) PruneBefore(ctx context.Context, t time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at FROM books`)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		var createdAt time.Time
		if err := rows.Scan(&id, &createdAt); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if createdAt.Before(t) {
			ids = append(ids, id)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if len(ids) == 0 {
		return ids, nil
	}
	sort.Strings(ids)
	if _, err := s.deleteBooks(ctx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SQLiteStore) bookExists(ctx context.Context, bookID string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE id = ?`, bookID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) deleteBooks(ctx context.Context, ids []string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var deleted int64
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE book_id = ?`, id); err != nil {
			return 0, fmt.Errorf("delete chapters of %s: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
		if err != nil {
			return 0, fmt.Errorf("delete book %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		deleted += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete: %w", err)
	}
	return deleted, nil
}
