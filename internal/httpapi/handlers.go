package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MimeLyc/sonomancer/internal/apperr"
	"github.com/MimeLyc/sonomancer/internal/library"
	"github.com/MimeLyc/sonomancer/pkg/log"
)

type addBookRequest struct {
	Title    string                 `json:"title"`
	Chapters []library.ChapterInput `json:"chapters"`
}

type addBookResponse struct {
	BookID string `json:"book_id"`
	Title  string `json:"title"`
}

type chapterSummary struct {
	Index int    `json:"index"`
	Title string `json:"title"`
}

type chaptersResponse struct {
	Title    string           `json:"title"`
	Chapters []chapterSummary `json:"chapters"`
}

type chapterResponse struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type healthResponse struct {
	Status string `json:"status"`
	Stats  any    `json:"stats"`
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req addBookRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	book, err := s.books.AddBook(r.Context(), req.Title, req.Chapters)
	if err != nil {
		writeAppError(w, err)
		return
	}
	log.Info("Registered book %s (%q) with %d chapters", book.ID, book.Title, len(book.Chapters))
	writeJSON(w, http.StatusCreated, addBookResponse{BookID: book.ID, Title: book.Title})
}

// handleBook serves /api/books/{id}, /api/books/{id}/chapters and /api/books/{id}/chapters/{index}.
func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(strings.TrimPrefix(r.URL.Path, "/api/books/"))
	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	bookID := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.deleteBook(w, r, bookID)
	case len(parts) == 2 && parts[1] == "chapters":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.listChapters(w, r, bookID)
	case len(parts) == 3 && parts[1] == "chapters":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		index, ok := parseIndex(w, parts[2])
		if !ok {
			return
		}
		s.readChapter(w, r, bookID, index)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) deleteBook(w http.ResponseWriter, r *http.Request, bookID string) {
	if err := s.books.DeleteBook(r.Context(), bookID); err != nil {
		writeAppError(w, err)
		return
	}
	s.ambience.ForgetBook(bookID)
	log.Info("Deleted book %s", bookID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listChapters(w http.ResponseWriter, r *http.Request, bookID string) {
	book, err := s.books.Book(r.Context(), bookID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	ret := chaptersResponse{
		Title:    book.Title,
		Chapters: make([]chapterSummary, 0, len(book.Chapters)),
	}
	for _, c := range book.Chapters {
		ret.Chapters = append(ret.Chapters, chapterSummary{Index: c.Index, Title: c.Title})
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) readChapter(w http.ResponseWriter, r *http.Request, bookID string, index int) {
	chapter, err := s.books.Chapter(r.Context(), bookID, index)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chapterResponse{
		Index:   chapter.Index,
		Title:   chapter.Title,
		Content: chapter.Content,
	})
}

// handleAmbience serves /api/ambience/{book_id}/{index}?refresh=true.
func (s *Server) handleAmbience(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	parts := splitPath(strings.TrimPrefix(r.URL.Path, "/api/ambience/"))
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	index, ok := parseIndex(w, parts[1])
	if !ok {
		return
	}

	force := false
	if raw := r.URL.Query().Get("refresh"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "refresh must be true or false")
			return
		}
		force = parsed
	}

	result, err := s.ambience.GetAmbience(r.Context(), parts[0], index, force)
	if err != nil {
		if r.Context().Err() != nil && errors.Is(err, r.Context().Err()) {
			// client went away
			return
		}
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "healthy",
		Stats:  s.ambience.Stats(),
	})
}

func splitPath(p string) []string {
	ret := make([]string, 0, 3)
	for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
		if part == "" {
			continue
		}
		if decoded, err := url.PathUnescape(part); err == nil {
			part = decoded
		}
		ret = append(ret, part)
	}
	return ret
}

func parseIndex(w http.ResponseWriter, raw string) (int, bool) {
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "chapter index must be a non-negative integer")
		return 0, false
	}
	return index, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

// writeAppError maps the apperr taxonomy onto HTTP statuses.
func writeAppError(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		log.Error("Unhandled error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Type {
	case apperr.ErrNotFound:
		status = http.StatusNotFound
	case apperr.ErrValidation:
		status = http.StatusBadRequest
	case apperr.ErrClassification, apperr.ErrSearch:
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		log.Error("Request failed: %v", err)
	}

	body := map[string]any{
		"error": appErr.Message,
		"type":  appErr.Type.String(),
	}
	if appErr.Retryable() {
		body["retryable"] = true
	}
	writeJSON(w, status, body)
}
