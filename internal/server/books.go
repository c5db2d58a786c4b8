package server

import (
	"io"
	"net/http"
	"strconv"

	"booklend/internal/app"
	"booklend/pkg/domain"
	"booklend/pkg/store"
)

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		s.handleListBooks(w, r, user)
	case http.MethodPost:
		s.handleAddBook(w, r, user)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request, user domain.User) {
	var (
		books []domain.Book
		err   error
	)
	if r.URL.Query().Get("visible") == "true" {
		books, err = s.app.VisibleBooks(user.ID)
	} else {
		books, err = s.app.ListBooks()
	}
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": books,
		"count": len(books),
	})
}

func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.BookInput
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_REQUEST")
		return
	}
	book, err := s.app.AddBook(user, req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleAddByISBN(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		ISBN string `json:"isbn"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_REQUEST")
		return
	}
	book, err := s.app.AddBookByISBN(r.Context(), user, req.ISBN)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	params := r.URL.Query()
	q := store.BookQuery{
		Text:      params.Get("q"),
		Author:    params.Get("author"),
		Publisher: params.Get("publisher"),
	}
	if y := params.Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year", "INVALID_REQUEST")
			return
		}
		q.Year = year
	}
	books, err := s.app.SearchBooks(q, params.Get("status"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": books,
		"count": len(books),
	})
}

func (s *Server) handleRefreshMetadata(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	onlyMissing := r.URL.Query().Get("onlyMissing") == "true"
	result, err := s.app.RefreshMetadata(r.Context(), user, onlyMissing)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type bulkUpdateRequest struct {
	IDs   []int64          `json:"ids"`
	Patch domain.BookPatch `json:"patch"`
}

func (s *Server) handleBulkUpdate(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req bulkUpdateRequest
	if err := decodeBody(r, &req); err != nil || len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_REQUEST")
		return
	}
	result, err := s.app.BulkUpdateBooks(user, req.IDs, req.Patch)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := decodeBody(r, &req); err != nil || len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_REQUEST")
		return
	}
	result, err := s.app.BulkDeleteBooks(r.Context(), user, req.IDs)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// /books/{id}, /books/{id}/cover, /books/{id}/availability, /books/{id}/loans
func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, rest, ok := pathID(r, "/books/")
	if !ok {
		writeError(w, http.StatusNotFound, "not found", "SYSTEM_NOT_FOUND")
		return
	}
	switch rest {
	case "":
		s.handleBook(w, r, user, id)
	case "cover":
		s.handleCover(w, r, user, id)
	case "availability":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		availability, err := s.app.Availability(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, availability)
	case "loans":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		loans, err := s.app.ListLoansForBook(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": loans,
			"count": len(loans),
		})
	default:
		writeError(w, http.StatusNotFound, "not found", "SYSTEM_NOT_FOUND")
	}
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request, user domain.User, id int64) {
	switch r.Method {
	case http.MethodGet:
		book, err := s.app.GetBook(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodPut:
		var patch domain.BookPatch
		if err := decodeBody(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_REQUEST")
			return
		}
		book, err := s.app.UpdateBook(user, id, patch)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodDelete:
		if err := s.app.DeleteBook(r.Context(), user, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCover(w http.ResponseWriter, r *http.Request, user domain.User, id int64) {
	switch r.Method {
	case http.MethodGet:
		data, err := s.app.GetCover(r.Context(), id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	case http.MethodPost, http.MethodPut:
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
		if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data", "INVALID_REQUEST")
			return
		}
		file, _, err := r.FormFile("cover")
		if err != nil {
			writeError(w, http.StatusBadRequest, "cover image is required (field: cover)", "INVALID_REQUEST")
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data", "INVALID_REQUEST")
			return
		}
		book, err := s.app.UploadCover(r.Context(), user, id, data)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	default:
		methodNotAllowed(w)
	}
}
