package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"booklend/internal/app"
	"booklend/internal/usertoken"
	"booklend/internal/util"
	"booklend/pkg/domain"
)

const defaultMaxUploadBytes = 10 * 1024 * 1024

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	TokenVerifier  *usertoken.Verifier
	MaxUploadBytes int64
}

// Server exposes the HTTP API.
type Server struct {
	app            *app.App
	tokenVerifier  *usertoken.Verifier
	mux            *http.ServeMux
	maxUploadBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	if cfg.TokenVerifier == nil {
		return nil, errors.New("token verifier required")
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	s := &Server{
		app:            cfg.App,
		tokenVerifier:  cfg.TokenVerifier,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// books
	s.mux.Handle("/books", s.withUser(s.handleBooks))
	s.mux.Handle("/books/isbn", s.withUser(s.handleAddByISBN))
	s.mux.Handle("/books/search", s.withUser(s.handleSearch))
	s.mux.Handle("/books/refresh-metadata", s.withUser(s.handleRefreshMetadata))
	s.mux.Handle("/books/bulk", s.withUser(s.handleBulkUpdate))
	s.mux.Handle("/books/bulk-delete", s.withUser(s.handleBulkDelete))
	s.mux.Handle("/books/", s.withUser(s.handleBookByID))

	// users
	s.mux.HandleFunc("/users", s.handleUsers)
	s.mux.Handle("/users/", s.withUser(s.handleUserByID))

	// loans
	s.mux.Handle("/loans", s.withUser(s.handleLoans))
	s.mux.Handle("/loans/", s.withUser(s.handleLoanByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authenticate(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "AUTH_INVALID_TOKEN")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authenticate(r *http.Request) (domain.User, bool) {
	token, ok := usertoken.BearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	subject, err := s.tokenVerifier.VerifySubject(token)
	if err != nil {
		return domain.User{}, false
	}
	user, err := s.app.GetUser(subject)
	if err != nil || !user.Active {
		return domain.User{}, false
	}
	return user, true
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}

func pathID(r *http.Request, prefix string) (int64, string, bool) {
	path := strings.TrimPrefix(r.URL.Path, prefix)
	parts := strings.SplitN(path, "/", 2)
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	rest := ""
	if len(parts) == 2 {
		rest = parts[1]
	}
	return id, rest, true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed", "SYSTEM_METHOD_NOT_ALLOWED")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

// writeAppError maps domain sentinels onto HTTP statuses and stable error
// codes. Unknown errors are reported as internal without leaking details.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrBookNotFound):
		writeError(w, http.StatusNotFound, "book not found", "BOOK_NOT_FOUND")
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found", "USER_NOT_FOUND")
	case errors.Is(err, domain.ErrLoanNotFound):
		writeError(w, http.StatusNotFound, "loan not found", "LOAN_NOT_FOUND")
	case errors.Is(err, domain.ErrBookOnLoan):
		writeError(w, http.StatusConflict, "book is out on loan", "BOOK_ON_LOAN")
	case errors.Is(err, domain.ErrDuplicateBook):
		writeError(w, http.StatusConflict, "book already in catalog", "BOOK_DUPLICATE")
	case errors.Is(err, domain.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered", "USER_EMAIL_TAKEN")
	case errors.Is(err, domain.ErrUserHasLoans):
		writeError(w, http.StatusConflict, "user still holds borrowed books", "USER_HAS_ACTIVE_LOANS")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "FORBIDDEN")
	case errors.Is(err, domain.ErrNoMetadata):
		writeError(w, http.StatusNotFound, "no metadata found", "METADATA_NOT_FOUND")
	case errors.Is(err, app.ErrNoCover):
		writeError(w, http.StatusNotFound, "no cover available", "COVER_NOT_FOUND")
	case errors.Is(err, app.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_REQUEST")
	default:
		writeError(w, http.StatusInternalServerError, "internal error", "SYSTEM_INTERNAL_ERROR")
	}
}
