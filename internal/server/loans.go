package server

import (
	"net/http"
	"strings"
	"time"

	"booklend/pkg/domain"
	"booklend/pkg/ledger"
)

type lendRequest struct {
	BookID     int64  `json:"bookId"`
	UserID     int64  `json:"userId"`
	LoanDate   string `json:"loanDate"`
	ReturnDate string `json:"returnDate"`
}

func (s *Server) handleLoans(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		loans, err := s.app.ListLoans(user)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": loans,
			"count": len(loans),
		})
	case http.MethodPost:
		s.handleLend(w, r, user)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleLend(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req lendRequest
	if err := decodeBody(r, &req); err != nil || req.BookID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_REQUEST")
		return
	}
	borrower := req.UserID
	if borrower == 0 {
		borrower = user.ID
	}
	loanDate, ok := parseOptionalInstant(w, req.LoanDate, "loanDate")
	if !ok {
		return
	}
	returnDate, ok := parseOptionalInstant(w, req.ReturnDate, "returnDate")
	if !ok {
		return
	}
	loan, err := s.app.Lend(req.BookID, borrower, loanDate, returnDate)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

// /loans/{id}, /loans/{id}/return
func (s *Server) handleLoanByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, rest, ok := pathID(r, "/loans/")
	if !ok {
		writeError(w, http.StatusNotFound, "not found", "SYSTEM_NOT_FOUND")
		return
	}
	if rest == "return" {
		s.handleReturn(w, r, id)
		return
	}
	if rest != "" {
		writeError(w, http.StatusNotFound, "not found", "SYSTEM_NOT_FOUND")
		return
	}
	switch r.Method {
	case http.MethodGet:
		loan, err := s.app.GetLoan(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if user.Role != domain.RoleAdmin && loan.UserID != user.ID {
			writeAppError(w, domain.ErrForbidden)
			return
		}
		writeJSON(w, http.StatusOK, loan)
	case http.MethodDelete:
		if err := s.app.DeleteLoan(user, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		ReturnDate string `json:"returnDate"`
	}
	// An empty body means "returned now".
	_ = decodeBody(r, &req)
	when, ok := parseOptionalInstant(w, req.ReturnDate, "returnDate")
	if !ok {
		return
	}
	loan, err := s.app.ReturnLoan(id, when)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func parseOptionalInstant(w http.ResponseWriter, value, field string) (*time.Time, bool) {
	if strings.TrimSpace(value) == "" {
		return nil, true
	}
	t, err := ledger.ParseInstant(value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+field, "INVALID_REQUEST")
		return nil, false
	}
	return &t, true
}
