// Package ledger owns loan lifecycle: whether a book is available, who holds
// it, and the lend/return transitions.
package ledger

import (
	"fmt"
	"log/slog"
	"time"

	"booklend/pkg/clock"
	"booklend/pkg/domain"
)

// DefaultLoanPeriod is applied when a lend request does not name a due date.
const DefaultLoanPeriod = 30 * 24 * time.Hour

// Store is the slice of persistence the ledger needs.
type Store interface {
	GetBook(id int64) (domain.Book, bool, error)
	GetUserByID(id int64) (domain.User, bool, error)

	// LendBook must check for an active loan and insert the new row inside a
	// single transaction so two concurrent lends for one book cannot both
	// succeed. It returns domain.ErrBookOnLoan when the check fails.
	LendBook(bookID, borrowerID int64, loanDate time.Time, returnDate *time.Time, now time.Time) (domain.Loan, error)

	GetLoan(id int64) (domain.Loan, bool, error)
	ListLoansByBook(bookID int64) ([]domain.Loan, error)
	SetLoanReturn(id int64, returnDate time.Time) (domain.Loan, error)
	DeleteLoan(id int64) error
}

// Ledger answers availability questions and performs lend/return transitions.
type Ledger struct {
	store Store
	clock clock.Clock
	log   *slog.Logger
}

func New(store Store, clk clock.Clock, log *slog.Logger) *Ledger {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{store: store, clock: clk, log: log}
}

// IsActive is the single source of truth for "on loan": no return date, or a
// return date strictly in the future. No other code may branch on ReturnDate
// directly.
func IsActive(loan domain.Loan, now time.Time) bool {
	return loan.ReturnDate == nil || loan.ReturnDate.After(now)
}

// MostRecentActive picks the active loan with the largest id. Identity order
// is authoritative for recency; loan dates are user-suppliable and are not
// trusted for tie-breaks.
func MostRecentActive(loans []domain.Loan, now time.Time) (domain.Loan, bool) {
	var (
		latest domain.Loan
		found  bool
	)
	for _, loan := range loans {
		if !IsActive(loan, now) {
			continue
		}
		if !found || loan.ID > latest.ID {
			latest = loan
			found = true
		}
	}
	return latest, found
}

// FindActiveLoan returns the current holder's loan for a book, if any.
func (l *Ledger) FindActiveLoan(bookID int64) (domain.Loan, bool, error) {
	loans, err := l.store.ListLoansByBook(bookID)
	if err != nil {
		return domain.Loan{}, false, fmt.Errorf("list loans: %w", err)
	}
	loan, ok := MostRecentActive(loans, l.clock.Now())
	return loan, ok, nil
}

// Lend creates a loan after verifying both references exist. Omitted dates
// default to now and now plus the standard loan period. The availability check
// itself runs inside the store transaction.
func (l *Ledger) Lend(bookID, borrowerID int64, loanDate, returnDate *time.Time) (domain.Loan, error) {
	if _, ok, err := l.store.GetBook(bookID); err != nil {
		return domain.Loan{}, fmt.Errorf("get book: %w", err)
	} else if !ok {
		return domain.Loan{}, domain.ErrBookNotFound
	}
	if _, ok, err := l.store.GetUserByID(borrowerID); err != nil {
		return domain.Loan{}, fmt.Errorf("get borrower: %w", err)
	} else if !ok {
		return domain.Loan{}, domain.ErrUserNotFound
	}

	now := l.clock.Now()
	start := now
	if loanDate != nil {
		start = loanDate.UTC()
	}
	var due *time.Time
	if returnDate != nil {
		d := returnDate.UTC()
		due = &d
	} else {
		d := now.Add(DefaultLoanPeriod)
		due = &d
	}

	loan, err := l.store.LendBook(bookID, borrowerID, start, due, now)
	if err != nil {
		return domain.Loan{}, err
	}
	l.log.Info("loan created", "loanId", loan.ID, "bookId", bookID, "borrowerId", borrowerID, "due", due)
	return loan, nil
}

// Return registers a return at the given instant. Returning an already
// returned loan overwrites the previous instant (idempotent) but is logged as
// a warning since it usually signals a double submission.
func (l *Ledger) Return(loanID int64, when time.Time) (domain.Loan, error) {
	loan, ok, err := l.store.GetLoan(loanID)
	if err != nil {
		return domain.Loan{}, fmt.Errorf("get loan: %w", err)
	}
	if !ok {
		return domain.Loan{}, domain.ErrLoanNotFound
	}
	when = when.UTC()
	if !IsActive(loan, l.clock.Now()) {
		l.log.Warn("returning an already returned loan", "loanId", loanID, "previousReturn", loan.ReturnDate)
	}
	updated, err := l.store.SetLoanReturn(loanID, when)
	if err != nil {
		return domain.Loan{}, fmt.Errorf("set return date: %w", err)
	}
	return updated, nil
}

// Delete hard-deletes a loan record. Administrative correction only; the
// normal flow retires loans through Return.
func (l *Ledger) Delete(loanID int64) error {
	if _, ok, err := l.store.GetLoan(loanID); err != nil {
		return fmt.Errorf("get loan: %w", err)
	} else if !ok {
		return domain.ErrLoanNotFound
	}
	return l.store.DeleteLoan(loanID)
}

// Availability is the outward-facing loan status of a book.
type Availability struct {
	Available  bool       `json:"available"`
	LoanID     int64      `json:"loanId,omitempty"`
	BorrowerID int64      `json:"borrowerId,omitempty"`
	Since      *time.Time `json:"since,omitempty"`
	Due        *time.Time `json:"due,omitempty"`
}

// Availability reports whether the book is free or who holds it and since when.
func (l *Ledger) Availability(bookID int64) (Availability, error) {
	if _, ok, err := l.store.GetBook(bookID); err != nil {
		return Availability{}, fmt.Errorf("get book: %w", err)
	} else if !ok {
		return Availability{}, domain.ErrBookNotFound
	}
	loan, ok, err := l.FindActiveLoan(bookID)
	if err != nil {
		return Availability{}, err
	}
	if !ok {
		return Availability{Available: true}, nil
	}
	since := loan.LoanDate
	return Availability{
		Available:  false,
		LoanID:     loan.ID,
		BorrowerID: loan.UserID,
		Since:      &since,
		Due:        loan.ReturnDate,
	}, nil
}
