package app

import (
	"fmt"
	"time"

	"booklend/pkg/domain"
	"booklend/pkg/ledger"
)

// Lend checks out a book to a borrower. Dates are optional; the ledger fills
// in now and the standard loan period.
func (a *App) Lend(bookID, borrowerID int64, loanDate, returnDate *time.Time) (domain.Loan, error) {
	return a.ledger.Lend(bookID, borrowerID, loanDate, returnDate)
}

// ReturnLoan registers a return. A nil instant means "now".
func (a *App) ReturnLoan(loanID int64, when *time.Time) (domain.Loan, error) {
	at := a.clock.Now()
	if when != nil {
		at = when.UTC()
	}
	return a.ledger.Return(loanID, at)
}

// GetLoan fetches a single loan.
func (a *App) GetLoan(id int64) (domain.Loan, error) {
	loan, ok, err := a.store.GetLoan(id)
	if err != nil {
		return domain.Loan{}, fmt.Errorf("get loan: %w", err)
	}
	if !ok {
		return domain.Loan{}, domain.ErrLoanNotFound
	}
	return loan, nil
}

// DeleteLoan erases a loan record. Administrative correction only.
func (a *App) DeleteLoan(actor domain.User, loanID int64) error {
	if actor.Role != domain.RoleAdmin {
		return domain.ErrForbidden
	}
	return a.ledger.Delete(loanID)
}

// ListLoans returns every loan for administrators and the actor's own loans
// for everyone else.
func (a *App) ListLoans(actor domain.User) ([]domain.Loan, error) {
	if actor.Role == domain.RoleAdmin {
		return a.store.ListLoans()
	}
	return a.store.ListLoansByUser(actor.ID)
}

// ListLoansForBook returns a book's full loan history, newest first by id.
func (a *App) ListLoansForBook(bookID int64) ([]domain.Loan, error) {
	if _, err := a.GetBook(bookID); err != nil {
		return nil, err
	}
	return a.store.ListLoansByBook(bookID)
}

// Availability reports whether a book is free to lend and, if not, who holds it.
func (a *App) Availability(bookID int64) (ledger.Availability, error) {
	return a.ledger.Availability(bookID)
}
