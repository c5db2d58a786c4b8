package store

import (
	"time"

	"booklend/pkg/domain"
)

// BookQuery filters catalog searches. Zero values mean "no filter".
type BookQuery struct {
	Text      string // substring match over title, author and ISBN
	Author    string
	Publisher string
	Year      int
}

// Store defines persistence operations for users, books, and loans.
type Store interface {
	// users
	SaveUser(domain.User) (domain.User, error)
	GetUserByID(id int64) (domain.User, bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	HasUserEmail(email string) (bool, error)
	ListUsers() ([]domain.User, error)
	DeleteUser(id int64) error

	// books
	SaveBook(domain.Book) (domain.Book, error)
	GetBook(id int64) (domain.Book, bool, error)
	ListBooks() ([]domain.Book, error)
	ListBooksByOwner(ownerID int64) ([]domain.Book, error)
	SearchBooks(q BookQuery) ([]domain.Book, error)

	// DeleteBookCascade removes the book and every loan that references it in
	// one transaction.
	DeleteBookCascade(id int64) error

	// loans
	//
	// LendBook performs the availability check and the insert atomically so
	// that two concurrent lends for one book cannot both succeed. It returns
	// domain.ErrBookOnLoan when an active loan exists and domain.ErrBookNotFound
	// when the book is gone.
	LendBook(bookID, borrowerID int64, loanDate time.Time, returnDate *time.Time, now time.Time) (domain.Loan, error)
	GetLoan(id int64) (domain.Loan, bool, error)
	ListLoans() ([]domain.Loan, error)
	ListLoansByBook(bookID int64) ([]domain.Loan, error)
	ListLoansByUser(userID int64) ([]domain.Loan, error)
	SetLoanReturn(id int64, returnDate time.Time) (domain.Loan, error)
	DeleteLoan(id int64) error
}
