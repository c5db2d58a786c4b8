// Package catalog gates book mutations by ownership and referential
// constraints: who may edit, what counts as a duplicate, and when deletion is
// safe.
package catalog

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"booklend/pkg/clock"
	"booklend/pkg/domain"
	"booklend/pkg/ledger"
)

// Store is the slice of persistence the catalog rules need.
type Store interface {
	GetBook(id int64) (domain.Book, bool, error)
	ListBooksByOwner(ownerID int64) ([]domain.Book, error)
	ListLoansByBook(bookID int64) ([]domain.Loan, error)
	ListLoansByUser(userID int64) ([]domain.Loan, error)

	// DeleteBookCascade removes the book and all of its historical loans in
	// one transaction; on failure nothing is removed.
	DeleteBookCascade(id int64) error
}

type Catalog struct {
	store Store
	clock clock.Clock
	log   *slog.Logger
}

func New(store Store, clk clock.Clock, log *slog.Logger) *Catalog {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Catalog{store: store, clock: clk, log: log}
}

// AuthorizeMutation allows the owner of a book and administrators.
func AuthorizeMutation(actor domain.User, book domain.Book) bool {
	return actor.Role == domain.RoleAdmin || (book.OwnerID != 0 && actor.ID == book.OwnerID)
}

// CheckDuplicate reports whether the owner already catalogued this book.
// Matching is scoped to one owner: two owners may hold the same title or ISBN.
// A non-empty ISBN wins; without one the title decides.
func (c *Catalog) CheckDuplicate(ownerID int64, isbn, title string) (bool, error) {
	books, err := c.store.ListBooksByOwner(ownerID)
	if err != nil {
		return false, fmt.Errorf("list owner books: %w", err)
	}
	isbn = domain.NormalizeISBN(isbn)
	title = strings.TrimSpace(title)
	for _, b := range books {
		if isbn != "" {
			if domain.NormalizeISBN(b.ISBN) == isbn {
				return true, nil
			}
			continue
		}
		if b.ISBN == "" && strings.EqualFold(strings.TrimSpace(b.Title), title) {
			return true, nil
		}
	}
	return false, nil
}

// CanDeleteBook forbids deleting a book that is currently out on loan.
func (c *Catalog) CanDeleteBook(bookID int64) (bool, error) {
	loans, err := c.store.ListLoansByBook(bookID)
	if err != nil {
		return false, fmt.Errorf("list loans: %w", err)
	}
	_, active := ledger.MostRecentActive(loans, c.clock.Now())
	return !active, nil
}

// DeleteBook removes a book together with its returned-loan history, in one
// atomic unit. It fails with ErrBookOnLoan while a loan is active.
func (c *Catalog) DeleteBook(bookID int64) error {
	if _, ok, err := c.store.GetBook(bookID); err != nil {
		return fmt.Errorf("get book: %w", err)
	} else if !ok {
		return domain.ErrBookNotFound
	}
	ok, err := c.CanDeleteBook(bookID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrBookOnLoan
	}
	if err := c.store.DeleteBookCascade(bookID); err != nil {
		return fmt.Errorf("cascade delete: %w", err)
	}
	c.log.Info("book deleted with loan history", "bookId", bookID)
	return nil
}

// VisibleBooks returns the union of books the actor owns and books the actor
// currently borrows, de-duplicated by book id and sorted by id.
func (c *Catalog) VisibleBooks(actorID int64) ([]domain.Book, error) {
	owned, err := c.store.ListBooksByOwner(actorID)
	if err != nil {
		return nil, fmt.Errorf("list owned: %w", err)
	}
	seen := make(map[int64]domain.Book, len(owned))
	for _, b := range owned {
		seen[b.ID] = b
	}

	loans, err := c.store.ListLoansByUser(actorID)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	now := c.clock.Now()
	for _, loan := range loans {
		if !ledger.IsActive(loan, now) {
			continue
		}
		if _, ok := seen[loan.BookID]; ok {
			continue
		}
		book, ok, err := c.store.GetBook(loan.BookID)
		if err != nil {
			return nil, fmt.Errorf("get borrowed book: %w", err)
		}
		if ok {
			seen[book.ID] = book
		}
	}

	books := make([]domain.Book, 0, len(seen))
	for _, b := range seen {
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books, nil
}

// UserHasActiveLoans reports whether the user currently holds any book.
// Deleting such a user is blocked.
func (c *Catalog) UserHasActiveLoans(userID int64) (bool, error) {
	loans, err := c.store.ListLoansByUser(userID)
	if err != nil {
		return false, fmt.Errorf("list loans: %w", err)
	}
	now := c.clock.Now()
	for _, loan := range loans {
		if ledger.IsActive(loan, now) {
			return true, nil
		}
	}
	return false, nil
}
