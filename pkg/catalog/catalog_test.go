package catalog

import (
	"errors"
	"testing"
	"time"

	"booklend/pkg/clock"
	"booklend/pkg/domain"
	"booklend/pkg/store"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestCatalog(t *testing.T) (*Catalog, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	return New(s, clock.Fixed{At: testNow}, nil), s
}

func mustSaveBook(t *testing.T, s *store.MemoryStore, b domain.Book) domain.Book {
	t.Helper()
	saved, err := s.SaveBook(b)
	if err != nil {
		t.Fatalf("save book: %v", err)
	}
	return saved
}

func TestAuthorizeMutation(t *testing.T) {
	owner := domain.User{ID: 1, Role: domain.RoleUser}
	other := domain.User{ID: 2, Role: domain.RoleUser}
	admin := domain.User{ID: 3, Role: domain.RoleAdmin}
	book := domain.Book{ID: 10, OwnerID: 1}

	if !AuthorizeMutation(owner, book) {
		t.Fatalf("owner should be authorized")
	}
	if AuthorizeMutation(other, book) {
		t.Fatalf("non-owner should not be authorized")
	}
	if !AuthorizeMutation(admin, book) {
		t.Fatalf("admin should be authorized")
	}
	if AuthorizeMutation(owner, domain.Book{ID: 11}) {
		t.Fatalf("ownerless book must not match a regular user")
	}
}

func TestCheckDuplicateScopedToOwner(t *testing.T) {
	c, s := newTestCatalog(t)
	mustSaveBook(t, s, domain.Book{Title: "Dune", ISBN: "9780441172719", OwnerID: 1})

	dup, err := c.CheckDuplicate(1, "978-0-441-17271-9", "")
	if err != nil {
		t.Fatalf("check duplicate: %v", err)
	}
	if !dup {
		t.Fatalf("same isbn for same owner should be a duplicate")
	}

	// A different owner may catalog the same edition.
	dup, err = c.CheckDuplicate(2, "9780441172719", "")
	if err != nil {
		t.Fatalf("check duplicate: %v", err)
	}
	if dup {
		t.Fatalf("same isbn for another owner should not be a duplicate")
	}
}

func TestCheckDuplicateFallsBackToTitle(t *testing.T) {
	c, s := newTestCatalog(t)
	mustSaveBook(t, s, domain.Book{Title: "Hyperion", OwnerID: 1})
	mustSaveBook(t, s, domain.Book{Title: "Ilium", ISBN: "9780380978939", OwnerID: 1})

	dup, err := c.CheckDuplicate(1, "", "  hyperion ")
	if err != nil {
		t.Fatalf("check duplicate: %v", err)
	}
	if !dup {
		t.Fatalf("title match ignoring case and spacing should be a duplicate")
	}

	// Title matching only considers books without an ISBN.
	dup, err = c.CheckDuplicate(1, "", "Ilium")
	if err != nil {
		t.Fatalf("check duplicate: %v", err)
	}
	if dup {
		t.Fatalf("title of an isbn-bearing book should not match")
	}
}

func TestDeleteBookBlockedWhileOnLoan(t *testing.T) {
	c, s := newTestCatalog(t)
	book := mustSaveBook(t, s, domain.Book{Title: "Dune", OwnerID: 1})
	if _, err := s.SaveUser(domain.User{Name: "Ada"}); err != nil {
		t.Fatalf("save user: %v", err)
	}
	due := testNow.Add(24 * time.Hour)
	loan, err := s.LendBook(book.ID, 1, testNow, &due, testNow)
	if err != nil {
		t.Fatalf("lend: %v", err)
	}

	if err := c.DeleteBook(book.ID); !errors.Is(err, domain.ErrBookOnLoan) {
		t.Fatalf("err = %v, want ErrBookOnLoan", err)
	}

	returned := testNow.Add(-time.Minute)
	if _, err := s.SetLoanReturn(loan.ID, returned); err != nil {
		t.Fatalf("set return: %v", err)
	}
	if err := c.DeleteBook(book.ID); err != nil {
		t.Fatalf("delete after return: %v", err)
	}

	// The cascade removes the loan history too.
	loans, err := s.ListLoansByBook(book.ID)
	if err != nil {
		t.Fatalf("list loans: %v", err)
	}
	if len(loans) != 0 {
		t.Fatalf("loan history survived the cascade: %d rows", len(loans))
	}
}

func TestDeleteBookUnknown(t *testing.T) {
	c, _ := newTestCatalog(t)
	if err := c.DeleteBook(99); !errors.Is(err, domain.ErrBookNotFound) {
		t.Fatalf("err = %v, want ErrBookNotFound", err)
	}
}

func TestVisibleBooksUnionDeduped(t *testing.T) {
	c, s := newTestCatalog(t)
	owned := mustSaveBook(t, s, domain.Book{Title: "Owned", OwnerID: 1})
	borrowed := mustSaveBook(t, s, domain.Book{Title: "Borrowed", OwnerID: 2})
	mustSaveBook(t, s, domain.Book{Title: "Unrelated", OwnerID: 3})
	// Self-loan: owned and borrowed must not produce a duplicate entry.
	selfLoaned := mustSaveBook(t, s, domain.Book{Title: "Self", OwnerID: 1})

	due := testNow.Add(24 * time.Hour)
	if _, err := s.LendBook(borrowed.ID, 1, testNow, &due, testNow); err != nil {
		t.Fatalf("lend: %v", err)
	}
	if _, err := s.LendBook(selfLoaned.ID, 1, testNow, &due, testNow); err != nil {
		t.Fatalf("lend: %v", err)
	}
	// A returned loan does not keep a book visible.
	past := testNow.Add(-time.Minute)
	returnedBook := mustSaveBook(t, s, domain.Book{Title: "Returned", OwnerID: 2})
	if _, err := s.LendBook(returnedBook.ID, 1, testNow.Add(-48*time.Hour), &past, testNow); err != nil {
		t.Fatalf("lend: %v", err)
	}

	books, err := c.VisibleBooks(1)
	if err != nil {
		t.Fatalf("visible books: %v", err)
	}
	if len(books) != 3 {
		t.Fatalf("visible books = %d, want 3", len(books))
	}
	want := []int64{owned.ID, borrowed.ID, selfLoaned.ID}
	for i, b := range books {
		if b.ID != want[i] {
			t.Fatalf("books[%d].ID = %d, want %d", i, b.ID, want[i])
		}
	}
}

func TestUserHasActiveLoans(t *testing.T) {
	c, s := newTestCatalog(t)
	book := mustSaveBook(t, s, domain.Book{Title: "Dune", OwnerID: 2})

	busy, err := c.UserHasActiveLoans(1)
	if err != nil {
		t.Fatalf("user has active loans: %v", err)
	}
	if busy {
		t.Fatalf("user without loans reported busy")
	}

	due := testNow.Add(24 * time.Hour)
	loan, err := s.LendBook(book.ID, 1, testNow, &due, testNow)
	if err != nil {
		t.Fatalf("lend: %v", err)
	}
	busy, err = c.UserHasActiveLoans(1)
	if err != nil {
		t.Fatalf("user has active loans: %v", err)
	}
	if !busy {
		t.Fatalf("user holding a book reported free")
	}

	if _, err := s.SetLoanReturn(loan.ID, testNow.Add(-time.Minute)); err != nil {
		t.Fatalf("set return: %v", err)
	}
	busy, err = c.UserHasActiveLoans(1)
	if err != nil {
		t.Fatalf("user has active loans: %v", err)
	}
	if busy {
		t.Fatalf("user reported busy after returning")
	}
}
