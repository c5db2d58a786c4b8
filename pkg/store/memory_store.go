package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"booklend/pkg/domain"
	"booklend/pkg/ledger"
)

// MemoryStore keeps everything in-process. It backs tests and small
// single-node deployments; the mutex gives it the same atomicity the Postgres
// store gets from transactions.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[int64]domain.User
	books      map[int64]domain.Book
	loans      map[int64]domain.Loan
	nextUserID int64
	nextBookID int64
	nextLoanID int64
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[int64]domain.User),
		books: make(map[int64]domain.Book),
		loans: make(map[int64]domain.Loan),
	}
}

// SaveUser registers or updates a user.
func (m *MemoryStore) SaveUser(u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		m.nextUserID++
		u.ID = m.nextUserID
		if u.CreatedAt.IsZero() {
			u.CreatedAt = time.Now().UTC()
		}
	}
	m.users[u.ID] = u
	return u, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id int64) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	_, ok, err := m.GetUserByEmail(email)
	return ok, err
}

// ListUsers returns all users ordered by id.
func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// DeleteUser removes a user.
func (m *MemoryStore) DeleteUser(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

// SaveBook stores or updates a book.
func (m *MemoryStore) SaveBook(b domain.Book) (domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if b.ID == 0 {
		m.nextBookID++
		b.ID = m.nextBookID
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
	}
	b.ISBN = domain.NormalizeISBN(b.ISBN)
	b.HasCover = b.CoverKey != ""
	b.UpdatedAt = now
	m.books[b.ID] = b
	return b, nil
}

// GetBook retrieves a book by ID.
func (m *MemoryStore) GetBook(id int64) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// ListBooks returns all books ordered by id.
func (m *MemoryStore) ListBooks() ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collectBooks(func(domain.Book) bool { return true }), nil
}

// ListBooksByOwner returns books filtered by owner ID.
func (m *MemoryStore) ListBooksByOwner(ownerID int64) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collectBooks(func(b domain.Book) bool { return b.OwnerID == ownerID }), nil
}

// SearchBooks applies the query filters in memory.
func (m *MemoryStore) SearchBooks(q BookQuery) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text := strings.ToLower(strings.TrimSpace(q.Text))
	return m.collectBooks(func(b domain.Book) bool {
		if text != "" {
			haystack := strings.ToLower(b.Title + " " + b.Author + " " + b.ISBN)
			if !strings.Contains(haystack, text) {
				return false
			}
		}
		if q.Author != "" && !strings.EqualFold(b.Author, q.Author) {
			return false
		}
		if q.Publisher != "" && !strings.EqualFold(b.Publisher, q.Publisher) {
			return false
		}
		if q.Year != 0 && b.PublishYear != q.Year {
			return false
		}
		return true
	}), nil
}

func (m *MemoryStore) collectBooks(keep func(domain.Book) bool) []domain.Book {
	res := make([]domain.Book, 0, len(m.books))
	for _, b := range m.books {
		if keep(b) {
			res = append(res, b)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// DeleteBookCascade removes a book and its loan history under one lock.
func (m *MemoryStore) DeleteBookCascade(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, id)
	for loanID, loan := range m.loans {
		if loan.BookID == id {
			delete(m.loans, loanID)
		}
	}
	return nil
}

// LendBook checks availability and inserts the loan under one lock.
func (m *MemoryStore) LendBook(bookID, borrowerID int64, loanDate time.Time, returnDate *time.Time, now time.Time) (domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[bookID]; !ok {
		return domain.Loan{}, domain.ErrBookNotFound
	}
	history := make([]domain.Loan, 0, 4)
	for _, loan := range m.loans {
		if loan.BookID == bookID {
			history = append(history, loan)
		}
	}
	if _, active := ledger.MostRecentActive(history, now); active {
		return domain.Loan{}, domain.ErrBookOnLoan
	}
	m.nextLoanID++
	loan := domain.Loan{
		ID:         m.nextLoanID,
		BookID:     bookID,
		UserID:     borrowerID,
		LoanDate:   loanDate.UTC(),
		ReturnDate: returnDate,
	}
	m.loans[loan.ID] = loan
	return loan, nil
}

// GetLoan retrieves a loan by ID.
func (m *MemoryStore) GetLoan(id int64) (domain.Loan, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loan, ok := m.loans[id]
	return loan, ok, nil
}

// ListLoans returns every loan ordered by id.
func (m *MemoryStore) ListLoans() ([]domain.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collectLoans(func(domain.Loan) bool { return true }), nil
}

// ListLoansByBook returns the loan history of a book.
func (m *MemoryStore) ListLoansByBook(bookID int64) ([]domain.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collectLoans(func(l domain.Loan) bool { return l.BookID == bookID }), nil
}

// ListLoansByUser returns every loan borrowed by a user.
func (m *MemoryStore) ListLoansByUser(userID int64) ([]domain.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collectLoans(func(l domain.Loan) bool { return l.UserID == userID }), nil
}

func (m *MemoryStore) collectLoans(keep func(domain.Loan) bool) []domain.Loan {
	res := make([]domain.Loan, 0, len(m.loans))
	for _, loan := range m.loans {
		if keep(loan) {
			res = append(res, loan)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// SetLoanReturn stamps the return date.
func (m *MemoryStore) SetLoanReturn(id int64, returnDate time.Time) (domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.loans[id]
	if !ok {
		return domain.Loan{}, domain.ErrLoanNotFound
	}
	at := returnDate.UTC()
	loan.ReturnDate = &at
	m.loans[id] = loan
	return loan, nil
}

// DeleteLoan removes a loan.
func (m *MemoryStore) DeleteLoan(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.loans, id)
	return nil
}
