package domain

import (
	"encoding/json"
	"time"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// Book is a single physical copy in an owner's collection. The model carries
// at most one copy per record; multi-copy inventory is intentionally not
// supported because it would change the per-owner uniqueness rules.
type Book struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	Description string          `json:"description,omitempty"`
	ISBN        string          `json:"isbn,omitempty"`
	Publisher   string          `json:"publisher,omitempty"`
	PublishYear int             `json:"publishYear,omitempty"`
	OwnerID     int64           `json:"ownerId,omitempty"`
	CoverKey    string          `json:"-"`
	HasCover    bool            `json:"hasCover"`
	Enrichment  json.RawMessage `json:"-"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type User struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         UserRole   `json:"role"`
	Active       bool       `json:"active"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Loan links a book to its borrower. A nil ReturnDate or a ReturnDate in the
// future means the loan is still out; a past ReturnDate means it was returned.
// Activity must only be decided through ledger.IsActive.
type Loan struct {
	ID         int64      `json:"id"`
	BookID     int64      `json:"bookId"`
	UserID     int64      `json:"userId"`
	LoanDate   time.Time  `json:"loanDate"`
	ReturnDate *time.Time `json:"returnDate,omitempty"`
}

// BookPatch carries optional field updates for a book. Nil fields are left
// untouched.
type BookPatch struct {
	Title       *string `json:"title,omitempty"`
	Author      *string `json:"author,omitempty"`
	Description *string `json:"description,omitempty"`
	ISBN        *string `json:"isbn,omitempty"`
	Publisher   *string `json:"publisher,omitempty"`
	PublishYear *int    `json:"publishYear,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p BookPatch) IsZero() bool {
	return p.Title == nil && p.Author == nil && p.Description == nil &&
		p.ISBN == nil && p.Publisher == nil && p.PublishYear == nil
}

// Apply copies the non-nil patch fields onto the book.
func (p BookPatch) Apply(b *Book) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.ISBN != nil {
		b.ISBN = *p.ISBN
	}
	if p.Publisher != nil {
		b.Publisher = *p.Publisher
	}
	if p.PublishYear != nil {
		b.PublishYear = *p.PublishYear
	}
}
