package domain

import "errors"

// Rejections surfaced to callers. The kinds stay distinguishable because the
// UI renders different guidance for each of them.
var (
	// ErrBookNotFound indicates the referenced book id does not exist.
	ErrBookNotFound = errors.New("book not found")
	// ErrUserNotFound indicates the referenced user id does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrLoanNotFound indicates the referenced loan id does not exist.
	ErrLoanNotFound = errors.New("loan not found")
	// ErrBookOnLoan indicates the book already has an active loan.
	ErrBookOnLoan = errors.New("book is already loaned out")
	// ErrDuplicateBook indicates the owner already catalogued this ISBN or title.
	ErrDuplicateBook = errors.New("duplicate book for owner")
	// ErrForbidden indicates the actor may not perform the mutation.
	ErrForbidden = errors.New("not allowed")
	// ErrUserHasLoans blocks deleting a user holding active loans.
	ErrUserHasLoans = errors.New("user has outstanding loans")
	// ErrNoMetadata is returned after every provider in the cascade came up empty.
	ErrNoMetadata = errors.New("no metadata found")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
)
