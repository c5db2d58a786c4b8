package app

import "errors"

var (
	// ErrNoCover indicates a book has no stored cover image.
	ErrNoCover = errors.New("no cover available")
	// ErrInvalidInput indicates a request failed validation.
	ErrInvalidInput = errors.New("invalid input")
)
