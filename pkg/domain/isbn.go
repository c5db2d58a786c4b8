package domain

import "strings"

// NormalizeISBN strips separators so "978-0-123" and "978 0 123" compare
// equal. It does not validate check digits; providers tolerate loose input.
func NormalizeISBN(isbn string) string {
	var b strings.Builder
	b.Grow(len(isbn))
	for _, r := range isbn {
		if r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
