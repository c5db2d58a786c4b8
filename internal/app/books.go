package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"booklend/pkg/catalog"
	"booklend/pkg/domain"
	"booklend/pkg/metadata"
	"booklend/pkg/store"
)

// BookInput is a manual catalog entry.
type BookInput struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	ISBN        string `json:"isbn"`
	Publisher   string `json:"publisher"`
	PublishYear int    `json:"publishYear"`
}

// AddBook catalogs a manually described book under the actor's ownership.
func (a *App) AddBook(actor domain.User, in BookInput) (domain.Book, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Book{}, fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	dup, err := a.catalog.CheckDuplicate(actor.ID, in.ISBN, title)
	if err != nil {
		return domain.Book{}, err
	}
	if dup {
		return domain.Book{}, domain.ErrDuplicateBook
	}
	book := domain.Book{
		Title:       title,
		Author:      strings.TrimSpace(in.Author),
		Description: in.Description,
		ISBN:        domain.NormalizeISBN(in.ISBN),
		Publisher:   in.Publisher,
		PublishYear: in.PublishYear,
		OwnerID:     actor.ID,
	}
	saved, err := a.store.SaveBook(book)
	if err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	a.log.Info("book added", "bookId", saved.ID, "ownerId", actor.ID, "title", saved.Title)
	return saved, nil
}

// AddBookByISBN catalogs a book from provider metadata. The duplicate check
// runs before any network call. When every provider comes up empty the book is
// still created, carrying placeholder title and author, so the record can be
// completed by hand later.
func (a *App) AddBookByISBN(ctx context.Context, actor domain.User, isbn string) (domain.Book, error) {
	isbn = domain.NormalizeISBN(isbn)
	if isbn == "" {
		return domain.Book{}, fmt.Errorf("%w: isbn required", ErrInvalidInput)
	}
	dup, err := a.catalog.CheckDuplicate(actor.ID, isbn, "")
	if err != nil {
		return domain.Book{}, err
	}
	if dup {
		return domain.Book{}, domain.ErrDuplicateBook
	}

	resolved, err := a.resolver.Resolve(ctx, isbn)
	if err != nil && !errors.Is(err, domain.ErrNoMetadata) {
		return domain.Book{}, fmt.Errorf("resolve metadata: %w", err)
	}

	book := domain.Book{ISBN: isbn, OwnerID: actor.ID}
	if errors.Is(err, domain.ErrNoMetadata) {
		a.log.Warn("no metadata found, cataloging with placeholders", "isbn", isbn)
		book.Title = metadata.PlaceholderTitle
		book.Author = metadata.PlaceholderAuthor
	} else {
		book.Title = resolved.Title
		book.Author = resolved.Author
		book.Description = resolved.Description
		book.Publisher = resolved.Publisher
		book.PublishYear = resolved.PublishYear
		if snapshot, merr := json.Marshal(resolved.Result); merr == nil {
			book.Enrichment = snapshot
		}
	}

	saved, err := a.store.SaveBook(book)
	if err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}

	if len(resolved.Cover) > 0 {
		key := coverKey(saved.ID)
		if err := a.objects.Put(ctx, key, bytes.NewReader(resolved.Cover), int64(len(resolved.Cover)), "image/jpeg"); err != nil {
			a.log.Warn("cover upload failed", "bookId", saved.ID, "error", err)
		} else {
			saved.CoverKey = key
			if saved, err = a.store.SaveBook(saved); err != nil {
				return domain.Book{}, fmt.Errorf("save cover key: %w", err)
			}
		}
	}
	a.log.Info("book added from metadata", "bookId", saved.ID, "ownerId", actor.ID, "isbn", isbn, "source", resolved.Source)
	return saved, nil
}

// GetBook fetches a single book.
func (a *App) GetBook(id int64) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("get book: %w", err)
	}
	if !ok {
		return domain.Book{}, domain.ErrBookNotFound
	}
	return book, nil
}

// ListBooks returns the whole shared catalog.
func (a *App) ListBooks() ([]domain.Book, error) {
	return a.store.ListBooks()
}

// VisibleBooks returns the actor's shelf: books they own plus books they
// currently borrow.
func (a *App) VisibleBooks(actorID int64) ([]domain.Book, error) {
	return a.catalog.VisibleBooks(actorID)
}

// Search status filters.
const (
	StatusAvailable = "available"
	StatusLoaned    = "loaned"
)

// SearchBooks filters the catalog, optionally narrowing to available or loaned
// copies.
func (a *App) SearchBooks(q store.BookQuery, status string) ([]domain.Book, error) {
	books, err := a.store.SearchBooks(q)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	if status != StatusAvailable && status != StatusLoaned {
		return books, nil
	}
	filtered := books[:0]
	for _, b := range books {
		_, active, err := a.ledger.FindActiveLoan(b.ID)
		if err != nil {
			return nil, err
		}
		if (status == StatusLoaned) == active {
			filtered = append(filtered, b)
		}
	}
	return filtered, nil
}

// UpdateBook applies a partial update. Only the owner or an administrator may
// edit a book.
func (a *App) UpdateBook(actor domain.User, id int64, patch domain.BookPatch) (domain.Book, error) {
	book, err := a.GetBook(id)
	if err != nil {
		return domain.Book{}, err
	}
	if !catalog.AuthorizeMutation(actor, book) {
		return domain.Book{}, domain.ErrForbidden
	}
	if patch.IsZero() {
		return book, nil
	}
	patch.Apply(&book)
	book.ISBN = domain.NormalizeISBN(book.ISBN)
	if strings.TrimSpace(book.Title) == "" {
		return domain.Book{}, fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	saved, err := a.store.SaveBook(book)
	if err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return saved, nil
}

// DeleteBook removes a book and its loan history. Fails while the book is out
// on loan. The stored cover is cleaned up best-effort afterwards.
func (a *App) DeleteBook(ctx context.Context, actor domain.User, id int64) error {
	book, err := a.GetBook(id)
	if err != nil {
		return err
	}
	if !catalog.AuthorizeMutation(actor, book) {
		return domain.ErrForbidden
	}
	if err := a.catalog.DeleteBook(id); err != nil {
		return err
	}
	if book.CoverKey != "" {
		if err := a.objects.Delete(ctx, book.CoverKey); err != nil {
			a.log.Warn("cover cleanup failed", "bookId", id, "key", book.CoverKey, "error", err)
		}
	}
	return nil
}

// UploadCover normalizes and stores a cover image for a book.
func (a *App) UploadCover(ctx context.Context, actor domain.User, bookID int64, data []byte) (domain.Book, error) {
	book, err := a.GetBook(bookID)
	if err != nil {
		return domain.Book{}, err
	}
	if !catalog.AuthorizeMutation(actor, book) {
		return domain.Book{}, domain.ErrForbidden
	}
	normalized, err := a.normalizer.Normalize(data)
	if err != nil {
		return domain.Book{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	key := coverKey(bookID)
	if err := a.objects.Put(ctx, key, bytes.NewReader(normalized), int64(len(normalized)), "image/jpeg"); err != nil {
		return domain.Book{}, fmt.Errorf("store cover: %w", err)
	}
	book.CoverKey = key
	saved, err := a.store.SaveBook(book)
	if err != nil {
		return domain.Book{}, fmt.Errorf("save cover key: %w", err)
	}
	return saved, nil
}

// GetCover returns the stored cover bytes for a book.
func (a *App) GetCover(ctx context.Context, bookID int64) ([]byte, error) {
	book, err := a.GetBook(bookID)
	if err != nil {
		return nil, err
	}
	if book.CoverKey == "" {
		return nil, ErrNoCover
	}
	data, err := a.objects.Get(ctx, book.CoverKey)
	if err != nil {
		return nil, fmt.Errorf("get cover: %w", err)
	}
	return data, nil
}

func coverKey(bookID int64) string {
	return fmt.Sprintf("covers/%d.jpg", bookID)
}
