package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"booklend/pkg/domain"
	"booklend/pkg/metadata"
)

// RefreshResult summarizes a metadata refresh run.
type RefreshResult struct {
	Updated int     `json:"updated"`
	Skipped int     `json:"skipped"`
	Failed  []int64 `json:"failed,omitempty"`
}

// RefreshMetadata re-runs the provider cascade over the actor's books.
// Administrators refresh the whole catalog. With onlyMissing set, books that
// already carry full metadata are skipped. Books without an ISBN are always
// skipped; the cascade has nothing to look up.
func (a *App) RefreshMetadata(ctx context.Context, actor domain.User, onlyMissing bool) (RefreshResult, error) {
	var (
		books []domain.Book
		err   error
	)
	if actor.Role == domain.RoleAdmin {
		books, err = a.store.ListBooks()
	} else {
		books, err = a.store.ListBooksByOwner(actor.ID)
	}
	if err != nil {
		return RefreshResult{}, fmt.Errorf("list books: %w", err)
	}

	var (
		mu     sync.Mutex
		result RefreshResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.refreshPar)
	for _, book := range books {
		if book.ISBN == "" || (onlyMissing && !metadataMissing(book)) {
			result.Skipped++
			continue
		}
		g.Go(func() error {
			ok := a.refreshBook(gctx, book)
			mu.Lock()
			defer mu.Unlock()
			if ok {
				result.Updated++
			} else {
				result.Failed = append(result.Failed, book.ID)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	a.log.Info("metadata refresh finished", "updated", result.Updated, "skipped", result.Skipped, "failed", len(result.Failed))
	return result, nil
}

// refreshBook resolves one book and fills its empty fields. Existing values
// are never overwritten; refresh completes records, it does not rewrite them.
func (a *App) refreshBook(ctx context.Context, book domain.Book) bool {
	resolved, err := a.resolver.Resolve(ctx, book.ISBN)
	if err != nil {
		if !errors.Is(err, domain.ErrNoMetadata) {
			a.log.Warn("metadata refresh failed", "bookId", book.ID, "isbn", book.ISBN, "error", err)
		}
		return false
	}

	if book.Title == "" || book.Title == metadata.PlaceholderTitle {
		book.Title = resolved.Title
	}
	if book.Author == "" || book.Author == metadata.PlaceholderAuthor {
		book.Author = resolved.Author
	}
	if book.Description == "" {
		book.Description = resolved.Description
	}
	if book.Publisher == "" {
		book.Publisher = resolved.Publisher
	}
	if book.PublishYear == 0 {
		book.PublishYear = resolved.PublishYear
	}
	if snapshot, merr := json.Marshal(resolved.Result); merr == nil {
		book.Enrichment = snapshot
	}

	if book.CoverKey == "" && len(resolved.Cover) > 0 {
		key := coverKey(book.ID)
		if err := a.objects.Put(ctx, key, bytes.NewReader(resolved.Cover), int64(len(resolved.Cover)), "image/jpeg"); err != nil {
			a.log.Warn("cover upload failed", "bookId", book.ID, "error", err)
		} else {
			book.CoverKey = key
		}
	}

	if _, err := a.store.SaveBook(book); err != nil {
		a.log.Warn("metadata refresh save failed", "bookId", book.ID, "error", err)
		return false
	}
	return true
}

// metadataMissing reports whether any enrichable field is still empty or a
// placeholder.
func metadataMissing(b domain.Book) bool {
	return b.Title == "" || b.Title == metadata.PlaceholderTitle ||
		b.Author == "" || b.Author == metadata.PlaceholderAuthor ||
		b.Description == "" || b.Publisher == "" || b.PublishYear == 0 ||
		b.CoverKey == ""
}
