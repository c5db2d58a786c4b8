package app

import (
	"context"
	"errors"

	"booklend/pkg/catalog"
	"booklend/pkg/domain"
)

// BulkResult reports per-book outcomes of a bulk mutation. Each requested id
// lands in exactly one bucket.
type BulkResult struct {
	Updated         int     `json:"updated,omitempty"`
	Deleted         int     `json:"deleted,omitempty"`
	SkippedNotOwned []int64 `json:"skippedNotOwned,omitempty"`
	SkippedOnLoan   []int64 `json:"skippedOnLoan,omitempty"`
	Failed          []int64 `json:"failed,omitempty"`
}

// BulkUpdateBooks applies one patch to many books. Books the actor may not
// edit are skipped, not failed; the rest of the batch proceeds.
func (a *App) BulkUpdateBooks(actor domain.User, ids []int64, patch domain.BookPatch) (BulkResult, error) {
	var result BulkResult
	for _, id := range ids {
		_, err := a.UpdateBook(actor, id, patch)
		switch {
		case err == nil:
			result.Updated++
		case errors.Is(err, domain.ErrForbidden):
			result.SkippedNotOwned = append(result.SkippedNotOwned, id)
		default:
			result.Failed = append(result.Failed, id)
		}
	}
	return result, nil
}

// BulkDeleteBooks removes many books. Per-book guards still apply: books the
// actor does not own are skipped, as are books currently out on loan.
func (a *App) BulkDeleteBooks(ctx context.Context, actor domain.User, ids []int64) (BulkResult, error) {
	var result BulkResult
	for _, id := range ids {
		book, err := a.GetBook(id)
		if err != nil {
			result.Failed = append(result.Failed, id)
			continue
		}
		if !catalog.AuthorizeMutation(actor, book) {
			result.SkippedNotOwned = append(result.SkippedNotOwned, id)
			continue
		}
		err = a.catalog.DeleteBook(id)
		switch {
		case err == nil:
			result.Deleted++
			if book.CoverKey != "" {
				if derr := a.objects.Delete(ctx, book.CoverKey); derr != nil {
					a.log.Warn("cover cleanup failed", "bookId", id, "error", derr)
				}
			}
		case errors.Is(err, domain.ErrBookOnLoan):
			result.SkippedOnLoan = append(result.SkippedOnLoan, id)
		default:
			result.Failed = append(result.Failed, id)
		}
	}
	return result, nil
}
