package pagination

import (
	"context"
	"fmt"
)

// Page is one unit of a paginated response.
type Page[T any] struct {
	// Index is the 1-based page number.
	Index int
	// Items are the records of this page in server order.
	Items []T
	// TotalPages is the page count announced by the server. Only page 1 is
	// required to carry it.
	TotalPages int
}

// PageFetcher fetches a single page. Implementations own rate limiting and
// retries; an error returned here is terminal for that page.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, index int) (Page[T], error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc[T any] func(ctx context.Context, index int) (Page[T], error)

// FetchPage calls f.
func (f PageFetcherFunc[T]) FetchPage(ctx context.Context, index int) (Page[T], error) {
	return f(ctx, index)
}

// Outcome is the result of one scheduled page fetch: either a page or an
// error, never both.
type Outcome[T any] struct {
	Index int
	Page  Page[T]
	Err   error
}

// Success builds the outcome of a fetched page.
func Success[T any](page Page[T]) Outcome[T] {
	return Outcome[T]{Index: page.Index, Page: page}
}

// Failure builds the outcome of a page that could not be fetched.
func Failure[T any](index int, err error) Outcome[T] {
	return Outcome[T]{Index: index, Err: err}
}

// OK reports whether the outcome is a success.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// FailedPage identifies a page that contributed no records.
type FailedPage struct {
	Index int
	Err   error
}

// Result is the aggregate of one paginated export.
type Result[T any] struct {
	// Records are the items of all successful pages, ordered by page index.
	Records []T
	// FailedPages lists pages that failed terminally, ordered by page index.
	FailedPages []FailedPage
	// TotalPages is the page count discovered from page 1.
	TotalPages int
}

// Complete reports whether every page was fetched.
func (r Result[T]) Complete() bool {
	return len(r.FailedPages) == 0
}

// FailedIndices returns the indices of failed pages.
func (r Result[T]) FailedIndices() []int {
	indices := make([]int, 0, len(r.FailedPages))
	for _, fp := range r.FailedPages {
		indices = append(indices, fp.Index)
	}
	return indices
}

// BootstrapError is returned when page 1 cannot be fetched. Without it the
// page count is unknown, so no partial result exists.
type BootstrapError struct {
	Err error
}

// Error implements the error interface.
func (e *BootstrapError) Error() string {
	return fmt.Sprintf("pagination bootstrap failed: fetch page 1: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *BootstrapError) Unwrap() error {
	return e.Err
}
