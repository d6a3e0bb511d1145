// Package pagination provides concurrent fetching of page-numbered endpoints.
//
// The page count is only known after page 1 has been fetched, so page 1 is
// always fetched synchronously first. The remaining pages are then fetched
// concurrently, one goroutine per page, and merged back in page order. Pacing
// and retries are the PageFetcher's job: a fetcher built on a shared rate
// limiter keeps the request rate bounded however many goroutines are waiting.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher[tosdr.ServiceMetadata](client.ServiceMetadataPages(c), pagination.DefaultConfig("services"))
//	result, err := fetcher.FetchAll(ctx)
//	if err != nil {
//		// page 1 failed, nothing to export
//	}
//	// result.Records holds every record of every successful page
//	// result.FailedPages lists the pages that were dropped
//
// The batch fetcher:
//   - Fetches page 1 to learn the total page count
//   - Starts one task per remaining page, in ascending page order
//   - Never cancels sibling tasks when one page fails
//   - Aggregates records in page order and reports failed pages
//
// Failed pages are not re-fetched; the result is best-effort.
package pagination
