package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/tosdr-export/pkg/pagination"
	"github.com/Sternrassler/tosdr-export/pkg/tosdr"
)

// PageDecoder turns a page response body into its page info and records.
type PageDecoder[T any] func(body []byte) (tosdr.PageInfo, []T, error)

// PageFetcher fetches single pages of one paginated endpoint. Every attempt
// waits on the client's shared limiter; throttled attempts are retried by the
// client's RetryPolicy. It implements pagination.PageFetcher.
type PageFetcher[T any] struct {
	client   *Client
	endpoint string
	decode   PageDecoder[T]
}

// NewPageFetcher creates a fetcher for endpoint.
func NewPageFetcher[T any](c *Client, endpoint string, decode PageDecoder[T]) *PageFetcher[T] {
	return &PageFetcher[T]{
		client:   c,
		endpoint: endpoint,
		decode:   decode,
	}
}

// ServiceMetadataPages returns a fetcher for the paginated service listing.
func ServiceMetadataPages(c *Client) *PageFetcher[tosdr.ServiceMetadata] {
	return NewPageFetcher(c, ServicesEndpoint, tosdr.DecodeServicePage)
}

// CasePages returns a fetcher for the paginated case listing.
func CasePages(c *Client) *PageFetcher[tosdr.Case] {
	return NewPageFetcher(c, CasesEndpoint, tosdr.DecodeCasePage)
}

// FetchPage fetches page index. Any returned error is a *PageFetchError and
// is terminal for that page.
func (f *PageFetcher[T]) FetchPage(ctx context.Context, index int) (pagination.Page[T], error) {
	logger := f.client.logger.With().
		Str("endpoint", f.endpoint).
		Int("page", index).
		Logger()

	query := url.Values{"page": []string{strconv.Itoa(index)}}

	var page pagination.Page[T]
	err := f.client.config.Retry.Do(ctx, logger, func(attempt int) error {
		if err := f.client.limiter.Wait(ctx); err != nil {
			return err
		}

		logger.Info().Int("attempt", attempt).Msgf("Fetching page %d", index)

		body, err := f.client.get(ctx, f.endpoint, query)
		if err != nil {
			return err
		}

		info, items, err := f.decode(body)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		if info.Current != index {
			errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
			return fmt.Errorf("%w: requested page %d, got page %d", ErrInvalidPayload, index, info.Current)
		}

		page = pagination.Page[T]{
			Index:      index,
			Items:      items,
			TotalPages: info.TotalPages(),
		}
		return nil
	})
	if err != nil {
		logger.Error().
			Err(err).
			Str("error_class", string(errorClassOf(err))).
			Msgf("Failed to fetch page %d", index)
		return pagination.Page[T]{}, &PageFetchError{Endpoint: f.endpoint, Page: index, Err: err}
	}

	return page, nil
}
