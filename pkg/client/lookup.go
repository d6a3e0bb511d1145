package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/tosdr-export/pkg/cache"
	"github.com/Sternrassler/tosdr-export/pkg/tosdr"
)

// GetService looks up a single service by id. Requests go through the same
// limiter and retry policy as page fetches. When Redis is configured, results
// are cached for LookupCacheTTL.
func (c *Client) GetService(ctx context.Context, id int) (tosdr.Service, error) {
	if id <= 0 {
		return tosdr.Service{}, fmt.Errorf("invalid service id %d", id)
	}

	logger := c.logger.With().
		Str("endpoint", ServicesEndpoint).
		Int("service_id", id).
		Logger()

	key := cache.ServiceKey(id)
	if c.cache != nil {
		entry, err := c.cache.Get(ctx, key)
		switch {
		case err == nil:
			svc, decodeErr := tosdr.DecodeService(json.RawMessage(entry.Data))
			if decodeErr == nil {
				logger.Debug().Msg("Service served from cache")
				return svc, nil
			}
			logger.Warn().Err(decodeErr).Msg("Discarding invalid cached service")
		case !errors.Is(err, cache.ErrCacheMiss):
			logger.Warn().Err(err).Msg("Cache get error")
		}
	}

	query := url.Values{"id": []string{strconv.Itoa(id)}}

	var svc tosdr.Service
	err := c.config.Retry.Do(ctx, logger, func(attempt int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		logger.Debug().Int("attempt", attempt).Msg("Fetching service")

		body, err := c.get(ctx, ServicesEndpoint, query)
		if err != nil {
			return err
		}

		decoded, err := tosdr.DecodeServiceResponse(body)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		if decoded.ID != id {
			errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
			return fmt.Errorf("%w: requested service %d, got %d", ErrInvalidPayload, id, decoded.ID)
		}

		svc = decoded
		return nil
	})
	if err != nil {
		logger.Error().
			Err(err).
			Str("error_class", string(errorClassOf(err))).
			Msg("Failed to fetch service")
		return tosdr.Service{}, fmt.Errorf("get service %d: %w", id, err)
	}

	if c.cache != nil {
		data, err := json.Marshal(svc)
		if err == nil {
			err = c.cache.Set(ctx, key, cache.NewEntry(data, c.config.LookupCacheTTL))
		}
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to cache service")
		}
	}

	return svc, nil
}
