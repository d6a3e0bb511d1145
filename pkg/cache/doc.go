// Package cache stores single-record lookups in Redis so that re-running a
// long lookup export does not hit the ToS;DR API again for records fetched
// recently.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.ServiceKey(182)
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API, then:
//		_ = manager.Set(ctx, key, cache.NewEntry(body, 24*time.Hour))
//	}
//
// Entries expire through Redis TTLs; an entry read after its Expires time is
// treated as a miss and deleted.
//
// # Metrics
//
//   - tosdr_cache_hits_total
//   - tosdr_cache_misses_total
//   - tosdr_cache_errors_total{operation}
package cache
