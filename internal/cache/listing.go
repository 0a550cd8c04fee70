// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// listing.go caches the full product listing in Valkey. Every session that
// resyncs fetches the whole table, so the listing is kept warm between
// changes and dropped as soon as the change listener sees a write.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"sellout/internal/models"
)

const (
	// ListingKey is the Valkey key holding the serialized product listing.
	ListingKey = "products:all"

	// GenerationKey counts invalidations. A listing read under an older
	// generation is never stored.
	GenerationKey = "products:gen"

	// DefaultListingTTL bounds staleness if an invalidation is ever missed.
	DefaultListingTTL = 30 * time.Second
)

// setIfCurrent stores the listing only while the generation still matches
// the one read before the listing was queried.
var setIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[1]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// ListingCache stores the product listing in Valkey.
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewListingCache creates a listing cache backed by the given Valkey client.
func NewListingCache(client *redis.Client, ttl time.Duration) *ListingCache {
	if ttl == 0 {
		ttl = DefaultListingTTL
	}
	return &ListingCache{client: client, ttl: ttl}
}

// Get returns the cached listing. Any error counts as a miss.
func (lc *ListingCache) Get(ctx context.Context) ([]models.Product, bool) {
	val, err := lc.client.Get(ctx, ListingKey).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("listing cache get error", "error", err)
		return nil, false
	}

	var items []models.Product
	if err := json.Unmarshal(val, &items); err != nil {
		slog.Warn("listing cache decode error", "error", err)
		return nil, false
	}
	slog.Debug("listing cache hit", "count", len(items))
	return items, true
}

// Generation returns the current invalidation counter. It must be read
// before querying the listing that is later passed to Set. ok is false when
// Valkey cannot be read, in which case the listing must not be cached.
func (lc *ListingCache) Generation(ctx context.Context) (gen int64, ok bool) {
	gen, err := lc.client.Get(ctx, GenerationKey).Int64()
	if err == redis.Nil {
		return 0, true
	}
	if err != nil {
		slog.Warn("listing cache generation error", "error", err)
		return 0, false
	}
	return gen, true
}

// Set stores the listing with the configured TTL, unless an invalidation
// happened since gen was read.
func (lc *ListingCache) Set(ctx context.Context, gen int64, items []models.Product) {
	data, err := json.Marshal(items)
	if err != nil {
		slog.Warn("listing cache encode error", "error", err)
		return
	}
	stored, err := setIfCurrent.Run(ctx, lc.client,
		[]string{GenerationKey, ListingKey},
		strconv.FormatInt(gen, 10), string(data), lc.ttl.Milliseconds(),
	).Int()
	if err != nil {
		slog.Warn("listing cache set error", "error", err)
		return
	}
	if stored == 0 {
		slog.Debug("listing cache set skipped, listing changed", "generation", gen)
	}
}

// Invalidate drops the cached listing and bumps the generation so that
// listings read before the write are not stored afterwards.
func (lc *ListingCache) Invalidate(ctx context.Context) {
	_, err := lc.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, GenerationKey)
		pipe.Del(ctx, ListingKey)
		return nil
	})
	if err != nil {
		slog.Warn("listing cache invalidate error", "error", err)
		return
	}
	slog.Debug("listing cache invalidated")
}
