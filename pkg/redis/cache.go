package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
)

// CountCache caches segment member counts. Counts scan the full donor set,
// so they are cached per tenant and segment and invalidated whenever a
// donor or the segment definition changes.
type CountCache struct {
	client *Client
	ttl    time.Duration
	logger ectologger.Logger
}

// NewCountCache creates a count cache with the given TTL
func NewCountCache(client *Client, ttl time.Duration, logger ectologger.Logger) *CountCache {
	return &CountCache{client: client, ttl: ttl, logger: logger}
}

type cachedCount struct {
	Count     int       `json:"count"`
	CountedAt time.Time `json:"counted_at"`
}

func countKey(tenantID, segmentID string) string {
	return fmt.Sprintf("segment-count:%s:%s", tenantID, segmentID)
}

// Get returns a cached count. The second return is false on a miss; cache
// errors are logged and degrade to a miss.
func (c *CountCache) Get(ctx context.Context, tenantID, segmentID string) (int, time.Time, bool) {
	raw, err := c.client.Get(ctx, countKey(tenantID, segmentID))
	if err != nil {
		if !IsNil(err) {
			c.logger.WithContext(ctx).WithError(err).Warn("Segment count cache read failed")
		}
		return 0, time.Time{}, false
	}

	var cached cachedCount
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Segment count cache entry corrupt")
		return 0, time.Time{}, false
	}
	return cached.Count, cached.CountedAt, true
}

// Set stores a count. Failures are logged, not returned: the caller already
// has the fresh count.
func (c *CountCache) Set(ctx context.Context, tenantID, segmentID string, count int, countedAt time.Time) {
	data, err := json.Marshal(cachedCount{Count: count, CountedAt: countedAt})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, countKey(tenantID, segmentID), data, c.ttl); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Segment count cache write failed")
	}
}

// InvalidateSegment drops the cached count for one segment
func (c *CountCache) InvalidateSegment(ctx context.Context, tenantID, segmentID string) {
	if err := c.client.Del(ctx, countKey(tenantID, segmentID)); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Segment count cache invalidation failed")
	}
}

// InvalidateTenant drops every cached count for a tenant. Called when donor
// data changes, since any segment's membership may have shifted.
func (c *CountCache) InvalidateTenant(ctx context.Context, tenantID string) {
	if err := c.client.DelPattern(ctx, fmt.Sprintf("segment-count:%s:*", tenantID)); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Segment count cache invalidation failed")
	}
}
