package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chatgraph-backend/internal/domain"
)

const (
	threadCacheKey = "threads:summaries"
	threadCacheTTL = 30 * time.Second
)

// ThreadCache keeps the resolved thread list in Redis so repeated sidebar
// refreshes do not hit the checkpoint store.
type ThreadCache struct {
	client *Client
}

// NewThreadCache creates a new thread list cache
func NewThreadCache(client *Client) *ThreadCache {
	return &ThreadCache{client: client}
}

// Get retrieves the cached thread list. A miss returns (nil, nil).
func (c *ThreadCache) Get(ctx context.Context) ([]domain.ThreadSummary, error) {
	data, err := c.client.rdb.Get(ctx, threadCacheKey).Bytes()
	if err != nil {
		return nil, nil // Cache miss
	}

	var summaries []domain.ThreadSummary
	if err := json.Unmarshal(data, &summaries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thread list: %w", err)
	}

	return summaries, nil
}

// Set caches the thread list
func (c *ThreadCache) Set(ctx context.Context, summaries []domain.ThreadSummary) error {
	data, err := json.Marshal(summaries)
	if err != nil {
		return fmt.Errorf("failed to marshal thread list: %w", err)
	}

	return c.client.rdb.Set(ctx, threadCacheKey, data, threadCacheTTL).Err()
}

// Invalidate drops the cached list after any thread mutation
func (c *ThreadCache) Invalidate(ctx context.Context) error {
	return c.client.rdb.Del(ctx, threadCacheKey).Err()
}
