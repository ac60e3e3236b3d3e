// Package cache provides short-lived key/value caches shared by pollers,
// watchers and request handlers.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values with a time to live.
type Cache interface {
	// Get returns the value and true when present and not expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
