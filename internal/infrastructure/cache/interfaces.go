package cache

import (
	"context"
	"time"
)

// Store is a TTL'd key-value store for computed analytics results. Values
// are serialized on write, so cached payloads are snapshots: callers can
// never mutate an entry through a returned value.
type Store interface {
	// Get unmarshals the value for key into dest. Returns ErrKeyNotFound when
	// the key is absent or expired.
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Close releases the store's resources.
	Close() error
}

// Key prefix for all analytics cache entries.
const KeyPrefix = "guard:analytics:"

// DefaultSweepInterval is how often the in-memory store proactively removes
// expired entries.
const DefaultSweepInterval = 5 * time.Minute

// ErrKeyNotFound is returned when a cache key doesn't exist or has expired.
type ErrKeyNotFound struct {
	Key string
}

func (e ErrKeyNotFound) Error() string {
	return "cache key not found: " + e.Key
}
