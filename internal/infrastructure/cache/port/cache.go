package port

import (
	"context"
	"errors"
	"time"
)

// Cache is the key-value contract used to memoize conversation lookups.
// Implementations must be safe for concurrent use.
//
// Values are plain strings so the port stays free of serialization concerns.
type Cache interface {
	// Get returns ErrMiss when the key is absent or expired.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. A non-positive TTL means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Del removes keys and returns the number removed.
	Del(ctx context.Context, keys ...string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// ErrMiss signals a cache miss, as opposed to a transport error.
var ErrMiss = errors.New("cache: miss")
