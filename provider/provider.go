// Package provider defines the cache-storage abstraction the snapshot
// cache writes through.
//
// Implementations MUST be byte-for-byte transparent: Get must return
// exactly the same []byte that was previously passed to Set for a key (no
// prepended/appended metadata, no re-encoding, no mutation). If a store
// performs internal transforms (e.g., compression), they MUST be fully
// reversed so the bytes returned by Get equal the bytes given to Set.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs and prefix listing. Must be
// safe for concurrent use.
//
// Key listing exists because catalog invalidation deletes every key under
// a prefix; a backend that cannot enumerate keys cannot serve this
// module's invalidation strategy.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. Backends with a cache-wide
	// expiry window (BigCache, sturdyc) may ignore ttl; see their docs.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes a key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// DelMany removes a batch of keys, best effort.
	DelMany(ctx context.Context, keys []string) error

	// Keys lists stored keys that start with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases resources.
	Close(ctx context.Context) error
}
