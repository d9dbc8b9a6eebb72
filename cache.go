package circulate

import (
	"context"
	"time"

	c "github.com/openshelf/circulate/codec"
	pr "github.com/openshelf/circulate/provider"
)

// snapshotCache is the read-through front for catalog snapshots. Every
// provider failure is logged and degraded - to a miss on reads, to a
// no-op on writes and invalidation - so an unreachable backend never
// fails the request. Correctness always comes from the store.
type snapshotCache struct {
	provider pr.Provider
	codec    c.Codec[[]Book]
	ttl      time.Duration
	log      Logger
}

func (sc *snapshotCache) enabled() bool { return sc != nil && sc.provider != nil }

// lookup returns the cached snapshot for key, treating transport errors
// and corrupt payloads as misses. Corrupt entries are deleted (self-heal)
// so they cannot shadow the store until TTL expiry.
func (sc *snapshotCache) lookup(ctx context.Context, key string) ([]Book, bool) {
	if !sc.enabled() {
		return nil, false
	}
	raw, ok, err := sc.provider.Get(ctx, key)
	if err != nil {
		sc.log.Warn("cache get failed, falling back to store", Fields{"key": key, "err": err})
		return nil, false
	}
	if !ok {
		return nil, false
	}
	books, err := sc.codec.Decode(raw)
	if err != nil {
		_ = sc.provider.Del(ctx, key)
		sc.log.Warn("corrupt cache entry dropped", Fields{"key": key, "err": err})
		return nil, false
	}
	return books, true
}

// store writes a snapshot under key with the configured TTL, best effort.
func (sc *snapshotCache) store(ctx context.Context, key string, books []Book) {
	if !sc.enabled() {
		return
	}
	raw, err := sc.codec.Encode(books)
	if err != nil {
		sc.log.Warn("snapshot encode failed", Fields{"key": key, "err": err})
		return
	}
	if err := sc.provider.Set(ctx, key, raw, sc.ttl); err != nil {
		sc.log.Warn("cache set failed", Fields{"key": key, "err": err})
	}
}

// invalidateCatalog drops books:all and every search:* entry. A window
// remains between the store mutation and this call where a concurrent
// search can observe stale data; the TTL bounds that staleness.
func (sc *snapshotCache) invalidateCatalog(ctx context.Context) {
	if !sc.enabled() {
		return
	}
	keys, err := sc.provider.Keys(ctx, searchKeyPrefix)
	if err != nil {
		sc.log.Warn("cache key listing failed", Fields{"prefix": searchKeyPrefix, "err": err})
	} else if len(keys) > 0 {
		if err := sc.provider.DelMany(ctx, keys); err != nil {
			sc.log.Warn("cache bulk delete failed", Fields{"count": len(keys), "err": err})
		}
	}
	if err := sc.provider.Del(ctx, allBooksKey); err != nil {
		sc.log.Warn("cache delete failed", Fields{"key": allBooksKey, "err": err})
	}
}
