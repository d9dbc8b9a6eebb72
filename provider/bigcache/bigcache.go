package bigcache

import (
	"context"
	"errors"
	"strings"
	"time"

	bc "github.com/allegro/bigcache/v3"

	pr "github.com/openshelf/circulate/provider"
)

// BigCache is an in-process provider backed by allegro/bigcache.
//
// BigCache has a single cache-wide LifeWindow rather than per-entry TTLs,
// so the ttl argument to Set is ignored; configure expiry via
// Config.LifeWindow instead.
type BigCache struct {
	c *bc.BigCache
}

var _ pr.Provider = (*BigCache)(nil)

type Config struct {
	// LifeWindow is the cache-wide entry lifetime. Defaults to 60s, which
	// matches the catalog snapshot TTL this provider typically serves.
	LifeWindow time.Duration
	// CleanWindow is how often expired entries are evicted. Defaults to 1m.
	CleanWindow time.Duration
	// MaxEntriesInWindow tunes initial memory allocation. Default 10000.
	MaxEntriesInWindow int
	// MaxEntrySize in bytes, used for initial allocation. Default 4096.
	MaxEntrySize int
	// HardMaxCacheSizeMB caps total memory. 0 means unlimited.
	HardMaxCacheSizeMB int
}

func New(ctx context.Context, cfg Config) (*BigCache, error) {
	if cfg.LifeWindow <= 0 {
		cfg.LifeWindow = 60 * time.Second
	}
	if cfg.CleanWindow <= 0 {
		cfg.CleanWindow = time.Minute
	}
	if cfg.MaxEntriesInWindow <= 0 {
		cfg.MaxEntriesInWindow = 10000
	}
	if cfg.MaxEntrySize <= 0 {
		cfg.MaxEntrySize = 4096
	}

	conf := bc.DefaultConfig(cfg.LifeWindow)
	conf.CleanWindow = cfg.CleanWindow
	conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	conf.MaxEntrySize = cfg.MaxEntrySize
	conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB

	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &BigCache{c: c}, nil
}

func (p *BigCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set stores value. The ttl argument is ignored: bigcache expires entries
// by the cache-wide LifeWindow configured at construction.
func (p *BigCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	return p.c.Set(key, value)
}

func (p *BigCache) Del(_ context.Context, key string) error {
	err := p.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (p *BigCache) DelMany(ctx context.Context, keys []string) error {
	for _, k := range keys {
		if err := p.Del(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (p *BigCache) Keys(_ context.Context, prefix string) ([]string, error) {
	var out []string
	it := p.c.Iterator()
	for it.SetNext() {
		entry, err := it.Value()
		if err != nil {
			// entry evicted between SetNext and Value; skip it
			continue
		}
		if strings.HasPrefix(entry.Key(), prefix) {
			out = append(out, entry.Key())
		}
	}
	return out, nil
}

func (p *BigCache) Close(context.Context) error {
	return p.c.Close()
}
