package sturdyc

import (
	"context"
	"strings"
	"time"

	lib "github.com/viccon/sturdyc"

	pr "github.com/openshelf/circulate/provider"
)

// Sturdyc is an in-process provider backed by viccon/sturdyc's sharded
// cache. Like bigcache, sturdyc uses a cache-wide TTL set at construction,
// so the per-call ttl argument to Set is ignored.
type Sturdyc struct {
	c *lib.Client[[]byte]
}

var _ pr.Provider = (*Sturdyc)(nil)

type Config struct {
	// Capacity is the maximum number of entries. Default 10000.
	Capacity int
	// NumShards controls lock granularity. Default 64.
	NumShards int
	// TTL is the cache-wide entry lifetime. Default 1m.
	TTL time.Duration
	// EvictionPercentage is how much of a full shard is evicted at once.
	// Default 10.
	EvictionPercentage int
}

func New(cfg Config) *Sturdyc {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 10000
	}
	if cfg.NumShards <= 0 {
		cfg.NumShards = 64
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Minute
	}
	if cfg.EvictionPercentage <= 0 {
		cfg.EvictionPercentage = 10
	}
	c := lib.New[[]byte](cfg.Capacity, cfg.NumShards, cfg.TTL, cfg.EvictionPercentage)
	return &Sturdyc{c: c}
}

func (p *Sturdyc) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}

// Set stores value. The ttl argument is ignored: sturdyc expires entries
// by the cache-wide TTL configured at construction.
func (p *Sturdyc) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	p.c.Set(key, value)
	return nil
}

func (p *Sturdyc) Del(_ context.Context, key string) error {
	p.c.Delete(key)
	return nil
}

func (p *Sturdyc) DelMany(_ context.Context, keys []string) error {
	for _, k := range keys {
		p.c.Delete(k)
	}
	return nil
}

func (p *Sturdyc) Keys(_ context.Context, prefix string) ([]string, error) {
	var out []string
	for _, k := range p.c.ScanKeys() {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (p *Sturdyc) Close(context.Context) error { return nil }
