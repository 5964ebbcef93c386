package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/apperr"
	"github.com/ariefcatur/go-realtime-pos/internal/logger"
	"github.com/ariefcatur/go-realtime-pos/internal/redisx"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Loader reads an authoritative snapshot from the store.
type Loader interface {
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
}

// KV is the slice of the Redis client the cache needs.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
}

// Cache serves catalog snapshots with a bounded staleness window. Entries expire by
// TTL only; admin edits become visible once the cached snapshot ages out.
// Lookup order: process memory, Redis, store.
type Cache struct {
	loader Loader
	kv     KV
	ttl    time.Duration
	log    *logger.Logger
	now    func() time.Time

	mu    sync.Mutex
	local *Snapshot
	group singleflight.Group
}

// NewCache builds a cache; kv may be nil to keep snapshots in process memory only.
func NewCache(loader Loader, kv KV, ttl time.Duration, log *logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = redisx.TTLCatalogSnapshot
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Cache{loader: loader, kv: kv, ttl: ttl, log: log, now: time.Now}
}

func (c *Cache) fresh(s *Snapshot) bool {
	return s != nil && c.now().Before(s.TakenAt.Add(c.ttl))
}

func (c *Cache) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	local := c.local
	c.mu.Unlock()
	if c.fresh(local) {
		return local, nil
	}

	v, err, _ := c.group.Do(redisx.KeyCatalogSnapshot, func() (any, error) {
		if s := c.fromRedis(ctx); s != nil {
			return s, nil
		}
		s, err := c.loader.LoadSnapshot(ctx)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeDependency, err, "catalog unavailable")
		}
		c.toRedis(ctx, s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}

	snap := v.(*Snapshot)
	c.mu.Lock()
	c.local = snap
	c.mu.Unlock()
	return snap, nil
}

func (c *Cache) fromRedis(ctx context.Context) *Snapshot {
	if c.kv == nil {
		return nil
	}
	raw, err := c.kv.Get(ctx, redisx.KeyCatalogSnapshot).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn(ctx, "catalog cache read failed", err)
		}
		return nil
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		c.log.Warn(ctx, "catalog cache entry undecodable", err)
		return nil
	}
	if !c.fresh(&s) {
		return nil
	}
	return &s
}

func (c *Cache) toRedis(ctx context.Context, s *Snapshot) {
	if c.kv == nil {
		return
	}
	b, err := json.Marshal(s)
	if err != nil {
		c.log.Warn(ctx, "catalog snapshot encode failed", err)
		return
	}
	if err := c.kv.Set(ctx, redisx.KeyCatalogSnapshot, b, c.ttl).Err(); err != nil {
		c.log.Warn(ctx, "catalog cache write failed", err)
	}
}
