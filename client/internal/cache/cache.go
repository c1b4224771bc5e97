// Package cache implements the read-through cache in front of the Resource
// Client: an in-memory tier checked first and a durable tier (store.Store)
// that survives restarts. Entries are valid while now - timestamp < TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	errs "github.com/cristhianbenitez/ai-image-generator/client/internal/errors"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/store"
)

const (
	// DefaultTTL bounds staleness of read-mostly feed pages.
	DefaultTTL = 5 * time.Minute
	// DefaultMaxItemBytes caps entries written to the durable tier. Larger
	// payloads (inline image data) stay memory-only.
	DefaultMaxItemBytes = 2 << 20
	// KeyPrefix namespaces cache keys inside the shared durable store.
	KeyPrefix = "imgcache_"
)

// Params identifies a variant of a resource (user id, filters, ...).
type Params map[string]string

// Entry is the persisted form of a cached payload.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Config tunes a Cache.
type Config struct {
	TTL          time.Duration
	MaxItemBytes int
	Now          func() time.Time
}

// Cache is safe for concurrent use. Durable tier failures never surface to
// callers; they degrade the cache to memory-only for that operation.
type Cache struct {
	mu      sync.Mutex
	memory  map[string]Entry
	durable store.Store
	cfg     Config
	log     zerolog.Logger
}

// New builds a cache over durable. durable may be nil for a memory-only cache.
func New(durable store.Store, cfg Config, log zerolog.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxItemBytes <= 0 {
		cfg.MaxItemBytes = DefaultMaxItemBytes
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cache{
		memory:  make(map[string]Entry),
		durable: durable,
		cfg:     cfg,
		log:     log.With().Str("component", "cache").Logger(),
	}
}

// Key renders the storage key of resource+params. encoding/json sorts map
// keys, so equal params always hash to the same key.
func Key(resource string, params Params) string {
	if len(params) == 0 {
		return KeyPrefix + resource
	}
	b, _ := json.Marshal(params)
	return KeyPrefix + resource + "_" + string(b)
}

func (c *Cache) valid(e Entry) bool {
	return c.cfg.Now().Sub(e.Timestamp) < c.cfg.TTL
}

// GetRaw returns the cached payload for resource+params, checking memory then
// the durable tier. A durable hit is promoted to memory. Expired entries are
// evicted from the tier they were found in.
func (c *Cache) GetRaw(ctx context.Context, resource string, params Params) (json.RawMessage, bool) {
	key := Key(resource, params)

	c.mu.Lock()
	if e, ok := c.memory[key]; ok {
		if c.valid(e) {
			c.mu.Unlock()
			cacheHits.WithLabelValues(resource, "memory").Inc()
			return e.Data, true
		}
		delete(c.memory, key)
	}
	c.mu.Unlock()

	if c.durable == nil {
		cacheMisses.WithLabelValues(resource).Inc()
		return nil, false
	}

	raw, err := c.durable.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.degraded("read", key, err)
		}
		cacheMisses.WithLabelValues(resource).Inc()
		return nil, false
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.degraded("decode", key, err)
		c.deleteDurable(ctx, key)
		cacheMisses.WithLabelValues(resource).Inc()
		return nil, false
	}
	if !c.valid(e) {
		c.deleteDurable(ctx, key)
		cacheMisses.WithLabelValues(resource).Inc()
		return nil, false
	}

	c.mu.Lock()
	c.memory[key] = e
	c.mu.Unlock()
	cacheHits.WithLabelValues(resource, "durable").Inc()
	return e.Data, true
}

// Get decodes the cached payload into out. It reports false on a miss or when
// the payload no longer decodes into out.
func (c *Cache) Get(ctx context.Context, resource string, params Params, out any) bool {
	raw, ok := c.GetRaw(ctx, resource, params)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.log.Warn().Err(err).Str("resource", resource).Msg("cached payload does not decode, ignoring")
		c.Invalidate(ctx, resource, params)
		return false
	}
	return true
}

// Set stores value in memory and, size permitting, in the durable tier.
func (c *Cache) Set(ctx context.Context, resource string, params Params, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn().Err(err).Str("resource", resource).Msg("cache value not serializable, skipping")
		return
	}
	key := Key(resource, params)
	e := Entry{Data: data, Timestamp: c.cfg.Now()}

	c.mu.Lock()
	c.memory[key] = e
	c.mu.Unlock()

	if c.durable == nil {
		return
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	if len(raw) > c.cfg.MaxItemBytes {
		c.log.Debug().
			Str("resource", resource).
			Int("size", len(raw)).
			Int("limit", c.cfg.MaxItemBytes).
			Msg("item too large for durable tier, using memory-only cache")
		return
	}
	err = c.durable.Set(ctx, key, raw, 0)
	if errors.Is(err, store.ErrQuotaExceeded) {
		c.log.Debug().Str("resource", resource).Msg("durable quota exceeded, evicting expired entries")
		c.EvictExpired(ctx)
		err = c.durable.Set(ctx, key, raw, 0)
	}
	if err != nil {
		c.degraded("write", key, err)
	}
}

// EvictExpired removes expired and undecodable entries from the durable tier.
func (c *Cache) EvictExpired(ctx context.Context) int {
	if c.durable == nil {
		return 0
	}
	keys, err := c.durable.Keys(ctx, KeyPrefix)
	if err != nil {
		c.degraded("list", KeyPrefix, err)
		return 0
	}
	evicted := 0
	for _, k := range keys {
		raw, err := c.durable.Get(ctx, k)
		if err != nil {
			continue
		}
		var e Entry
		if json.Unmarshal(raw, &e) != nil || !c.valid(e) {
			c.deleteDurable(ctx, k)
			evicted++
		}
	}
	return evicted
}

// Invalidate removes resource+params from both tiers.
func (c *Cache) Invalidate(ctx context.Context, resource string, params Params) {
	key := Key(resource, params)
	c.mu.Lock()
	delete(c.memory, key)
	c.mu.Unlock()
	c.deleteDurable(ctx, key)
}

// InvalidateResource removes every params variant of resource.
func (c *Cache) InvalidateResource(ctx context.Context, resource string) {
	c.dropPrefix(ctx, KeyPrefix+resource)
}

// Clear removes every cache entry from both tiers.
func (c *Cache) Clear(ctx context.Context) {
	c.dropPrefix(ctx, KeyPrefix)
	c.log.Debug().Msg("cache cleared")
}

func (c *Cache) dropPrefix(ctx context.Context, prefix string) {
	c.mu.Lock()
	for k := range c.memory {
		if matchesPrefix(k, prefix) {
			delete(c.memory, k)
		}
	}
	c.mu.Unlock()

	if c.durable == nil {
		return
	}
	keys, err := c.durable.Keys(ctx, prefix)
	if err != nil {
		c.degraded("list", prefix, err)
		return
	}
	for _, k := range keys {
		if matchesPrefix(k, prefix) {
			c.deleteDurable(ctx, k)
		}
	}
}

// matchesPrefix keeps "images" from matching "imagesArchive": a resource prefix
// matches the bare key or the key followed by its params separator.
func matchesPrefix(key, prefix string) bool {
	if prefix == KeyPrefix {
		return strings.HasPrefix(key, KeyPrefix)
	}
	return key == prefix || strings.HasPrefix(key, prefix+"_")
}

func (c *Cache) deleteDurable(ctx context.Context, key string) {
	if c.durable == nil {
		return
	}
	if err := c.durable.Delete(ctx, key); err != nil {
		c.degraded("delete", key, err)
	}
}

func (c *Cache) degraded(op, key string, err error) {
	cacheDegraded.WithLabelValues(op).Inc()
	c.log.Warn().
		Err(err).
		AnErr("warning", errs.ErrCacheDegraded).
		Str("op", op).
		Str("key", key).
		Msg("durable cache tier unavailable")
}
