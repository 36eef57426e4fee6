// Package cache provides in-memory caching of read-side query results.
package cache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"stockledger/internal/core/tenant"
	"stockledger/pkg/logger"
)

// QueryCache is a thread-safe TTL cache for list and summary query
// results. Keys embed the tenant, the data family and its version
// counter, so a version bump after any write makes every older entry
// unreachable; the janitor sweeps those out along with expired ones.
type QueryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry

	familyTTL  map[string]time.Duration
	defaultTTL time.Duration

	hits   uint64
	misses uint64

	// Lifecycle
	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// NewQueryCache creates a cache with no TTL overrides.
func NewQueryCache(defaultTTL time.Duration) *QueryCache {
	return &QueryCache{
		entries:    make(map[string]cacheEntry),
		familyTTL:  make(map[string]time.Duration),
		defaultTTL: defaultTTL,
	}
}

// SetFamilyTTL overrides the TTL for entries of one family.
func (c *QueryCache) SetFamilyTTL(family string, ttl time.Duration) {
	c.mu.Lock()
	c.familyTTL[family] = ttl
	c.mu.Unlock()
}

// Key builds a cache key from the tenant in ctx, the family, its
// current version and the query parameters. Same tenant, family,
// version and params always produce the same key.
func Key(ctx context.Context, family string, version int64, params ...string) string {
	var b strings.Builder
	b.WriteString(tenant.GetTenantID(ctx))
	b.WriteByte('|')
	b.WriteString(family)
	b.WriteString("|v")
	b.WriteString(strconv.FormatInt(version, 10))
	for _, p := range params {
		b.WriteByte('|')
		b.WriteString(p)
	}
	return b.String()
}

// Get returns the cached value for key if present and not expired.
func (c *QueryCache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return entry.value, true
}

// Set stores value under key. The family selects the TTL.
func (c *QueryCache) Set(key, family string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ttl, ok := c.familyTTL[family]
	if !ok {
		ttl = c.defaultTTL
	}
	c.entries[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// InvalidateTenant drops every entry belonging to a tenant.
func (c *QueryCache) InvalidateTenant(tenantID string) {
	prefix := tenantID + "|"

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// Start launches the janitor goroutine that sweeps expired entries.
func (c *QueryCache) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.lifecycleMu.Lock()
	if c.started {
		c.lifecycleMu.Unlock()
		return
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true
	c.lifecycleMu.Unlock()

	c.wg.Add(1)
	go c.janitorLoop()
	logger.Info(c.ctx, "query cache started")
}

// Stop gracefully stops the janitor.
func (c *QueryCache) Stop() {
	c.lifecycleMu.Lock()
	if !c.started {
		c.lifecycleMu.Unlock()
		return
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	logger.Info(context.Background(), "query cache stopped")
}

// janitorLoop periodically removes expired entries. Stale-version
// entries expire by TTL since nothing reads them after a bump.
func (c *QueryCache) janitorLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.sweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *QueryCache) sweepInterval() time.Duration {
	interval := c.defaultTTL
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return interval
}

func (c *QueryCache) sweep() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		logger.Debug(context.Background(), "query cache swept", "removed", removed, "remaining", len(c.entries))
	}
}

// Stats holds cache counters.
type Stats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

// GetStats returns current cache counters.
func (c *QueryCache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}
