package cache

import (
	"context"
	"testing"
	"time"

	"stockledger/internal/core/tenant"
)

func tenantCtx(tenantID string) context.Context {
	return tenant.WithTenant(context.Background(), &tenant.Tenant{ID: tenantID, Slug: tenantID})
}

func TestKeyEmbedsTenantFamilyAndVersion(t *testing.T) {
	ctx := tenantCtx("tenant-1")

	key := Key(ctx, "products", 42, "category=Electronics", "limit=50")
	want := "tenant-1|products|v42|category=Electronics|limit=50"
	if key != want {
		t.Errorf("Key() = %q, want %q", key, want)
	}

	// Different version must yield a different key.
	if Key(ctx, "products", 43, "category=Electronics", "limit=50") == key {
		t.Error("version bump must change the key")
	}

	// Different tenant must yield a different key.
	if Key(tenantCtx("tenant-2"), "products", 42, "category=Electronics", "limit=50") == key {
		t.Error("tenant must be part of the key")
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	c := NewQueryCache(time.Minute)
	ctx := tenantCtx("tenant-1")

	key := Key(ctx, "products", 1)
	if _, ok := c.Get(key); ok {
		t.Fatal("empty cache must miss")
	}

	c.Set(key, "products", []string{"Laptop", "Mouse"})

	value, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit after Set")
	}
	items, ok := value.([]string)
	if !ok || len(items) != 2 {
		t.Errorf("cached value = %v, want two items", value)
	}

	stats := c.GetStats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Errorf("stats = %+v, want 1 hit, 1 miss, 1 entry", stats)
	}
}

func TestExpiredEntryMisses(t *testing.T) {
	c := NewQueryCache(time.Minute)
	c.SetFamilyTTL("movements", time.Millisecond)
	ctx := tenantCtx("tenant-1")

	key := Key(ctx, "movements", 1)
	c.Set(key, "movements", "payload")

	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get(key); ok {
		t.Error("expired entry must miss")
	}
}

func TestVersionBumpMakesOldEntriesUnreachable(t *testing.T) {
	c := NewQueryCache(time.Minute)
	ctx := tenantCtx("tenant-1")

	c.Set(Key(ctx, "products", 1), "products", "old")
	c.Set(Key(ctx, "products", 2), "products", "new")

	value, ok := c.Get(Key(ctx, "products", 2))
	if !ok || value != "new" {
		t.Errorf("Get(v2) = %v, %v, want new entry", value, ok)
	}
	// The old entry still exists but no reader asks for v1 anymore.
	if _, ok := c.Get(Key(ctx, "products", 1)); !ok {
		t.Error("old version entry should remain until swept")
	}
}

func TestInvalidateTenant(t *testing.T) {
	c := NewQueryCache(time.Minute)

	c.Set(Key(tenantCtx("tenant-1"), "products", 1), "products", "a")
	c.Set(Key(tenantCtx("tenant-2"), "products", 1), "products", "b")

	c.InvalidateTenant("tenant-1")

	if _, ok := c.Get(Key(tenantCtx("tenant-1"), "products", 1)); ok {
		t.Error("tenant-1 entries must be gone")
	}
	if _, ok := c.Get(Key(tenantCtx("tenant-2"), "products", 1)); !ok {
		t.Error("tenant-2 entries must survive")
	}
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	c := NewQueryCache(time.Minute)
	c.SetFamilyTTL("movements", time.Millisecond)
	ctx := tenantCtx("tenant-1")

	c.Set(Key(ctx, "movements", 1), "movements", "stale")
	c.Set(Key(ctx, "products", 1), "products", "fresh")

	time.Sleep(5 * time.Millisecond)
	c.sweep()

	stats := c.GetStats()
	if stats.Entries != 1 {
		t.Errorf("entries after sweep = %d, want 1", stats.Entries)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	c := NewQueryCache(time.Minute)

	c.Start(context.Background())
	c.Start(context.Background())
	c.Stop()
	c.Stop()
}
