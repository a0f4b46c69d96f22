package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/mohamedkhairy/coin-alerts/internal/models"
)

// PriceCache is a TTL-bounded store of last-known prices. It decouples the
// alert-check frequency from upstream rate limits; it is an optimization,
// never a source of truth. Callers must treat ids missing from Get results
// as cache misses requiring a fetch.
type PriceCache interface {
	// Get returns a partial snapshot covering only fresh entries for the
	// requested asset ids
	Get(ctx context.Context, assetIDs []string) (*models.PriceSnapshot, error)

	// Put stores every entry of the snapshot with the given TTL,
	// unconditionally overwriting existing entries
	Put(ctx context.Context, snapshot *models.PriceSnapshot, ttl time.Duration) error
}

type memoryEntry struct {
	price    float64
	storedAt time.Time
	ttl      time.Duration
}

// MemoryPriceCache is an in-memory implementation of PriceCache
type MemoryPriceCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	nowFunc func() time.Time
}

// NewMemoryPriceCache creates a new in-memory price cache
func NewMemoryPriceCache() *MemoryPriceCache {
	return &MemoryPriceCache{
		entries: make(map[string]memoryEntry),
		nowFunc: time.Now,
	}
}

// Get returns fresh entries for the requested asset ids. An entry is fresh
// iff now - storedAt < ttl; stale entries are omitted.
func (c *MemoryPriceCache) Get(ctx context.Context, assetIDs []string) (*models.PriceSnapshot, error) {
	now := c.nowFunc()
	snapshot := models.NewPriceSnapshot(now)

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, id := range assetIDs {
		normalized := models.NormalizeAssetID(id)
		entry, exists := c.entries[normalized]
		if !exists {
			continue
		}
		if now.Sub(entry.storedAt) >= entry.ttl {
			continue
		}
		snapshot.Prices[normalized] = entry.price
	}

	return snapshot, nil
}

// Put stores every entry of the snapshot with the given TTL
func (c *MemoryPriceCache) Put(ctx context.Context, snapshot *models.PriceSnapshot, ttl time.Duration) error {
	now := c.nowFunc()

	c.mu.Lock()
	defer c.mu.Unlock()

	for id, price := range snapshot.Prices {
		c.entries[models.NormalizeAssetID(id)] = memoryEntry{
			price:    price,
			storedAt: now,
			ttl:      ttl,
		}
	}

	return nil
}

// Len returns the number of entries currently held, fresh or stale
func (c *MemoryPriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Compile-time interface check
var _ PriceCache = (*MemoryPriceCache)(nil)
