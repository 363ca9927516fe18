package cache

import (
	"context"
	"sync"
	"time"

	"github.com/damon-houk/paylog/internal/domain/entity"
)

// DefaultExpiration is how long a shared projection stays cached
const DefaultExpiration = 5 * time.Minute

// CacheEntry represents a cached shared transaction with its insertion time
type CacheEntry struct {
	Transaction *entity.Transaction
	Timestamp   time.Time
}

// SharedTransactionCache provides a thread-safe in-memory cache of shared transactions keyed by share token
type SharedTransactionCache struct {
	cache      map[string]CacheEntry
	expiration time.Duration
	mutex      sync.RWMutex
}

// NewSharedTransactionCache creates a new in-memory shared transaction cache
func NewSharedTransactionCache(expiration time.Duration) *SharedTransactionCache {
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	return &SharedTransactionCache{
		cache:      make(map[string]CacheEntry),
		expiration: expiration,
	}
}

// Get retrieves a transaction from the cache if available and not expired
func (c *SharedTransactionCache) Get(_ context.Context, sharedID string) (*entity.Transaction, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.cache[sharedID]

	// Return nil if entry doesn't exist or is expired
	if !exists || time.Since(entry.Timestamp) > c.expiration {
		return nil, nil
	}

	return entry.Transaction.Clone(), nil
}

// Put stores a shared transaction in the cache under its token
func (c *SharedTransactionCache) Put(_ context.Context, tx *entity.Transaction) error {
	if tx == nil || tx.SharedID == "" {
		return nil
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache[tx.SharedID] = CacheEntry{
		Transaction: tx.Clone(),
		Timestamp:   time.Now(),
	}
	return nil
}

// Evict removes the entry for the token
func (c *SharedTransactionCache) Evict(_ context.Context, sharedID string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.cache, sharedID)
	return nil
}

// Size returns the number of items in the cache
func (c *SharedTransactionCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.cache)
}

// CleanExpired removes expired entries from the cache
func (c *SharedTransactionCache) CleanExpired() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	count := 0
	now := time.Now()

	for key, entry := range c.cache {
		if now.Sub(entry.Timestamp) > c.expiration {
			delete(c.cache, key)
			count++
		}
	}

	return count
}

// RunJanitor removes expired entries every interval until ctx is done
func (c *SharedTransactionCache) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CleanExpired()
		}
	}
}

// NoopCache never holds anything; every Get is a miss
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*entity.Transaction, error) { return nil, nil }

func (NoopCache) Put(context.Context, *entity.Transaction) error { return nil }

func (NoopCache) Evict(context.Context, string) error { return nil }
