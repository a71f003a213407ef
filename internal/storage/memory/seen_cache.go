package memory

import (
	"context"
	"sync"
	"time"

	"solana-bridge/internal/storage"
)

// SeenCache is an in-memory implementation of storage.SeenCache with
// per-key expiry.
type SeenCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time // key -> expiry
}

// NewSeenCache creates a cache that forgets keys after ttl. A non-positive
// ttl keeps keys forever.
func NewSeenCache(ttl time.Duration) *SeenCache {
	return &SeenCache{
		ttl:  ttl,
		now:  time.Now,
		seen: make(map[string]time.Time),
	}
}

// MarkSeen records key and reports whether this is its first sighting.
func (c *SeenCache) MarkSeen(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, storage.ErrInvalidInput
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if expiry, ok := c.seen[key]; ok && (c.ttl <= 0 || now.Before(expiry)) {
		return false, nil
	}
	c.seen[key] = now.Add(c.ttl)
	if len(c.seen)%1024 == 0 {
		c.evict(now)
	}
	return true, nil
}

// Forget removes key.
func (c *SeenCache) Forget(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.seen, key)
	c.mu.Unlock()
	return nil
}

func (c *SeenCache) evict(now time.Time) {
	if c.ttl <= 0 {
		return
	}
	for k, expiry := range c.seen {
		if !now.Before(expiry) {
			delete(c.seen, k)
		}
	}
}

// Verify interface compliance at compile time.
var _ storage.SeenCache = (*SeenCache)(nil)
