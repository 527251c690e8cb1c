package auth

import (
	"sync"
	"time"

	"cortexdb/internal/domain"
)

type cacheEntry struct {
	auth     domain.APIKeyAuth
	cachedAt time.Time
}

// keyCache is a shared mutex-protected map of key-hash to resolved identity.
// Expiry is checked lazily on Get; the sweep of everything else that expired
// runs on whichever reader first notices the sweep interval has elapsed, not
// on a dedicated background goroutine.
type keyCache struct {
	mu            sync.Mutex
	entries       map[string]cacheEntry
	ttl           time.Duration
	sweepInterval time.Duration
	lastSwept     time.Time
}

func newKeyCache(ttl, sweepInterval time.Duration) *keyCache {
	return &keyCache{
		entries:       make(map[string]cacheEntry),
		ttl:           ttl,
		sweepInterval: sweepInterval,
		lastSwept:     time.Now(),
	}
}

func (c *keyCache) get(keyHash string) (domain.APIKeyAuth, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.maybeSweepLocked()

	entry, ok := c.entries[keyHash]
	if !ok {
		return domain.APIKeyAuth{}, false
	}
	if time.Since(entry.cachedAt) > c.ttl {
		delete(c.entries, keyHash)
		return domain.APIKeyAuth{}, false
	}
	return entry.auth, true
}

func (c *keyCache) set(keyHash string, auth domain.APIKeyAuth) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[keyHash] = cacheEntry{auth: auth, cachedAt: time.Now()}
}

func (c *keyCache) invalidate(keyHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, keyHash)
}

func (c *keyCache) invalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// maybeSweepLocked drops every expired entry if the sweep interval has
// elapsed since the last sweep. Caller must hold c.mu.
func (c *keyCache) maybeSweepLocked() {
	now := time.Now()
	if now.Sub(c.lastSwept) < c.sweepInterval {
		return
	}
	c.lastSwept = now
	for hash, entry := range c.entries {
		if now.Sub(entry.cachedAt) > c.ttl {
			delete(c.entries, hash)
		}
	}
}
