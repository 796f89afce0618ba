package cache

import (
	"sync"
	"time"

	"github.com/algochat/algochat/pkg/models"
)

const defaultPublicKeyTTL = 5 * time.Minute

type publicKeyEntry struct {
	key      [32]byte
	storedAt time.Time
}

// PublicKeyCache caches discovered static X25519 public keys for a
// configurable TTL so repeated sends/refreshes don't re-run key discovery
// against the indexer for every message.
type PublicKeyCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[models.Address]publicKeyEntry
	now     func() time.Time
}

// NewPublicKeyCache returns a cache with the given TTL; a non-positive ttl
// falls back to a 5-minute default.
func NewPublicKeyCache(ttl time.Duration) *PublicKeyCache {
	if ttl <= 0 {
		ttl = defaultPublicKeyTTL
	}
	return &PublicKeyCache{
		ttl:     ttl,
		entries: make(map[models.Address]publicKeyEntry),
		now:     time.Now,
	}
}

// Store records key as address's public key, stamped at the current time.
func (c *PublicKeyCache) Store(address models.Address, key [32]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[address] = publicKeyEntry{key: key, storedAt: c.now()}
}

// Retrieve returns address's cached key, or ok=false if missing or expired.
func (c *PublicKeyCache) Retrieve(address models.Address) (key [32]byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, found := c.entries[address]
	if !found {
		return key, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, address)
		return key, false
	}
	return entry.key, true
}
