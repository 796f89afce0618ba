package cache

import (
	"testing"
	"time"

	"github.com/algochat/algochat/pkg/models"
)

func TestPublicKeyCacheStoreAndRetrieve(t *testing.T) {
	c := NewPublicKeyCache(time.Minute)
	var addr models.Address
	addr[0] = 0x42
	var key [32]byte
	key[0] = 0x99

	if _, ok := c.Retrieve(addr); ok {
		t.Fatalf("expected miss before store")
	}
	c.Store(addr, key)
	got, ok := c.Retrieve(addr)
	if !ok || got != key {
		t.Fatalf("expected cached key, got %v ok=%v", got, ok)
	}
}

func TestPublicKeyCacheExpiresAfterTTL(t *testing.T) {
	c := NewPublicKeyCache(time.Minute)
	fakeNow := time.Now()
	c.now = func() time.Time { return fakeNow }

	var addr models.Address
	c.Store(addr, [32]byte{1})

	fakeNow = fakeNow.Add(2 * time.Minute)
	if _, ok := c.Retrieve(addr); ok {
		t.Fatalf("expected entry to expire after TTL")
	}
}
