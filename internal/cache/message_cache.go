// Package cache implements the two read-through caches that sit between
// internal/discovery and internal/chat: a per-peer message cache with a
// high-water mark round, and a TTL-bounded public-key cache.
package cache

import (
	"sync"

	"github.com/algochat/algochat/pkg/models"
)

// MessageCache stores decrypted messages per participant, deduplicated by
// id, alongside the highest confirmed round scanned for that participant so
// a later refresh can request only newer transactions.
type MessageCache struct {
	mu            sync.Mutex
	byParticipant map[models.Address]map[string]models.Message
	lastSync      map[models.Address]uint64
}

// NewMessageCache returns an empty MessageCache.
func NewMessageCache() *MessageCache {
	return &MessageCache{
		byParticipant: make(map[models.Address]map[string]models.Message),
		lastSync:      make(map[models.Address]uint64),
	}
}

// Store merges msgs into the cache for participant, deduplicating by
// Message.ID, and advances the participant's last-sync round to the
// highest ConfirmedRound observed.
func (c *MessageCache) Store(participant models.Address, msgs []models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.byParticipant[participant]
	if !ok {
		bucket = make(map[string]models.Message)
		c.byParticipant[participant] = bucket
	}
	for _, m := range msgs {
		bucket[m.ID] = m
		if m.ConfirmedRound > c.lastSync[participant] {
			c.lastSync[participant] = m.ConfirmedRound
		}
	}
}

// Retrieve returns the cached messages for participant with
// ConfirmedRound > afterRound, in no particular order; callers sort via
// internal/conversation.
func (c *MessageCache) Retrieve(participant models.Address, afterRound uint64) []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket := c.byParticipant[participant]
	out := make([]models.Message, 0, len(bucket))
	for _, m := range bucket {
		if m.ConfirmedRound > afterRound {
			out = append(out, m)
		}
	}
	return out
}

// LastSyncRound returns the highest confirmed round stored for participant,
// or 0 if nothing has been cached yet.
func (c *MessageCache) LastSyncRound(participant models.Address) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSync[participant]
}

// Clear drops every cached participant.
func (c *MessageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byParticipant = make(map[models.Address]map[string]models.Message)
	c.lastSync = make(map[models.Address]uint64)
}

// ClearParticipant drops the cache entry for a single participant.
func (c *MessageCache) ClearParticipant(participant models.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byParticipant, participant)
	delete(c.lastSync, participant)
}
