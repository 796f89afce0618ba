package cache

import (
	"testing"

	"github.com/algochat/algochat/pkg/models"
)

func TestMessageCacheStoreDedupesAndTracksLastSyncRound(t *testing.T) {
	c := NewMessageCache()
	var bob models.Address
	bob[0] = 0xBB

	c.Store(bob, []models.Message{
		{ID: "m1", ConfirmedRound: 10},
		{ID: "m2", ConfirmedRound: 20},
	})
	c.Store(bob, []models.Message{
		{ID: "m1", ConfirmedRound: 10}, // duplicate
		{ID: "m3", ConfirmedRound: 5},
	})

	if got := c.LastSyncRound(bob); got != 20 {
		t.Fatalf("expected last sync round 20, got %d", got)
	}

	all := c.Retrieve(bob, 0)
	if len(all) != 3 {
		t.Fatalf("expected 3 distinct messages, got %d", len(all))
	}
}

func TestMessageCacheRetrieveFiltersByRound(t *testing.T) {
	c := NewMessageCache()
	var bob models.Address
	c.Store(bob, []models.Message{
		{ID: "old", ConfirmedRound: 1},
		{ID: "new", ConfirmedRound: 100},
	})

	got := c.Retrieve(bob, 50)
	if len(got) != 1 || got[0].ID != "new" {
		t.Fatalf("expected only 'new', got %+v", got)
	}
}

func TestMessageCacheClearParticipant(t *testing.T) {
	c := NewMessageCache()
	var bob, carol models.Address
	bob[0], carol[0] = 1, 2
	c.Store(bob, []models.Message{{ID: "a", ConfirmedRound: 1}})
	c.Store(carol, []models.Message{{ID: "b", ConfirmedRound: 1}})

	c.ClearParticipant(bob)
	if len(c.Retrieve(bob, 0)) != 0 {
		t.Fatalf("expected bob's cache cleared")
	}
	if len(c.Retrieve(carol, 0)) != 1 {
		t.Fatalf("expected carol's cache untouched")
	}
}
