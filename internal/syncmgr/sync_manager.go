// Package syncmgr implements SyncManager: the offline-to-online trigger
// that drains SendQueue once connectivity returns, guarded so a sync pass
// never runs concurrently with itself.
package syncmgr

import (
	"context"
	"sync"
	"time"

	"github.com/algochat/algochat/internal/platform/ratelimiter"
	"github.com/algochat/algochat/internal/queue"
	"github.com/algochat/algochat/pkg/models"
)

const defaultMaxRetries = 3

// Sender is the subset of the Chat facade SyncManager needs: submitting one
// already-queued message to the ledger. internal/chat implements this
// rather than syncmgr depending on chat, to avoid an import cycle.
type Sender interface {
	SendPending(ctx context.Context, msg models.PendingMessage) (txID string, err error)
}

// Callbacks are invoked as each queued message resolves during a sync pass.
type Callbacks struct {
	OnMessageSent   func(models.PendingMessage, string)
	OnMessageFailed func(models.PendingMessage, error)
}

// SyncManager tracks connectivity and drives SendQueue retries.
type SyncManager struct {
	mu         sync.Mutex
	online     bool
	syncing    bool
	queue      *queue.SendQueue
	sender     Sender
	maxRetries int
	limiter    *ratelimiter.MapLimiter
	callbacks  Callbacks
}

// New constructs a SyncManager starting offline.
func New(q *queue.SendQueue, sender Sender, maxRetries int, limiter *ratelimiter.MapLimiter, callbacks Callbacks) *SyncManager {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &SyncManager{
		queue:      q,
		sender:     sender,
		maxRetries: maxRetries,
		limiter:    limiter,
		callbacks:  callbacks,
	}
}

// SetOnline updates connectivity state. A false-to-true transition triggers
// a sync pass.
func (s *SyncManager) SetOnline(ctx context.Context, online bool) error {
	s.mu.Lock()
	wasOnline := s.online
	s.online = online
	s.mu.Unlock()

	if online && !wasOnline {
		return s.syncIfNeeded(ctx)
	}
	return nil
}

// IsOnline reports the last connectivity state set via SetOnline.
func (s *SyncManager) IsOnline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// IsSyncing reports whether a sync pass is currently in flight.
func (s *SyncManager) IsSyncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

// Sync runs a sync pass unconditionally, subject to the same mutual-
// exclusion guard as the automatic trigger.
func (s *SyncManager) Sync(ctx context.Context) error {
	return s.syncIfNeeded(ctx)
}

func (s *SyncManager) syncIfNeeded(ctx context.Context) error {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		return nil
	}
	s.syncing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}()

	return s.drain(ctx)
}

// drain attempts every currently-eligible queued message at most once. A
// snapshot is taken up front (already FIFO-ordered by createdAt) so a
// message that fails and is re-queued for retry is picked up on the next
// sync pass, not looped on within this one. A message whose recipient the
// limiter denies is left queued for the next pass.
func (s *SyncManager) drain(ctx context.Context) error {
	for _, candidate := range s.queue.Snapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if candidate.Status == models.PendingStatusSending {
			continue
		}
		if candidate.RetryCount >= s.maxRetries {
			continue
		}

		if !s.limiter.Allow(candidate.Recipient.String(), time.Now()) {
			continue
		}

		if err := s.queue.MarkSending(candidate.ID); err != nil {
			continue
		}
		txID, err := s.sender.SendPending(ctx, candidate)
		if err != nil {
			s.queue.MarkFailed(candidate.ID, time.Now(), err.Error())
			if s.callbacks.OnMessageFailed != nil {
				s.callbacks.OnMessageFailed(candidate, err)
			}
			continue
		}
		if err := s.queue.MarkSent(candidate.ID); err != nil {
			continue
		}
		if s.callbacks.OnMessageSent != nil {
			s.callbacks.OnMessageSent(candidate, txID)
		}
	}
	return nil
}
