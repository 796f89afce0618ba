// Package queue implements SendQueue: a durable FIFO of outgoing messages
// awaiting ledger confirmation, with retry accounting and optional atomic
// on-disk persistence via internal/securestore.
package queue

import (
	"encoding/json"
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/algochat/algochat/internal/securestore"
	"github.com/algochat/algochat/pkg/models"
	"github.com/google/uuid"
)

// ErrMaxRetriesExceeded is returned by MarkFailed when the failure it just
// recorded exhausted the message's retry budget; Dequeue simply skips such
// entries rather than returning this error.
var ErrMaxRetriesExceeded = errors.New("queue: max retries exceeded")

const defaultMaxRetries = 3

// Storage persists the queue's snapshot. internal/securestore implements
// this via an encrypted, atomically-written file.
type Storage interface {
	Save(items []models.PendingMessage) error
	Load() ([]models.PendingMessage, error)
}

// SendQueue is a FIFO-by-createdAt queue of pending outgoing messages.
type SendQueue struct {
	mu         sync.Mutex
	items      map[uuid.UUID]models.PendingMessage
	maxRetries int
	storage    Storage
}

// New returns an empty SendQueue. A nil storage disables persistence.
func New(storage Storage, maxRetries int) *SendQueue {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &SendQueue{
		items:      make(map[uuid.UUID]models.PendingMessage),
		maxRetries: maxRetries,
		storage:    storage,
	}
}

// Load replaces the queue's contents with what Storage has persisted.
func (q *SendQueue) Load() error {
	if q.storage == nil {
		return nil
	}
	items, err := q.storage.Load()
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = make(map[uuid.UUID]models.PendingMessage, len(items))
	for _, item := range items {
		q.items[item.ID] = item
	}
	return nil
}

// Enqueue adds msg to the queue (status defaults to queued) and persists.
func (q *SendQueue) Enqueue(msg models.PendingMessage) error {
	if msg.Status == "" {
		msg.Status = models.PendingStatusQueued
	}
	q.mu.Lock()
	q.items[msg.ID] = msg
	q.mu.Unlock()
	return q.persist()
}

// Dequeue returns the oldest-by-createdAt message eligible to send: not
// already "sending" and under the retry budget.
func (q *SendQueue) Dequeue() (models.PendingMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	candidates := make([]models.PendingMessage, 0, len(q.items))
	for _, item := range q.items {
		if item.Status == models.PendingStatusSending {
			continue
		}
		if item.RetryCount >= q.maxRetries {
			continue
		}
		candidates = append(candidates, item)
	}
	if len(candidates) == 0 {
		return models.PendingMessage{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	return candidates[0], true
}

// MarkSending transitions id to the "sending" state.
func (q *SendQueue) MarkSending(id uuid.UUID) error {
	return q.update(id, func(m *models.PendingMessage) {
		m.Status = models.PendingStatusSending
	})
}

// MarkSent transitions id to "sent".
func (q *SendQueue) MarkSent(id uuid.UUID) error {
	return q.update(id, func(m *models.PendingMessage) {
		m.Status = models.PendingStatusSent
	})
}

// MarkFailed increments the retry count, records lastError and lastAttempt,
// and sets status back to "failed" so a later Dequeue can retry it. When
// this failure exhausted the retry budget it returns ErrMaxRetriesExceeded
// (after persisting) so the caller can surface the message as undeliverable.
func (q *SendQueue) MarkFailed(id uuid.UUID, lastAttempt time.Time, reason string) error {
	var exhausted bool
	if err := q.update(id, func(m *models.PendingMessage) {
		m.RetryCount++
		m.Status = models.PendingStatusFailed
		m.LastError = reason
		m.LastAttempt = lastAttempt
		exhausted = m.RetryCount >= q.maxRetries
	}); err != nil {
		return err
	}
	if exhausted {
		return ErrMaxRetriesExceeded
	}
	return nil
}

// Remove deletes id from the queue (used once a message is fully
// confirmed and no longer needs tracking).
func (q *SendQueue) Remove(id uuid.UUID) error {
	q.mu.Lock()
	delete(q.items, id)
	q.mu.Unlock()
	return q.persist()
}

// Snapshot returns every item currently in the queue, for inspection/tests.
func (q *SendQueue) Snapshot() []models.PendingMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.PendingMessage, 0, len(q.items))
	for _, item := range q.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (q *SendQueue) update(id uuid.UUID, fn func(*models.PendingMessage)) error {
	q.mu.Lock()
	item, ok := q.items[id]
	if !ok {
		q.mu.Unlock()
		return errors.New("queue: message not found")
	}
	fn(&item)
	q.items[id] = item
	q.mu.Unlock()
	return q.persist()
}

func (q *SendQueue) persist() error {
	if q.storage == nil {
		return nil
	}
	return q.storage.Save(q.Snapshot())
}

// FileStorage adapts internal/securestore's atomic, encrypted file
// persistence to the Storage interface: write-to-temp-then-rename on save,
// and an empty queue removes the file entirely.
type FileStorage struct {
	Path       string
	Passphrase string
}

// Save persists items, removing the file entirely when the queue is empty.
func (f *FileStorage) Save(items []models.PendingMessage) error {
	if len(items) == 0 {
		return securestore.RemoveIfExists(f.Path)
	}
	return securestore.WriteEncryptedJSON(f.Path, f.Passphrase, items)
}

// Load reads and decrypts the persisted queue, returning an empty slice if
// no file has been written yet.
func (f *FileStorage) Load() ([]models.PendingMessage, error) {
	raw, err := securestore.ReadDecryptedFile(f.Path, f.Passphrase)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var items []models.PendingMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}
