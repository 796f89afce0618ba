package queue

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/algochat/algochat/internal/testutil/fsperm"
	"github.com/algochat/algochat/pkg/models"
	"github.com/google/uuid"
)

func TestEnqueueDequeueLifecycle(t *testing.T) {
	q := New(nil, 3)
	var recipient models.Address
	id := uuid.New()
	if err := q.Enqueue(models.PendingMessage{ID: id, Recipient: recipient, Content: "hi", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	got, ok := q.Dequeue()
	if !ok || got.ID != id {
		t.Fatalf("expected to dequeue %v, got %v ok=%v", id, got.ID, ok)
	}

	if err := q.MarkSending(id); err != nil {
		t.Fatalf("mark sending failed: %v", err)
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatalf("expected dequeue to skip a sending message")
	}

	if err := q.MarkSent(id); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	snap := q.Snapshot()
	if len(snap) != 1 || snap[0].Status != models.PendingStatusSent {
		t.Fatalf("expected sent status, got %+v", snap)
	}
}

func TestDequeueSkipsExhaustedRetries(t *testing.T) {
	q := New(nil, 2)
	id := uuid.New()
	q.Enqueue(models.PendingMessage{ID: id, CreatedAt: time.Now()})
	if err := q.MarkFailed(id, time.Now(), "boom"); err != nil {
		t.Fatalf("first failure should not exhaust the budget: %v", err)
	}
	if err := q.MarkFailed(id, time.Now(), "boom again"); err != ErrMaxRetriesExceeded {
		t.Fatalf("expected ErrMaxRetriesExceeded on the final failure, got %v", err)
	}

	if _, ok := q.Dequeue(); ok {
		t.Fatalf("expected message with retryCount >= maxRetries to be skipped")
	}
	snap := q.Snapshot()
	if snap[0].RetryCount != 2 || snap[0].LastError != "boom again" {
		t.Fatalf("unexpected snapshot: %+v", snap[0])
	}
}

func TestDequeuePicksOldestByCreatedAt(t *testing.T) {
	q := New(nil, 3)
	older := uuid.New()
	newer := uuid.New()
	base := time.Now()
	q.Enqueue(models.PendingMessage{ID: newer, CreatedAt: base.Add(time.Minute)})
	q.Enqueue(models.PendingMessage{ID: older, CreatedAt: base})

	got, ok := q.Dequeue()
	if !ok || got.ID != older {
		t.Fatalf("expected oldest message first, got %v", got.ID)
	}
}

func TestFileStorageRoundTripAndEmptyRemovesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	storage := &FileStorage{Path: filepath.Join(dir, "queue.enc"), Passphrase: "pw"}
	q := New(storage, 3)

	id := uuid.New()
	reply := &models.ReplyContext{TxID: "tx1", Preview: "hi"}
	if err := q.Enqueue(models.PendingMessage{ID: id, Content: "hello", ReplyTo: reply, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	fsperm.AssertPrivateDirPerm(t, dir)

	reloaded := New(storage, 3)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	snap := reloaded.Snapshot()
	if len(snap) != 1 || snap[0].Content != "hello" || snap[0].ReplyTo.TxID != "tx1" {
		t.Fatalf("unexpected reloaded snapshot: %+v", snap)
	}

	if err := q.Remove(id); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	emptyReload := New(storage, 3)
	if err := emptyReload.Load(); err != nil {
		t.Fatalf("load after empty failed: %v", err)
	}
	if len(emptyReload.Snapshot()) != 0 {
		t.Fatalf("expected empty queue after removing last item")
	}
}
