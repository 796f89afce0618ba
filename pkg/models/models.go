// Package models holds the plain data types shared across AlgoChat's
// packages: decrypted messages, conversations, the pending-send queue, PSK
// contacts, and the metrics snapshot exposed to operators.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// Address is a 32-byte Algorand-style public key, used both as an account
// address and, once bound via a signature, as an identity anchor.
type Address [32]byte

// String renders an Address in base58, the same human-readable form used
// for identity ids elsewhere in the codebase.
func (a Address) String() string {
	return base58.Encode(a[:])
}

const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

const (
	PendingStatusQueued  = "queued"
	PendingStatusSending = "sending"
	PendingStatusSent    = "sent"
	PendingStatusFailed  = "failed"
)

// ReplyContext mirrors cryptocore.ReplyContext at the model layer so callers
// outside the crypto package don't need to import it just to read a reply
// preview back out of history.
type ReplyContext struct {
	TxID    string `json:"tx_id"`
	Preview string `json:"preview"`
}

// Message is one decrypted, decoded chat message as it appears in a
// conversation's history.
type Message struct {
	ID             string        `json:"id"`
	Sender         Address       `json:"sender"`
	Recipient      Address       `json:"recipient"`
	Content        string        `json:"content"`
	ReplyTo        *ReplyContext `json:"reply_to,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
	ConfirmedRound uint64        `json:"confirmed_round"`
	Direction      string        `json:"direction"`
}

// Conversation is the ordered message history with a single peer, plus the
// peer's encryption public key as last observed by discovery.
type Conversation struct {
	Participant              Address   `json:"participant"`
	ParticipantEncryptionKey [32]byte  `json:"participant_encryption_key"`
	HasEncryptionKey         bool      `json:"has_encryption_key"`
	Messages                 []Message `json:"messages"`
}

// PendingMessage is a queued outgoing message awaiting confirmation,
// persisted across restarts by internal/queue.
type PendingMessage struct {
	ID               uuid.UUID     `json:"id"`
	Recipient        Address       `json:"recipient"`
	Content          string        `json:"content"`
	ReplyTo          *ReplyContext `json:"reply_to,omitempty"`
	AmountMicroAlgos uint64        `json:"amount_micro_algos"`
	CreatedAt        time.Time     `json:"created_at"`
	LastAttempt      time.Time     `json:"last_attempt,omitempty"`
	RetryCount       int           `json:"retry_count"`
	Status           string        `json:"status"`
	LastError        string        `json:"last_error,omitempty"`
}

// PSKContact is a peer reached through the pre-shared-key ratchet rather
// than public-key discovery.
type PSKContact struct {
	Address    Address  `json:"address"`
	InitialPSK [32]byte `json:"initial_psk"`
	Label      string   `json:"label"`
}

// OperationMetric tracks count/error/latency stats for one named operation
// (e.g. "send", "refresh", "publish_key").
type OperationMetric struct {
	Count         int   `json:"count"`
	Errors        int   `json:"errors"`
	AvgLatencyMs  int64 `json:"avg_latency_ms"`
	MaxLatencyMs  int64 `json:"max_latency_ms"`
	LastLatencyMs int64 `json:"last_latency_ms"`
}

// MetricsSnapshot is the point-in-time view exposed alongside the
// Prometheus collectors in internal/metrics.
type MetricsSnapshot struct {
	PendingQueueSize   int                        `json:"pending_queue_size"`
	ConversationCount  int                        `json:"conversation_count"`
	PSKReplaysRejected int                        `json:"psk_replays_rejected"`
	OperationStats     map[string]OperationMetric `json:"operation_stats"`
	LastUpdatedAt      time.Time                  `json:"last_updated_at"`
}
