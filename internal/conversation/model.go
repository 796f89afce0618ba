// Package conversation implements the conversation model: a
// participant-keyed, timestamp-sorted, de-duplicated message set with
// lastSent/lastReceived views. The heavy lifting (ordering, dedup) lives in
// pkg/models so callers outside this package can build a Conversation
// without importing indexer or ledger types; this package adds the
// lazy-create-on-first-contact behavior the Chat facade needs.
package conversation

import "github.com/algochat/algochat/pkg/models"

// New returns an empty conversation for participant, with no encryption key
// recorded yet.
func New(participant models.Address) models.Conversation {
	return models.Conversation{Participant: participant}
}

// Append inserts m into conv, preserving timestamp-ascending order and
// de-duplicating by id.
func Append(conv models.Conversation, m models.Message) models.Conversation {
	return models.AppendMessage(conv, m)
}

// Merge appends every message in ms into conv.
func Merge(conv models.Conversation, ms []models.Message) models.Conversation {
	for _, m := range ms {
		conv = models.AppendMessage(conv, m)
	}
	return conv
}

// WithEncryptionKey records the participant's discovered static X25519 key
// on conv.
func WithEncryptionKey(conv models.Conversation, key [32]byte) models.Conversation {
	conv.ParticipantEncryptionKey = key
	conv.HasEncryptionKey = true
	return conv
}

// LastSent returns the most recent message this account sent in conv.
func LastSent(conv models.Conversation) (models.Message, bool) {
	return models.LastSent(conv)
}

// LastReceived returns the most recent message received from the
// participant in conv.
func LastReceived(conv models.Conversation) (models.Message, bool) {
	return models.LastReceived(conv)
}
