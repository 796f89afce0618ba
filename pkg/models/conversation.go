package models

import "sort"

// AppendMessage inserts msg into conv in timestamp-ascending order,
// de-duplicating by ID so a message observed twice by discovery (e.g. once
// from the queue's own send confirmation, once from a later indexer scan)
// never appears twice in history (internal/conversation leans on this for
// merge semantics).
func AppendMessage(conv Conversation, msg Message) Conversation {
	for _, existing := range conv.Messages {
		if existing.ID == msg.ID {
			return conv
		}
	}
	conv.Messages = append(conv.Messages, msg)
	sort.SliceStable(conv.Messages, func(i, j int) bool {
		return conv.Messages[i].Timestamp.Before(conv.Messages[j].Timestamp)
	})
	return conv
}

// LastSent returns the most recent message this account sent in conv, if
// any.
func LastSent(conv Conversation) (Message, bool) {
	return lastByDirection(conv, DirectionSent)
}

// LastReceived returns the most recent message received from the
// participant in conv, if any.
func LastReceived(conv Conversation) (Message, bool) {
	return lastByDirection(conv, DirectionReceived)
}

func lastByDirection(conv Conversation, direction string) (Message, bool) {
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Direction == direction {
			return conv.Messages[i], true
		}
	}
	return Message{}, false
}
