package chat

import "errors"

var (
	// ErrEmptyMessage rejects a Send call with no text and no reply context.
	ErrEmptyMessage = errors.New("chat: message text is empty")

	// ErrSigningAccountRequired is returned by New when no signing account
	// was supplied; the Chat facade cannot derive its own identity without
	// one.
	ErrSigningAccountRequired = errors.New("chat: signing account is required")

	// ErrLedgerRequired is returned by New when no ledger client was
	// supplied.
	ErrLedgerRequired = errors.New("chat: ledger client is required")

	// ErrIndexerRequired is returned by New when no indexer was supplied.
	ErrIndexerRequired = errors.New("chat: indexer is required")

	// ErrIndexerTimeout reports that WaitIndexed's bounded poll exhausted
	// its attempts without observing the sent transaction.
	ErrIndexerTimeout = errors.New("chat: timed out waiting for indexer to observe the sent message")
)
