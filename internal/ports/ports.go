// Package ports defines the collaborator interfaces AlgoChat's core is built
// against. Implementations (a real ledger client, a real indexer, a real
// signing-key manager) live outside this module; internal/demoaccount
// provides reference implementations for tests only.
package ports

import (
	"context"
	"time"
)

// Address is a 32-byte Ed25519 verifying key identifying an account.
type Address [32]byte

// TxID identifies a confirmed or pending ledger transaction.
type TxID string

// Round is a ledger confirmation round number.
type Round uint64

// Transaction is the subset of an on-chain payment transaction AlgoChat cares
// about: its note field and enough routing/ordering metadata to build a
// Message.
type Transaction struct {
	ID        TxID
	Sender    Address
	Recipient Address
	Round     Round
	RoundTime time.Time
	Note      []byte
}

// SearchResult is one page of an Indexer.Search query.
type SearchResult struct {
	Transactions []Transaction
	NextToken    string
}

// Indexer exposes paginated transaction-history queries by address. AlgoChat
// never writes to it; it is a read-only external collaborator.
type Indexer interface {
	// Search returns transactions sent BY address, newest first, paginated
	// via the opaque page token returned in SearchResult.NextToken.
	Search(ctx context.Context, address Address, limit int, pageToken string) (SearchResult, error)
}

// LedgerClient submits payments and waits for their confirmation. It is the
// only way AlgoChat can cause state to change on the ledger.
type LedgerClient interface {
	SendPayment(ctx context.Context, from, to Address, microUnits uint64, note []byte) (TxID, error)
	WaitConfirmed(ctx context.Context, id TxID, timeout time.Duration) (Round, error)
}

// SigningAccount supplies the signing material a local participant uses to
// authenticate on the ledger and to derive AlgoChat's static X25519 key (see
// internal/cryptocore.DeriveX25519). Mnemonic handling and address encoding
// are owned by the concrete implementation, not by this module.
type SigningAccount interface {
	Address() Address
	SigningSeed() [32]byte
	Sign(message []byte) [64]byte
}

// KeyStorageError enumerates the error surface of KeyStorage.
type KeyStorageError string

const (
	ErrKeyNotFound      KeyStorageError = "key_not_found"
	ErrAuthFailed       KeyStorageError = "auth_failed"
	ErrDecryptionFailed KeyStorageError = "decryption_failed"
	ErrPasswordRequired KeyStorageError = "password_required"
)

func (e KeyStorageError) Error() string { return string(e) }

// KeyStorage persists a signing account's private key material outside this
// module (biometric/file key storage UX is explicitly out of scope; this
// interface is only what the Chat facade consumes).
type KeyStorage interface {
	Store(priv []byte, address Address, requireAuth bool) error
	Retrieve(address Address) ([]byte, error)
	HasKey(address Address) bool
	Delete(address Address) error
	ListStoredAddresses() ([]Address, error)
}
