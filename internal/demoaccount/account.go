// Package demoaccount provides reference, test-only implementations of
// internal/ports: a BIP-39-backed signing account and an in-memory ledger.
// Accounts are held in memory with no password envelope; they are throwaway
// test identities, not a production key store.
package demoaccount

import (
	"crypto/ed25519"
	"errors"
	"strings"

	"github.com/algochat/algochat/internal/ports"
	"github.com/tyler-smith/go-bip39"
)

var (
	ErrMnemonicRequired = errors.New("demoaccount: mnemonic is required")
	ErrInvalidMnemonic  = errors.New("demoaccount: invalid mnemonic")
)

// BIP39SigningAccount is a ports.SigningAccount derived deterministically
// from a BIP-39 mnemonic.
type BIP39SigningAccount struct {
	address ports.Address
	priv    ed25519.PrivateKey
	seed    [32]byte
}

// NewBIP39Account generates a fresh mnemonic and derives an account from it.
func NewBIP39Account() (*BIP39SigningAccount, string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return nil, "", err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", err
	}
	acct, err := ImportBIP39Account(mnemonic)
	return acct, mnemonic, err
}

// ImportBIP39Account derives an account from an existing mnemonic.
func ImportBIP39Account(mnemonic string) (*BIP39SigningAccount, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic == "" {
		return nil, ErrMnemonicRequired
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	seedBytes := bip39.NewSeed(mnemonic, "")
	var seed [32]byte
	copy(seed[:], seedBytes[:32])

	priv := ed25519.NewKeyFromSeed(seed[:])
	pub := priv.Public().(ed25519.PublicKey)

	var address ports.Address
	copy(address[:], pub)

	return &BIP39SigningAccount{address: address, priv: priv, seed: seed}, nil
}

func (a *BIP39SigningAccount) Address() ports.Address { return a.address }

func (a *BIP39SigningAccount) SigningSeed() [32]byte { return a.seed }

func (a *BIP39SigningAccount) Sign(message []byte) [64]byte {
	var sig [64]byte
	copy(sig[:], ed25519.Sign(a.priv, message))
	return sig
}
