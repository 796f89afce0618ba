package cryptocore

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	staticKeySalt = "AlgoChat-v1-encryption"
	staticKeyInfo = "x25519-key"

	// PublicKeySize is the length in bytes of an encoded X25519 public key.
	PublicKeySize = 32
)

// StaticKeyPair is a deterministic X25519 keypair derived from a signing
// identity's seed. The private scalar is clamped by curve25519.X25519
// internally on first use; DeriveX25519 stores the raw HKDF output, which is
// what the identity's static key is defined to be.
type StaticKeyPair struct {
	Private [32]byte
	Public  [32]byte
}

// DeriveX25519 derives the static X25519 keypair for a signing identity:
//
//	K = HKDF-SHA256(IKM = seed, salt = "AlgoChat-v1-encryption", info = "x25519-key", L = 32)
//
// K is interpreted as an X25519 private scalar; the public key is its curve
// point. The derivation is deterministic: the same seed always yields the
// same keypair.
func DeriveX25519(seed [32]byte) (StaticKeyPair, error) {
	reader := hkdf.New(sha256.New, seed[:], []byte(staticKeySalt), []byte(staticKeyInfo))
	var priv [32]byte
	if _, err := io.ReadFull(reader, priv[:]); err != nil {
		return StaticKeyPair{}, ErrKeyDerivationFailed
	}
	var pub [32]byte
	out, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return StaticKeyPair{}, ErrKeyDerivationFailed
	}
	copy(pub[:], out)
	return StaticKeyPair{Private: priv, Public: pub}, nil
}

// EncodePub returns the 32-byte wire encoding of an X25519 public key.
func EncodePub(pub [32]byte) []byte {
	out := make([]byte, PublicKeySize)
	copy(out, pub[:])
	return out
}

// DecodePub parses a 32-byte X25519 public key, rejecting any other length.
func DecodePub(b []byte) ([32]byte, error) {
	var pub [32]byte
	if len(b) != PublicKeySize {
		return pub, ErrInvalidPublicKey
	}
	copy(pub[:], b)
	return pub, nil
}

func ecdh(priv, pub [32]byte) ([]byte, error) {
	ss, err := curve25519.X25519(priv[:], pub[:])
	if err != nil {
		return nil, ErrKeyDerivationFailed
	}
	return ss, nil
}

func ecdhBase(priv [32]byte) ([]byte, error) {
	return curve25519.X25519(priv[:], curve25519.Basepoint)
}

func hkdfSHA256(ikm, salt, info []byte, length int) []byte {
	reader := hkdf.New(sha256.New, ikm, salt, info)
	out := make([]byte, length)
	_, _ = io.ReadFull(reader, out)
	return out
}

// zeroize overwrites key material in place; called at function scope exit on
// all paths once ephemeral keys are no longer needed.
func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
