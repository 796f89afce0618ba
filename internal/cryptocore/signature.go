package cryptocore

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignEncryptionKey binds a static X25519 public key to its holder's
// address by signing it with the Ed25519 signing key. VerifyEncryptionKey
// checks the result. The envelopes in this package carry no signature
// field, so neither the key-publish flow nor key discovery attaches or
// checks one.
func SignEncryptionKey(encPub [32]byte, signingKey ed25519.PrivateKey) [64]byte {
	var sig [64]byte
	copy(sig[:], ed25519.Sign(signingKey, encPub[:]))
	return sig
}

// VerifyEncryptionKey checks that signature is a valid Ed25519 signature of
// encPub under address (the signing public key).
func VerifyEncryptionKey(encPub [32]byte, address [32]byte, signature [64]byte) bool {
	return ed25519.Verify(ed25519.PublicKey(address[:]), encPub[:], signature[:])
}

// Fingerprint returns a human-verifiable rendering of an encryption public
// key: the first 8 bytes of SHA-256(encPub) as uppercase hex, grouped in
// 4-character blocks ("XXXX XXXX XXXX XXXX").
func Fingerprint(encPub [32]byte) string {
	sum := sha256.Sum256(encPub[:])
	hexStr := strings.ToUpper(hex.EncodeToString(sum[:8]))
	var b strings.Builder
	for i := 0; i < len(hexStr); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(hexStr[i : i+4])
	}
	return b.String()
}
