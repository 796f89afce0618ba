package cryptocore

import (
	"crypto/rand"

	"golang.org/x/crypto/chacha20poly1305"
)

var zeroNonce [NonceSize]byte

const (
	msgInfoPrefix       = "AlgoChatV2"
	senderKeyInfoPrefix = "AlgoChatV2-senderkey"

	v1MessageSalt = "AlgoChat-v1-salt"
	v1MessageInfo = "AlgoChat-v1-message"
	v2MessageInfo = "AlgoChat-v2-message" // resolves an underspecified v2 schedule; see DESIGN.md.
)

// Encrypt seals plaintext as the CURRENT wire format (v3) from sender to
// recipient. The ephemeral private key is zeroized before returning on
// every path.
func Encrypt(plaintext []byte, senderPriv, senderPub, recipientPub [32]byte) (*StandardEnvelope, error) {
	if len(plaintext) > MaxPlaintextV3 {
		return nil, &MessageTooLargeError{Max: MaxPlaintextV3, Got: len(plaintext)}
	}

	var ephPriv [32]byte
	if _, err := rand.Read(ephPriv[:]); err != nil {
		return nil, ErrKeyDerivationFailed
	}
	defer zeroize(ephPriv[:])
	ephKeys, err := DeriveX25519FromScalar(ephPriv)
	if err != nil {
		return nil, err
	}
	ephPub := ephKeys

	ssRecip, err := ecdh(ephPriv, recipientPub)
	if err != nil {
		return nil, err
	}
	defer zeroize(ssRecip)
	kMsg := hkdfSHA256(ssRecip, ephPub[:], append([]byte(msgInfoPrefix), append(senderPub[:], recipientPub[:]...)...), 32)
	defer zeroize(kMsg)

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, ErrKeyDerivationFailed
	}
	aeadMsg, err := chacha20poly1305.New(kMsg)
	if err != nil {
		return nil, ErrKeyDerivationFailed
	}
	ciphertext := aeadMsg.Seal(nil, nonce, plaintext, nil)

	ssSender, err := ecdh(ephPriv, senderPub)
	if err != nil {
		return nil, err
	}
	defer zeroize(ssSender)
	kSender := hkdfSHA256(ssSender, ephPub[:], append([]byte(senderKeyInfoPrefix), senderPub[:]...), 32)
	defer zeroize(kSender)

	aeadSender, err := chacha20poly1305.New(kSender)
	if err != nil {
		return nil, ErrKeyDerivationFailed
	}
	encSenderKey := aeadSender.Seal(nil, zeroNonce[:], kMsg, nil)

	env := &StandardEnvelope{
		Version:      VersionV3,
		SenderStatic: senderPub,
		EphPub:       ephPub,
		EncSenderKey: encSenderKey,
		Ciphertext:   ciphertext,
	}
	copy(env.Nonce[:], nonce)
	return env, nil
}

// Decrypt opens a v1, v2 or v3 standard envelope against myPriv, trying the
// recipient path and then (for v3) the sender path, never leaking which one
// succeeded beyond the returned content. Returns (nil, nil) for the
// key-publish marker.
func Decrypt(env *StandardEnvelope, myPriv [32]byte) (*DecryptedContent, error) {
	switch env.Version {
	case VersionV1:
		return decryptV1(env, myPriv)
	case VersionV2:
		return decryptV2(env, myPriv)
	default:
		return decryptV3(env, myPriv)
	}
}

func decryptV3(env *StandardEnvelope, myPriv [32]byte) (*DecryptedContent, error) {
	ss, err := ecdh(myPriv, env.EphPub)
	if err != nil {
		return nil, decryptionFailed("ECDH failed")
	}
	defer zeroize(ss)

	myPub, err := publicFromPrivate(myPriv)
	if err != nil {
		return nil, decryptionFailed("invalid local key")
	}

	// Recipient path: myPriv is the recipient's static key.
	kMsg := hkdfSHA256(ss, env.EphPub[:], append([]byte(msgInfoPrefix), append(append([]byte{}, env.SenderStatic[:]...), myPub[:]...)...), 32)
	if plaintext, err := openChaCha(kMsg, env.Nonce[:], env.Ciphertext); err == nil {
		zeroize(kMsg)
		return classifyPlaintext(plaintext)
	}
	zeroize(kMsg)

	// Sender path: myPriv is the sender's static key; recover K_msg from
	// encSenderKey under the zero nonce (safe: each message derives a fresh
	// K_sender, so the key is never reused across nonces).
	kSender := hkdfSHA256(ss, env.EphPub[:], append([]byte(senderKeyInfoPrefix), myPub[:]...), 32)
	defer zeroize(kSender)
	recoveredMsgKey, err := openChaCha(kSender, zeroNonce[:], env.EncSenderKey)
	if err != nil {
		return nil, decryptionFailed("AEAD authentication failed")
	}
	defer zeroize(recoveredMsgKey)
	plaintext, err := openChaCha(recoveredMsgKey, env.Nonce[:], env.Ciphertext)
	if err != nil {
		return nil, decryptionFailed("AEAD authentication failed")
	}
	return classifyPlaintext(plaintext)
}

func decryptV1(env *StandardEnvelope, myPriv [32]byte) (*DecryptedContent, error) {
	ss, err := ecdh(myPriv, env.SenderStatic)
	if err != nil {
		return nil, decryptionFailed("ECDH failed")
	}
	defer zeroize(ss)
	k := hkdfSHA256(ss, []byte(v1MessageSalt), []byte(v1MessageInfo), 32)
	defer zeroize(k)
	plaintext, err := openChaCha(k, env.Nonce[:], env.Ciphertext)
	if err != nil {
		return nil, decryptionFailed("AEAD authentication failed")
	}
	return classifyPlaintext(plaintext)
}

func decryptV2(env *StandardEnvelope, myPriv [32]byte) (*DecryptedContent, error) {
	ss, err := ecdh(myPriv, env.EphPub)
	if err != nil {
		return nil, decryptionFailed("ECDH failed")
	}
	defer zeroize(ss)
	myPub, err := publicFromPrivate(myPriv)
	if err != nil {
		return nil, decryptionFailed("invalid local key")
	}
	info := append([]byte(v2MessageInfo), append(append([]byte{}, env.SenderStatic[:]...), myPub[:]...)...)
	k := hkdfSHA256(ss, env.EphPub[:], info, 32)
	defer zeroize(k)
	plaintext, err := openChaCha(k, env.Nonce[:], env.Ciphertext)
	if err != nil {
		return nil, decryptionFailed("AEAD authentication failed")
	}
	return classifyPlaintext(plaintext)
}

// UsesForwardSecrecy reports whether an envelope's key schedule involves a
// per-message ephemeral key. v1 is the legacy static-static format and does
// not.
func UsesForwardSecrecy(version uint8) bool {
	return version != VersionV1
}

func openChaCha(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, nil)
}

// DeriveX25519FromScalar computes the X25519 public point for an existing
// private scalar, used for ephemeral keys that are not derived via HKDF.
func DeriveX25519FromScalar(priv [32]byte) ([32]byte, error) {
	return publicFromPrivate(priv)
}

func publicFromPrivate(priv [32]byte) ([32]byte, error) {
	var pub [32]byte
	out, err := ecdhBase(priv)
	if err != nil {
		return pub, ErrKeyDerivationFailed
	}
	copy(pub[:], out)
	return pub, nil
}
