package cryptocore

import (
	"crypto/rand"

	"golang.org/x/crypto/chacha20poly1305"
)

// EncryptPSK seals plaintext under the PSK ratchet protocol at ratchet
// counter `counter`. The caller (internal/pskstate) owns counter
// advancement; EncryptPSK is a pure function of its inputs.
func EncryptPSK(plaintext []byte, counter uint32, initialPSK [32]byte, senderPriv, senderPub, recipientPub [32]byte) (*PSKEnvelope, error) {
	if len(plaintext) > MaxPlaintextPSK {
		return nil, &MessageTooLargeError{Max: MaxPlaintextPSK, Got: len(plaintext)}
	}

	var ephPriv [32]byte
	if _, err := rand.Read(ephPriv[:]); err != nil {
		return nil, ErrKeyDerivationFailed
	}
	defer zeroize(ephPriv[:])
	ephPub, err := publicFromPrivate(ephPriv)
	if err != nil {
		return nil, err
	}

	current := CurrentPSK(initialPSK, counter)

	ssRecip, err := ecdh(ephPriv, recipientPub)
	if err != nil {
		return nil, err
	}
	defer zeroize(ssRecip)
	kMsg := pskMessageKey(ssRecip, current, ephPub, senderPub, recipientPub)
	defer zeroize(kMsg)

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, ErrKeyDerivationFailed
	}
	ciphertext, err := sealChaCha(kMsg, nonce, plaintext)
	if err != nil {
		return nil, ErrKeyDerivationFailed
	}

	ssSender, err := ecdh(ephPriv, senderPub)
	if err != nil {
		return nil, err
	}
	defer zeroize(ssSender)
	kSender := pskSenderKey(ssSender, current, ephPub, senderPub)
	defer zeroize(kSender)
	encSenderKey, err := sealChaCha(kSender, zeroNonce[:], kMsg)
	if err != nil {
		return nil, ErrKeyDerivationFailed
	}

	env := &PSKEnvelope{
		Counter:      counter,
		SenderStatic: senderPub,
		EphPub:       ephPub,
		EncSenderKey: encSenderKey,
	}
	copy(env.Nonce[:], nonce)
	env.Ciphertext = ciphertext
	return env, nil
}

// DecryptPSK opens a PSK envelope against myPriv, given the counter's
// already-derived current PSK (the caller validates/records the counter via
// PSKState before calling this). Recipient path is tried first, then the
// sender's own-message path.
func DecryptPSK(env *PSKEnvelope, currentPSK [32]byte, myPriv [32]byte) (*DecryptedContent, error) {
	ss, err := ecdh(myPriv, env.EphPub)
	if err != nil {
		return nil, decryptionFailed("ECDH failed")
	}
	defer zeroize(ss)
	myPub, err := publicFromPrivate(myPriv)
	if err != nil {
		return nil, decryptionFailed("invalid local key")
	}

	kMsg := pskMessageKey(ss, currentPSK, env.EphPub, env.SenderStatic, myPub)
	if plaintext, err := openChaCha(kMsg, env.Nonce[:], env.Ciphertext); err == nil {
		zeroize(kMsg)
		return classifyPlaintext(plaintext)
	}
	zeroize(kMsg)

	kSender := pskSenderKey(ss, currentPSK, env.EphPub, myPub)
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

func sealChaCha(key, nonce, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}
