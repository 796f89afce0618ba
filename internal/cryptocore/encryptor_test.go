package cryptocore

import (
	"strings"
	"testing"

	"golang.org/x/crypto/chacha20poly1305"
)

func mustKeys(t *testing.T, seed byte) StaticKeyPair {
	t.Helper()
	var s [32]byte
	for i := range s {
		s[i] = seed
	}
	keys, err := DeriveX25519(s)
	if err != nil {
		t.Fatalf("DeriveX25519 failed: %v", err)
	}
	return keys
}

func TestEncryptDecryptRoundTripRecipientPath(t *testing.T) {
	alice := mustKeys(t, 0x01)
	bob := mustKeys(t, 0x02)

	env, err := Encrypt([]byte("Hey Bob! Can you read this encrypted message?"), alice.Private, alice.Public, bob.Public)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	got, err := Decrypt(env, bob.Private)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if got.Text != "Hey Bob! Can you read this encrypted message?" {
		t.Fatalf("got %q, want %q", got.Text, "Hey Bob! Can you read this encrypted message?")
	}
}

func TestEncryptDecryptSenderCanDecryptOwnMessage(t *testing.T) {
	alice := mustKeys(t, 0x03)
	bob := mustKeys(t, 0x04)

	env, err := Encrypt([]byte("hi from alice"), alice.Private, alice.Public, bob.Public)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	got, err := Decrypt(env, alice.Private)
	if err != nil {
		t.Fatalf("sender-side decrypt failed: %v", err)
	}
	if got.Text != "hi from alice" {
		t.Fatalf("got %q, want %q", got.Text, "hi from alice")
	}
}

func TestEncryptDecryptFailsForUninvolvedParty(t *testing.T) {
	alice := mustKeys(t, 0x05)
	bob := mustKeys(t, 0x06)
	eve := mustKeys(t, 0x07)

	env, err := Encrypt([]byte("secret"), alice.Private, alice.Public, bob.Public)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := Decrypt(env, eve.Private); err == nil {
		t.Fatalf("expected decryption to fail for an uninvolved party")
	}
}

func TestEncryptDecryptFailsOnCiphertextMutation(t *testing.T) {
	alice := mustKeys(t, 0x08)
	bob := mustKeys(t, 0x09)

	env, err := Encrypt([]byte("tamper test"), alice.Private, alice.Public, bob.Public)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	env.Ciphertext[0] ^= 0x01

	if _, err := Decrypt(env, bob.Private); err == nil {
		t.Fatalf("expected a single-bit ciphertext mutation to break decryption")
	}
}

func TestEncryptRejectsOversizedPlaintext(t *testing.T) {
	alice := mustKeys(t, 0x0A)
	bob := mustKeys(t, 0x0B)

	oversized := strings.Repeat("x", MaxPlaintextV3+1)
	_, err := Encrypt([]byte(oversized), alice.Private, alice.Public, bob.Public)
	var tooLarge *MessageTooLargeError
	if err == nil {
		t.Fatalf("expected an error for oversized plaintext")
	}
	if as, ok := err.(*MessageTooLargeError); ok {
		tooLarge = as
	}
	if tooLarge == nil {
		t.Fatalf("expected a *MessageTooLargeError, got %T", err)
	}
}

func TestEncryptAtMaxPlaintextSizeSucceeds(t *testing.T) {
	alice := mustKeys(t, 0x0C)
	bob := mustKeys(t, 0x0D)

	exact := strings.Repeat("y", MaxPlaintextV3)
	env, err := Encrypt([]byte(exact), alice.Private, alice.Public, bob.Public)
	if err != nil {
		t.Fatalf("expected exact-max plaintext to encrypt, got %v", err)
	}
	got, err := Decrypt(env, bob.Private)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if got.Text != exact {
		t.Fatalf("round trip mismatch at max size")
	}
}

func TestEncryptAtMaxPlaintextFillsFullNote(t *testing.T) {
	alice := mustKeys(t, 0x36)
	bob := mustKeys(t, 0x37)

	env, err := Encrypt([]byte(strings.Repeat("n", MaxPlaintextV3)), alice.Private, alice.Public, bob.Public)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if got := len(env.Encode()); got != 1024 {
		t.Fatalf("max-size v3 envelope encodes to %d bytes, want 1024", got)
	}
}

func TestDecryptFailsOnHeaderFieldMutation(t *testing.T) {
	alice := mustKeys(t, 0x38)
	bob := mustKeys(t, 0x39)

	fresh := func() *StandardEnvelope {
		env, err := Encrypt([]byte("header tamper"), alice.Private, alice.Public, bob.Public)
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}
		return env
	}

	// Each mutation is checked by the party whose decrypt path reads the
	// mutated field: the sealed sender key is only opened when the sender
	// decrypts its own message; the recipient path never reads it.
	mutations := map[string]struct {
		mutate func(*StandardEnvelope)
		reader [32]byte
	}{
		"sender static":     {func(e *StandardEnvelope) { e.SenderStatic[0] ^= 0x01 }, bob.Private},
		"ephemeral key":     {func(e *StandardEnvelope) { e.EphPub[0] ^= 0x01 }, bob.Private},
		"nonce":             {func(e *StandardEnvelope) { e.Nonce[0] ^= 0x01 }, bob.Private},
		"sealed sender key": {func(e *StandardEnvelope) { e.EncSenderKey[0] ^= 0x01 }, alice.Private},
		"tag":               {func(e *StandardEnvelope) { e.Ciphertext[len(e.Ciphertext)-1] ^= 0x01 }, bob.Private},
	}
	for name, m := range mutations {
		env := fresh()
		m.mutate(env)
		if _, err := Decrypt(env, m.reader); err == nil {
			t.Fatalf("%s mutation: expected decryption to fail", name)
		}
	}
}

func TestUsesForwardSecrecyByVersion(t *testing.T) {
	if UsesForwardSecrecy(VersionV1) {
		t.Fatalf("v1 must report no forward secrecy")
	}
	if !UsesForwardSecrecy(VersionV2) || !UsesForwardSecrecy(VersionV3) {
		t.Fatalf("v2 and v3 must report forward secrecy")
	}
}

func TestEncryptProducesUniqueNonceAndEphemeralKeyAcrossCalls(t *testing.T) {
	alice := mustKeys(t, 0x0E)
	bob := mustKeys(t, 0x0F)

	seenNonces := make(map[[12]byte]bool)
	seenEph := make(map[[32]byte]bool)

	for i := 0; i < 1000; i++ {
		env, err := Encrypt([]byte("repeat"), alice.Private, alice.Public, bob.Public)
		if err != nil {
			t.Fatalf("encrypt failed at iteration %d: %v", i, err)
		}
		if seenNonces[env.Nonce] {
			t.Fatalf("nonce reused at iteration %d", i)
		}
		seenNonces[env.Nonce] = true
		if seenEph[env.EphPub] {
			t.Fatalf("ephemeral public key reused at iteration %d", i)
		}
		seenEph[env.EphPub] = true
	}
}

func TestDecryptKeyPublishMarkerYieldsNilContent(t *testing.T) {
	alice := mustKeys(t, 0x10)
	bob := mustKeys(t, 0x11)

	env, err := Encrypt(KeyPublishMarker[:], alice.Private, alice.Public, bob.Public)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	got, err := Decrypt(env, bob.Private)
	if err != nil {
		t.Fatalf("unexpected error decrypting marker: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil content for the key-publish marker, got %+v", got)
	}
}

func TestDecryptV1LegacyEnvelope(t *testing.T) {
	alice := mustKeys(t, 0x12)
	bob := mustKeys(t, 0x13)

	ss, err := ecdh(alice.Private, bob.Public)
	if err != nil {
		t.Fatalf("ecdh failed: %v", err)
	}
	k := hkdfSHA256(ss, []byte(v1MessageSalt), []byte(v1MessageInfo), 32)
	aead, err := chacha20poly1305.New(k)
	if err != nil {
		t.Fatalf("aead setup failed: %v", err)
	}
	nonce := make([]byte, NonceSize)
	ciphertext := aead.Seal(nil, nonce, []byte("Legacy V1 message #1"), nil)

	env := &StandardEnvelope{Version: VersionV1, SenderStatic: alice.Public, Ciphertext: ciphertext}
	copy(env.Nonce[:], nonce)

	got, err := Decrypt(env, bob.Private)
	if err != nil {
		t.Fatalf("v1 decrypt failed: %v", err)
	}
	if got.Text != "Legacy V1 message #1" {
		t.Fatalf("got %q, want %q", got.Text, "Legacy V1 message #1")
	}
}
