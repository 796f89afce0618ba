package cryptocore

// PSKRatchet is a pure key schedule: ratchet counter -> (session, position)
// -> PSK. It holds no state of its own; PSKState (internal/pskstate) tracks
// the mutable counters this schedule is indexed by.
const (
	// SessionSize is how many ratchet positions share one session PSK.
	SessionSize = 100
)

func u32be(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

// SessionPSK derives the session-level PSK at session index i.
func SessionPSK(initialPSK [32]byte, i uint32) [32]byte {
	var out [32]byte
	copy(out[:], hkdfSHA256(initialPSK[:], []byte("AlgoChat-PSK-Session"), u32be(i), 32))
	return out
}

// PositionPSK derives the position-level PSK within a session.
func PositionPSK(sessionPSK [32]byte, p uint32) [32]byte {
	var out [32]byte
	copy(out[:], hkdfSHA256(sessionPSK[:], []byte("AlgoChat-PSK-Position"), u32be(p), 32))
	return out
}

// CurrentPSK derives the PSK active at ratchet counter c:
// session = c/SessionSize, position = c%SessionSize.
func CurrentPSK(initialPSK [32]byte, c uint32) [32]byte {
	session := c / SessionSize
	position := c % SessionSize
	return PositionPSK(SessionPSK(initialPSK, session), position)
}

const (
	pskMsgInfoPrefix    = "AlgoChatV1-PSK"
	pskSenderInfoPrefix = "AlgoChatV1-PSK-SenderKey"
)

// pskMessageKey derives the hybrid AEAD key for a PSK-protocol message:
// K_msg = HKDF(IKM = ECDH(ep, recipientPub) ‖ currentPSK, salt = EP,
//
//	info = "AlgoChatV1-PSK" ‖ senderStatic ‖ recipientStatic, L = 32)
func pskMessageKey(ecdhSS []byte, currentPSK [32]byte, ephPub, senderStatic, recipientStatic [32]byte) []byte {
	ikm := append(append([]byte{}, ecdhSS...), currentPSK[:]...)
	info := append(append([]byte(pskMsgInfoPrefix), senderStatic[:]...), recipientStatic[:]...)
	return hkdfSHA256(ikm, ephPub[:], info, 32)
}

// pskSenderKey derives the key that seals/opens the sender's own copy of
// K_msg, enabling bidirectional PSK decryption symmetrically to the
// standard v3 envelope's sender path.
func pskSenderKey(ecdhSS []byte, currentPSK [32]byte, ephPub, senderStatic [32]byte) []byte {
	ikm := append(append([]byte{}, ecdhSS...), currentPSK[:]...)
	info := append([]byte(pskSenderInfoPrefix), senderStatic[:]...)
	return hkdfSHA256(ikm, ephPub[:], info, 32)
}
