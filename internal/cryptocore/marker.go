package cryptocore

// KeyPublishMarker is the distinguished plaintext a self-transaction carries
// when its only purpose is to publish the sender's static encryption key.
// The bytes are fixed once chosen and are part of the wire contract:
// changing them would strand keys published by older clients. They are not valid UTF-8 on their own and cannot be
// produced by the canonical JSON payload encoder (which always starts with
// '{'), so there is no ambiguity with a real message.
var KeyPublishMarker = [16]byte{
	0xA1, 0x60, 0x0C, 0x4A, 0x1E, 0xD5, 0x7F, 0x33,
	0x9B, 0x02, 0x6C, 0x88, 0xF4, 0x1D, 0xE2, 0x5A,
}

func isKeyPublishMarker(b []byte) bool {
	if len(b) != len(KeyPublishMarker) {
		return false
	}
	for i, v := range KeyPublishMarker {
		if b[i] != v {
			return false
		}
	}
	return true
}
