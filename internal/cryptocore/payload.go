package cryptocore

import (
	"encoding/json"
	"unicode/utf8"
)

// ReplyContext mirrors a reply preview attached to an outgoing message.
type ReplyContext struct {
	TxID    string `json:"txid"`
	Preview string `json:"preview"`
}

// MessagePayload is the plaintext of an envelope's ciphertext field once it
// has been classified as JSON rather than bare UTF-8 text.
type MessagePayload struct {
	Text    string        `json:"text"`
	ReplyTo *ReplyContext `json:"replyTo,omitempty"`
}

const replyPreviewMaxLen = 80

// TruncateReplyPreview trims a quoted message to at most 80 runes, appending
// "..." when truncation occurred. Exactly 80 runes pass through unchanged.
func TruncateReplyPreview(s string) string {
	runes := []rune(s)
	if len(runes) <= replyPreviewMaxLen {
		return s
	}
	return string(runes[:replyPreviewMaxLen]) + "..."
}

// EncodePayload renders a structured payload to its canonical plaintext
// bytes: JSON with sorted keys. Marshalling goes through map[string]any so
// the wire format does not depend on struct field order.
func EncodePayload(p MessagePayload) ([]byte, error) {
	if p.ReplyTo == nil {
		return canonicalJSON(map[string]any{"text": p.Text})
	}
	reply := map[string]any{"txid": p.ReplyTo.TxID, "preview": p.ReplyTo.Preview}
	return canonicalJSON(map[string]any{"text": p.Text, "replyTo": reply})
}

func canonicalJSON(v any) ([]byte, error) {
	// json.Marshal on a map[string]any already sorts keys.
	return json.Marshal(v)
}

// DecryptedContent is what a successful Decrypt call yields once the raw
// plaintext has been classified.
type DecryptedContent struct {
	Text    string
	ReplyTo *ReplyContext
}

// classifyPlaintext routes decrypted bytes: the key-publish marker yields
// (nil, nil) (decrypt success, no content); a leading '{' is parsed as
// canonical JSON; anything else must be valid UTF-8 text.
func classifyPlaintext(raw []byte) (*DecryptedContent, error) {
	if isKeyPublishMarker(raw) {
		return nil, nil
	}
	if len(raw) > 0 && raw[0] == '{' {
		var payload MessagePayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, decryptionFailed("invalid JSON payload")
		}
		return &DecryptedContent{Text: payload.Text, ReplyTo: payload.ReplyTo}, nil
	}
	if !utf8.Valid(raw) {
		return nil, decryptionFailed("not UTF-8")
	}
	return &DecryptedContent{Text: string(raw)}, nil
}

// PlaintextBytes renders the message the caller wants to send into the
// bytes that get sealed: a JSON object when a reply is attached, otherwise
// bare UTF-8 text (matching the legacy simple form the decoder also
// accepts). internal/chat uses this to build the plaintext handed to
// Encrypt/EncryptPSK.
func PlaintextBytes(text string, reply *ReplyContext) ([]byte, error) {
	if reply == nil {
		return []byte(text), nil
	}
	return EncodePayload(MessagePayload{Text: text, ReplyTo: reply})
}
