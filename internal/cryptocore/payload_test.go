package cryptocore

import (
	"strings"
	"testing"
)

func TestTruncateReplyPreviewExactlyEightyRunesUnchanged(t *testing.T) {
	s := strings.Repeat("a", 80)
	if got := TruncateReplyPreview(s); got != s {
		t.Fatalf("exactly 80 runes must pass through unchanged, got %q", got)
	}
}

func TestTruncateReplyPreviewEightyOneRunesTruncated(t *testing.T) {
	s := strings.Repeat("a", 81)
	got := TruncateReplyPreview(s)
	want := strings.Repeat("a", 80) + "..."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTruncateReplyPreviewCountsRunesNotBytes(t *testing.T) {
	// Each rune below is a multi-byte UTF-8 character; truncation must count
	// runes, not bytes.
	s := strings.Repeat("é", 81)
	got := TruncateReplyPreview(s)
	wantRunes := []rune(strings.Repeat("é", 80))
	if got != string(wantRunes)+"..." {
		t.Fatalf("truncation did not operate on runes: got %q", got)
	}
}

func TestEncodePayloadWithoutReplyOmitsReplyTo(t *testing.T) {
	out, err := EncodePayload(MessagePayload{Text: "hi"})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if got := string(out); got != `{"text":"hi"}` {
		t.Fatalf("got %s", got)
	}
}

func TestEncodePayloadWithReplyIncludesReplyTo(t *testing.T) {
	out, err := EncodePayload(MessagePayload{Text: "hi", ReplyTo: &ReplyContext{TxID: "TX1", Preview: "earlier"}})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got := string(out)
	if !strings.Contains(got, `"text":"hi"`) || !strings.Contains(got, `"replyTo":{"preview":"earlier","txid":"TX1"}`) {
		t.Fatalf("got %s", got)
	}
}

func TestClassifyPlaintextRoutesJSONTextAndMarker(t *testing.T) {
	if content, err := classifyPlaintext([]byte(`{"text":"hello"}`)); err != nil || content.Text != "hello" {
		t.Fatalf("JSON path failed: content=%+v err=%v", content, err)
	}
	if content, err := classifyPlaintext([]byte("plain text")); err != nil || content.Text != "plain text" {
		t.Fatalf("plain text path failed: content=%+v err=%v", content, err)
	}
	if content, err := classifyPlaintext(KeyPublishMarker[:]); err != nil || content != nil {
		t.Fatalf("marker path failed: content=%+v err=%v", content, err)
	}
}

func TestClassifyPlaintextRejectsInvalidUTF8(t *testing.T) {
	if _, err := classifyPlaintext([]byte{0xff, 0xfe, 0xfd}); err == nil {
		t.Fatalf("expected invalid UTF-8 to be rejected")
	}
}

func TestClassifyPlaintextRejectsMalformedJSON(t *testing.T) {
	if _, err := classifyPlaintext([]byte(`{not valid json`)); err == nil {
		t.Fatalf("expected malformed JSON starting with '{' to be rejected")
	}
}
