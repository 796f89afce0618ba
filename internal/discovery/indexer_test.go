package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/algochat/algochat/internal/cache"
	"github.com/algochat/algochat/internal/cryptocore"
	"github.com/algochat/algochat/internal/ports"
	"github.com/algochat/algochat/internal/pskstate"
	"github.com/algochat/algochat/pkg/models"
)

type fakeIndexer struct {
	byAddress map[ports.Address][]ports.Transaction
}

func (f *fakeIndexer) Search(_ context.Context, address ports.Address, limit int, _ string) (ports.SearchResult, error) {
	txs := f.byAddress[address]
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return ports.SearchResult{Transactions: txs}, nil
}

func mustStaticKey(t *testing.T, seed byte) cryptocore.StaticKeyPair {
	t.Helper()
	var s [32]byte
	for i := range s {
		s[i] = seed
	}
	kp, err := cryptocore.DeriveX25519(s)
	if err != nil {
		t.Fatalf("derive key failed: %v", err)
	}
	return kp
}

func TestFetchPublicKeyFindsEnvelopeFromSelfTransactions(t *testing.T) {
	alice := mustStaticKey(t, 0x01)
	var aliceAddr models.Address
	aliceAddr[0] = 0xA1

	env, err := cryptocore.Encrypt([]byte("hi"), alice.Private, alice.Public, alice.Public)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	idx := &fakeIndexer{byAddress: map[ports.Address][]ports.Transaction{
		ports.Address(aliceAddr): {
			{ID: "tx1", Sender: ports.Address(aliceAddr), Recipient: ports.Address(aliceAddr), Note: env.Encode(), RoundTime: time.Now()},
		},
	}}

	mi := New(idx, cache.NewPublicKeyCache(time.Minute))
	got, err := mi.FetchPublicKey(context.Background(), aliceAddr)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if got != alice.Public {
		t.Fatalf("expected discovered key to equal alice's static public key")
	}
}

func TestFetchPublicKeyNotFound(t *testing.T) {
	idx := &fakeIndexer{byAddress: map[ports.Address][]ports.Transaction{}}
	mi := New(idx, cache.NewPublicKeyCache(time.Minute), WithMaxPages(1))
	var addr models.Address
	if _, err := mi.FetchPublicKey(context.Background(), addr); err == nil {
		t.Fatalf("expected PublicKeyNotFoundError")
	}
}

func TestScanMessagesDecryptsBothDirections(t *testing.T) {
	alice := mustStaticKey(t, 0x02)
	bob := mustStaticKey(t, 0x03)
	var aliceAddr, bobAddr models.Address
	aliceAddr[0], bobAddr[0] = 0xA1, 0xB0

	toBob, err := cryptocore.Encrypt([]byte("hello bob"), alice.Private, alice.Public, bob.Public)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	toAlice, err := cryptocore.Encrypt([]byte("hi alice"), bob.Private, bob.Public, alice.Public)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	now := time.Now()
	idx := &fakeIndexer{byAddress: map[ports.Address][]ports.Transaction{
		ports.Address(aliceAddr): {
			{ID: "tx1", Sender: ports.Address(aliceAddr), Recipient: ports.Address(bobAddr), Note: toBob.Encode(), RoundTime: now, Round: 5},
		},
		ports.Address(bobAddr): {
			{ID: "tx2", Sender: ports.Address(bobAddr), Recipient: ports.Address(aliceAddr), Note: toAlice.Encode(), RoundTime: now.Add(time.Second), Round: 6},
		},
	}}

	mi := New(idx, cache.NewPublicKeyCache(time.Minute))
	msgs, err := mi.ScanMessages(context.Background(), aliceAddr, alice.Private, bobAddr, 0, nil)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d: %+v", len(msgs), msgs)
	}
	if msgs[0].Content != "hello bob" || msgs[0].Direction != models.DirectionSent {
		t.Fatalf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].Content != "hi alice" || msgs[1].Direction != models.DirectionReceived {
		t.Fatalf("unexpected second message: %+v", msgs[1])
	}
}

type mapPSKLookup map[models.Address]struct {
	psk   [32]byte
	state *pskstate.State
}

func (m mapPSKLookup) Lookup(peer models.Address) ([32]byte, *pskstate.State, bool) {
	v, ok := m[peer]
	return v.psk, v.state, ok
}

func TestScanMessagesSkipsPskEnvelopeWithoutContact(t *testing.T) {
	alice := mustStaticKey(t, 0x04)
	bob := mustStaticKey(t, 0x05)
	var aliceAddr, bobAddr models.Address
	aliceAddr[0], bobAddr[0] = 0xA1, 0xB0

	var initialPSK [32]byte
	for i := range initialPSK {
		initialPSK[i] = 0xAA
	}
	env, err := cryptocore.EncryptPSK([]byte("psk hello"), 0, initialPSK, bob.Private, bob.Public, alice.Public)
	if err != nil {
		t.Fatalf("encrypt psk failed: %v", err)
	}

	idx := &fakeIndexer{byAddress: map[ports.Address][]ports.Transaction{
		ports.Address(bobAddr): {
			{ID: "tx1", Sender: ports.Address(bobAddr), Recipient: ports.Address(aliceAddr), Note: env.Encode(), RoundTime: time.Now(), Round: 1},
		},
	}}

	mi := New(idx, cache.NewPublicKeyCache(time.Minute))
	msgs, err := mi.ScanMessages(context.Background(), aliceAddr, alice.Private, bobAddr, 0, mapPSKLookup{})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected psk message to be skipped without a contact, got %+v", msgs)
	}

	lookup := mapPSKLookup{bobAddr: {psk: initialPSK, state: pskstate.New()}}
	msgs, err = mi.ScanMessages(context.Background(), aliceAddr, alice.Private, bobAddr, 0, lookup)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "psk hello" {
		t.Fatalf("expected decrypted psk message, got %+v", msgs)
	}

	// A second scan sees the same received counter again and rejects it as
	// a replay, so the message only surfaces from the cache layer above.
	msgs, err = mi.ScanMessages(context.Background(), aliceAddr, alice.Private, bobAddr, 0, lookup)
	if err != nil {
		t.Fatalf("rescan failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected replayed counter to be rejected on rescan, got %+v", msgs)
	}
}

func TestScanMessagesOwnSentPskMessageSurvivesRescan(t *testing.T) {
	alice := mustStaticKey(t, 0x06)
	bob := mustStaticKey(t, 0x07)
	var aliceAddr, bobAddr models.Address
	aliceAddr[0], bobAddr[0] = 0xA1, 0xB0

	var initialPSK [32]byte
	for i := range initialPSK {
		initialPSK[i] = 0xBB
	}
	env, err := cryptocore.EncryptPSK([]byte("my own psk message"), 0, initialPSK, alice.Private, alice.Public, bob.Public)
	if err != nil {
		t.Fatalf("encrypt psk failed: %v", err)
	}

	idx := &fakeIndexer{byAddress: map[ports.Address][]ports.Transaction{
		ports.Address(aliceAddr): {
			{ID: "tx1", Sender: ports.Address(aliceAddr), Recipient: ports.Address(bobAddr), Note: env.Encode(), RoundTime: time.Now(), Round: 1},
		},
	}}

	mi := New(idx, cache.NewPublicKeyCache(time.Minute))
	lookup := mapPSKLookup{bobAddr: {psk: initialPSK, state: pskstate.New()}}

	// A sent message carries my counter, not the peer's: it must decrypt on
	// every scan rather than tripping the replay window on the second one.
	for pass := 0; pass < 2; pass++ {
		msgs, err := mi.ScanMessages(context.Background(), aliceAddr, alice.Private, bobAddr, 0, lookup)
		if err != nil {
			t.Fatalf("scan pass %d failed: %v", pass, err)
		}
		if len(msgs) != 1 || msgs[0].Content != "my own psk message" || msgs[0].Direction != models.DirectionSent {
			t.Fatalf("scan pass %d: expected own sent psk message, got %+v", pass, msgs)
		}
	}
}
