package demoaccount

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/algochat/algochat/internal/ports"
)

// ErrInsufficientBalance is the in-memory reference ledger's one enforced
// invariant: a sender can't pay more than its tracked balance.
var ErrInsufficientBalance = errors.New("demoaccount: insufficient balance")

// MemoryLedger is an in-memory ports.LedgerClient + ports.Indexer used by
// integration tests to exercise a full send -> scan -> decrypt round trip
// without a real chain. Every submitted payment is confirmed immediately at
// the next round; Search serves the same in-memory history back out,
// sent-by-address and newest-first, matching ports.Indexer's contract.
type MemoryLedger struct {
	mu           sync.Mutex
	round        uint64
	balances     map[ports.Address]uint64
	txByID       map[ports.TxID]ports.Transaction
	bySender     map[ports.Address][]ports.TxID
	defaultFunds uint64
}

// NewMemoryLedger returns an empty ledger. defaultFunds seeds every
// previously-unseen address's balance the first time it appears as a
// sender, so tests don't need to pre-fund every demo account by hand.
func NewMemoryLedger(defaultFunds uint64) *MemoryLedger {
	return &MemoryLedger{
		balances:     make(map[ports.Address]uint64),
		txByID:       make(map[ports.TxID]ports.Transaction),
		bySender:     make(map[ports.Address][]ports.TxID),
		defaultFunds: defaultFunds,
	}
}

// Fund credits address's balance directly, bypassing a payment.
func (l *MemoryLedger) Fund(address ports.Address, microUnits uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[address] += microUnits
}

// Balance returns address's current tracked balance.
func (l *MemoryLedger) Balance(address ports.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[address]
}

// SendPayment implements ports.LedgerClient: debits from, credits to, and
// records the transaction at the next round, confirmed immediately.
func (l *MemoryLedger) SendPayment(_ context.Context, from, to ports.Address, microUnits uint64, note []byte) (ports.TxID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, seen := l.balances[from]; !seen {
		l.balances[from] = l.defaultFunds
	}
	if l.balances[from] < microUnits {
		return "", ErrInsufficientBalance
	}
	l.balances[from] -= microUnits
	l.balances[to] += microUnits

	l.round++
	id := ports.TxID(strconv.FormatUint(l.round, 10) + "-" + randomHex(4))
	tx := ports.Transaction{
		ID:        id,
		Sender:    from,
		Recipient: to,
		Round:     ports.Round(l.round),
		RoundTime: time.Now(),
		Note:      append([]byte(nil), note...),
	}
	l.txByID[id] = tx
	l.bySender[from] = append(l.bySender[from], id)
	return id, nil
}

// WaitConfirmed implements ports.LedgerClient. The reference ledger
// confirms synchronously in SendPayment, so this is a lookup, not a poll.
func (l *MemoryLedger) WaitConfirmed(_ context.Context, id ports.TxID, _ time.Duration) (ports.Round, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.txByID[id]
	if !ok {
		return 0, errors.New("demoaccount: unknown transaction")
	}
	return tx.Round, nil
}

// Search implements ports.Indexer: transactions sent BY address, newest
// round first, paginated by an offset encoded in the page token.
func (l *MemoryLedger) Search(_ context.Context, address ports.Address, limit int, pageToken string) (ports.SearchResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := append([]ports.TxID(nil), l.bySender[address]...)
	sort.Slice(ids, func(i, j int) bool {
		return l.txByID[ids[i]].Round > l.txByID[ids[j]].Round
	})

	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 {
			return ports.SearchResult{}, errors.New("demoaccount: invalid page token")
		}
		offset = n
	}
	if offset >= len(ids) {
		return ports.SearchResult{}, nil
	}

	end := len(ids)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page := make([]ports.Transaction, 0, end-offset)
	for _, id := range ids[offset:end] {
		page = append(page, l.txByID[id])
	}

	next := ""
	if end < len(ids) {
		next = strconv.Itoa(end)
	}
	return ports.SearchResult{Transactions: page, NextToken: next}, nil
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b)
}
