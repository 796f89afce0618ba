package demoaccount

import (
	"context"
	"testing"
	"time"

	"github.com/algochat/algochat/internal/ports"
)

func TestMemoryLedgerSendPaymentDebitsAndCredits(t *testing.T) {
	ledger := NewMemoryLedger(1000)
	var from, to ports.Address
	from[0] = 0x01
	to[0] = 0x02

	id, err := ledger.SendPayment(context.Background(), from, to, 100, []byte("note"))
	if err != nil {
		t.Fatalf("send payment: %v", err)
	}
	if ledger.Balance(from) != 900 {
		t.Fatalf("expected sender balance 900, got %d", ledger.Balance(from))
	}
	if ledger.Balance(to) != 100 {
		t.Fatalf("expected recipient balance 100, got %d", ledger.Balance(to))
	}

	round, err := ledger.WaitConfirmed(context.Background(), id, time.Second)
	if err != nil {
		t.Fatalf("wait confirmed: %v", err)
	}
	if round == 0 {
		t.Fatalf("expected a nonzero confirmation round")
	}
}

func TestMemoryLedgerSendPaymentInsufficientBalance(t *testing.T) {
	ledger := NewMemoryLedger(0)
	var from, to ports.Address
	from[0] = 0x01
	to[0] = 0x02

	if _, err := ledger.SendPayment(context.Background(), from, to, 100, nil); err != ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestMemoryLedgerSearchPaginatesSentByAddress(t *testing.T) {
	ledger := NewMemoryLedger(10_000)
	var from, to ports.Address
	from[0] = 0x01
	to[0] = 0x02

	for i := 0; i < 5; i++ {
		if _, err := ledger.SendPayment(context.Background(), from, to, 1, nil); err != nil {
			t.Fatalf("send payment %d: %v", i, err)
		}
	}

	page1, err := ledger.Search(context.Background(), from, 2, "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(page1.Transactions) != 2 || page1.NextToken == "" {
		t.Fatalf("expected a 2-item first page with a next token, got %+v", page1)
	}

	seen := len(page1.Transactions)
	token := page1.NextToken
	for token != "" {
		page, err := ledger.Search(context.Background(), from, 2, token)
		if err != nil {
			t.Fatalf("search page: %v", err)
		}
		seen += len(page.Transactions)
		token = page.NextToken
	}
	if seen != 5 {
		t.Fatalf("expected 5 transactions total across pages, got %d", seen)
	}

	otherSide, err := ledger.Search(context.Background(), to, 10, "")
	if err != nil {
		t.Fatalf("search recipient: %v", err)
	}
	if len(otherSide.Transactions) != 0 {
		t.Fatalf("expected Search(to) to return nothing, it only indexes sent-by-address: got %+v", otherSide)
	}
}
