package chat

import (
	"time"

	"github.com/algochat/algochat/pkg/models"
)

// defaultMinPaymentMicroUnits is the note-carrying payment's default
// amount: the smallest nonzero transfer the underlying ledger accepts,
// overridable per-send via WithAmount.
const defaultMinPaymentMicroUnits = 1000

// SendOptions configures one Send call.
type SendOptions struct {
	WaitConfirmed    bool
	WaitIndexed      bool
	Timeout          time.Duration
	AmountMicroUnits uint64
	ReplyTo          *models.Message
}

// DefaultOptions sends fire-and-forget: submit and return without waiting.
func DefaultOptions() SendOptions {
	return SendOptions{}
}

// Confirmed waits until the payment's round is confirmed.
func Confirmed(timeout time.Duration) SendOptions {
	return SendOptions{WaitConfirmed: true, Timeout: timeout}
}

// Indexed waits until the indexer reports the transaction, which implies
// waiting for confirmation first.
func Indexed(timeout time.Duration) SendOptions {
	return SendOptions{WaitConfirmed: true, WaitIndexed: true, Timeout: timeout}
}

// Replying attaches a reply context pointing at an earlier message,
// optionally waiting for confirmation/indexing.
func Replying(to models.Message, confirmed, indexed bool, timeout time.Duration) SendOptions {
	return SendOptions{
		ReplyTo:       &to,
		WaitConfirmed: confirmed || indexed,
		WaitIndexed:   indexed,
		Timeout:       timeout,
	}
}

// WithAmount overrides the default minimum payment amount.
func WithAmount(microUnits uint64, confirmed, indexed bool, timeout time.Duration) SendOptions {
	return SendOptions{
		AmountMicroUnits: microUnits,
		WaitConfirmed:    confirmed || indexed,
		WaitIndexed:      indexed,
		Timeout:          timeout,
	}
}

func (o SendOptions) amount() uint64 {
	if o.AmountMicroUnits > 0 {
		return o.AmountMicroUnits
	}
	return defaultMinPaymentMicroUnits
}

// SendResult is what a successful Send returns.
type SendResult struct {
	TxID    string
	Message models.Message
}
