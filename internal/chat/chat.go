// Package chat implements the Chat facade: the single serialization
// boundary wiring signing, ledger submission, discovery, caching, the send
// queue and PSK contacts into one deps-struct service object.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/algochat/algochat/internal/cache"
	"github.com/algochat/algochat/internal/config"
	"github.com/algochat/algochat/internal/conversation"
	"github.com/algochat/algochat/internal/cryptocore"
	"github.com/algochat/algochat/internal/discovery"
	"github.com/algochat/algochat/internal/metrics"
	"github.com/algochat/algochat/internal/platform/ratelimiter"
	"github.com/algochat/algochat/internal/ports"
	"github.com/algochat/algochat/internal/queue"
	"github.com/algochat/algochat/internal/syncmgr"
	"github.com/algochat/algochat/pkg/models"
)

// waitIndexedMaxAttempts/waitIndexedInterval bound Send's optional
// WaitIndexed poll: ten attempts at 300ms is generous for the demo ledger
// and small enough not to hang a caller forever against a stalled indexer.
const (
	waitIndexedMaxAttempts = 10
	waitIndexedInterval    = 300 * time.Millisecond
)

// Deps collects Chat's collaborators. Signing, Ledger and Indexer are
// required; everything else falls back to a sensible in-memory default.
type Deps struct {
	Signing     ports.SigningAccount
	Ledger      ports.LedgerClient
	Indexer     *discovery.MessageIndexer
	Queue       *queue.SendQueue
	PSKContacts *PSKContactStore
	Config      config.Config
	Logger      *slog.Logger
	SyncLimiter *ratelimiter.MapLimiter
	Callbacks   syncmgr.Callbacks
}

// Chat is the facade every AlgoChat caller drives: it owns no UI, storage
// format, or transport of its own, only the orchestration between its
// collaborators.
type Chat struct {
	mu sync.Mutex

	signing ports.SigningAccount
	ledger  ports.LedgerClient
	indexer *discovery.MessageIndexer
	queue   *queue.SendQueue
	sync    *syncmgr.SyncManager
	psk     *PSKContactStore
	msgs    *cache.MessageCache
	cfg     config.Config
	log     *slog.Logger

	myAddress models.Address
	myPriv    [32]byte
	myPub     [32]byte
}

// New builds a Chat facade from deps, deriving the local static encryption
// key from the signing account's seed.
func New(deps Deps) (*Chat, error) {
	if deps.Signing == nil {
		return nil, ErrSigningAccountRequired
	}
	if deps.Ledger == nil {
		return nil, ErrLedgerRequired
	}
	if deps.Indexer == nil {
		return nil, ErrIndexerRequired
	}

	keys, err := cryptocore.DeriveX25519(deps.Signing.SigningSeed())
	if err != nil {
		return nil, err
	}

	cfg := deps.Config
	if cfg == (config.Config{}) {
		cfg = config.Default()
	}

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	q := deps.Queue
	if q == nil {
		q = queue.New(nil, cfg.Sync.MaxRetries)
	}

	pskContacts := deps.PSKContacts
	if pskContacts == nil {
		pskContacts = NewPSKContactStore(uint32(cfg.PSK.CounterWindow))
	}

	c := &Chat{
		signing:   deps.Signing,
		ledger:    deps.Ledger,
		indexer:   deps.Indexer,
		queue:     q,
		psk:       pskContacts,
		msgs:      cache.NewMessageCache(),
		cfg:       cfg,
		log:       log,
		myAddress: models.Address(deps.Signing.Address()),
		myPriv:    keys.Private,
		myPub:     keys.Public,
	}
	c.sync = syncmgr.New(c.queue, c, cfg.Sync.MaxRetries, deps.SyncLimiter, deps.Callbacks)
	return c, nil
}

// Address returns the local account's ledger address.
func (c *Chat) Address() models.Address { return c.myAddress }

// EncryptionPublicKey returns the local account's static X25519 public key.
func (c *Chat) EncryptionPublicKey() [32]byte { return c.myPub }

// Fingerprint renders the local encryption key's human-verifiable
// fingerprint.
func (c *Chat) Fingerprint() string { return cryptocore.Fingerprint(c.myPub) }

// PSKContacts exposes the contact store so callers can import/export PSK
// exchange URIs.
func (c *Chat) PSKContacts() *PSKContactStore { return c.psk }

// SendQueue exposes the durable queue for inspection (pending count, etc).
func (c *Chat) SendQueue() *queue.SendQueue { return c.queue }

// SetOnline forwards connectivity state to the SyncManager, which triggers
// a sync pass on an offline-to-online transition.
func (c *Chat) SetOnline(ctx context.Context, online bool) error {
	return c.sync.SetOnline(ctx, online)
}

// Sync runs a send-queue drain pass unconditionally.
func (c *Chat) Sync(ctx context.Context) error {
	return c.sync.Sync(ctx)
}

// Conversation returns an empty conversation for peer, with the peer's
// encryption key attached if key discovery (cache, then indexer scan)
// finds it.
func (c *Chat) Conversation(ctx context.Context, peer models.Address) (conv models.Conversation, err error) {
	defer c.trackOperation("conversation", &err)()
	c.mu.Lock()
	defer c.mu.Unlock()

	conv = conversation.New(peer)
	key, keyErr := c.indexer.FetchPublicKey(ctx, peer)
	if keyErr != nil {
		var notFound *discovery.PublicKeyNotFoundError
		if errors.As(keyErr, &notFound) {
			return conv, nil
		}
		err = keyErr
		return models.Conversation{}, err
	}
	conv = conversation.WithEncryptionKey(conv, key)
	return conv, nil
}

// Refresh scans for new messages with conv's participant since the last
// sync round, merges them into the message cache, and returns the updated
// conversation.
func (c *Chat) Refresh(ctx context.Context, conv models.Conversation) (updated models.Conversation, err error) {
	defer c.trackOperation("refresh", &err)()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx, conv)
}

func (c *Chat) refreshLocked(ctx context.Context, conv models.Conversation) (models.Conversation, error) {
	afterRound := c.msgs.LastSyncRound(conv.Participant)
	scanned, err := c.indexer.ScanMessages(ctx, c.myAddress, c.myPriv, conv.Participant, afterRound, c.psk)
	if err != nil {
		return conv, err
	}
	c.msgs.Store(conv.Participant, scanned)

	merged := conversation.Merge(conv, c.msgs.Retrieve(conv.Participant, 0))
	if !merged.HasEncryptionKey {
		if key, keyErr := c.indexer.FetchPublicKey(ctx, conv.Participant); keyErr == nil {
			merged = conversation.WithEncryptionKey(merged, key)
		}
	}
	return merged, nil
}

// Conversations discovers every known counterparty (peers the account has
// sent chat messages to, plus every registered PSK contact) and returns
// each one's refreshed conversation, sorted by address. A peer who has only
// ever sent to this account, and is neither a PSK contact nor ever replied
// to, will not surface here: the underlying indexer only exposes
// transactions sent BY a given address, so outbound history is the only
// participant-discovery signal available without also storing a contact
// list out of band.
func (c *Chat) Conversations(ctx context.Context) (convs []models.Conversation, err error) {
	defer c.trackOperation("conversations", &err)()
	c.mu.Lock()
	defer c.mu.Unlock()

	participants := make(map[models.Address]struct{})
	sent, discErr := c.indexer.DiscoverSentParticipants(ctx, c.myAddress)
	if discErr != nil {
		err = discErr
		return nil, err
	}
	for _, p := range sent {
		participants[p] = struct{}{}
	}
	for _, contact := range c.psk.List() {
		participants[contact.Address] = struct{}{}
	}

	out := make([]models.Conversation, 0, len(participants))
	for peer := range participants {
		conv, rerr := c.refreshLocked(ctx, conversation.New(peer))
		if rerr != nil {
			c.log.Warn("chat: skipping conversation refresh", "reason", rerr.Error())
			continue
		}
		out = append(out, conv)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Participant.String() < out[j].Participant.String()
	})
	return out, nil
}

// Send seals text (optionally with a reply context) into an envelope, using
// the PSK ratchet when conv's participant is a registered PSK contact and
// the standard discovered-key path otherwise, then submits it as a payment
// of the minimum amount unless opts sets AmountMicroUnits.
func (c *Chat) Send(ctx context.Context, text string, conv models.Conversation, opts SendOptions) (result SendResult, err error) {
	defer c.trackOperation("send", &err)()
	c.mu.Lock()
	defer c.mu.Unlock()

	if text == "" && opts.ReplyTo == nil {
		err = ErrEmptyMessage
		return SendResult{}, err
	}

	var replyCtx *cryptocore.ReplyContext
	if opts.ReplyTo != nil {
		replyCtx = &cryptocore.ReplyContext{
			TxID:    opts.ReplyTo.ID,
			Preview: cryptocore.TruncateReplyPreview(opts.ReplyTo.Content),
		}
	}
	plaintext, perr := cryptocore.PlaintextBytes(text, replyCtx)
	if perr != nil {
		err = perr
		return SendResult{}, err
	}

	noteBytes, eerr := c.encodeEnvelope(ctx, conv.Participant, plaintext)
	if eerr != nil {
		err = eerr
		return SendResult{}, err
	}

	amount := opts.amount()
	txID, serr := c.ledger.SendPayment(ctx, ports.Address(c.myAddress), ports.Address(conv.Participant), amount, noteBytes)
	if serr != nil {
		err = serr
		c.enqueueFailed(conv.Participant, text, opts.ReplyTo, amount, serr)
		return SendResult{}, err
	}

	msg := models.Message{
		ID:        string(txID),
		Sender:    c.myAddress,
		Recipient: conv.Participant,
		Content:   text,
		Timestamp: time.Now(),
		Direction: models.DirectionSent,
	}
	if replyCtx != nil {
		msg.ReplyTo = &models.ReplyContext{TxID: replyCtx.TxID, Preview: replyCtx.Preview}
	}

	if opts.WaitConfirmed {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = c.cfg.Send.DefaultTimeout
		}
		round, werr := c.ledger.WaitConfirmed(ctx, txID, timeout)
		if werr != nil {
			err = werr
			return SendResult{}, err
		}
		msg.ConfirmedRound = uint64(round)
	}
	if opts.WaitIndexed {
		if werr := c.waitForIndexer(ctx, conv.Participant, string(txID)); werr != nil {
			err = werr
			return SendResult{}, err
		}
	}

	c.msgs.Store(conv.Participant, []models.Message{msg})
	return SendResult{TxID: string(txID), Message: msg}, nil
}

// PublishKeyAndWait submits a self-addressed key-publish marker transaction
// and waits for its confirmation, the mechanism by which a peer's static
// encryption key becomes discoverable.
func (c *Chat) PublishKeyAndWait(ctx context.Context, timeout time.Duration) (txID string, err error) {
	defer c.trackOperation("publish_key", &err)()
	c.mu.Lock()
	defer c.mu.Unlock()

	env, eerr := cryptocore.Encrypt(cryptocore.KeyPublishMarker[:], c.myPriv, c.myPub, c.myPub)
	if eerr != nil {
		err = eerr
		return "", err
	}

	id, serr := c.ledger.SendPayment(ctx, ports.Address(c.myAddress), ports.Address(c.myAddress), defaultMinPaymentMicroUnits, env.Encode())
	if serr != nil {
		err = serr
		return "", err
	}

	if timeout <= 0 {
		timeout = c.cfg.Send.DefaultTimeout
	}
	if _, werr := c.ledger.WaitConfirmed(ctx, id, timeout); werr != nil {
		err = werr
		return "", err
	}
	return string(id), nil
}

// SendPending implements syncmgr.Sender: it re-seals and submits a queued
// message exactly the way Send does, without touching the queue itself
// (SyncManager owns queue state transitions).
func (c *Chat) SendPending(ctx context.Context, msg models.PendingMessage) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var replyCtx *cryptocore.ReplyContext
	if msg.ReplyTo != nil {
		replyCtx = &cryptocore.ReplyContext{TxID: msg.ReplyTo.TxID, Preview: msg.ReplyTo.Preview}
	}
	plaintext, err := cryptocore.PlaintextBytes(msg.Content, replyCtx)
	if err != nil {
		return "", err
	}
	noteBytes, err := c.encodeEnvelope(ctx, msg.Recipient, plaintext)
	if err != nil {
		return "", err
	}

	amount := msg.AmountMicroAlgos
	if amount == 0 {
		amount = defaultMinPaymentMicroUnits
	}
	txID, err := c.ledger.SendPayment(ctx, ports.Address(c.myAddress), ports.Address(msg.Recipient), amount, noteBytes)
	if err != nil {
		return "", err
	}

	c.msgs.Store(msg.Recipient, []models.Message{{
		ID:        string(txID),
		Sender:    c.myAddress,
		Recipient: msg.Recipient,
		Content:   msg.Content,
		Timestamp: time.Now(),
		Direction: models.DirectionSent,
	}})
	return string(txID), nil
}

// encodeEnvelope seals plaintext for recipient, routing through the PSK
// ratchet when recipient is a registered PSK contact (the hybrid key
// schedule still requires the recipient's discovered static key) and
// through the standard discovered-key encrypt otherwise.
func (c *Chat) encodeEnvelope(ctx context.Context, recipient models.Address, plaintext []byte) ([]byte, error) {
	recipientPub, err := c.resolvePeerKey(ctx, recipient)
	if err != nil {
		return nil, err
	}

	if initialPSK, state, ok := c.psk.Lookup(recipient); ok {
		counter := state.AdvanceSendCounter()
		env, eerr := cryptocore.EncryptPSK(plaintext, counter, initialPSK, c.myPriv, c.myPub, recipientPub)
		if eerr != nil {
			return nil, eerr
		}
		return env.Encode(), nil
	}

	env, eerr := cryptocore.Encrypt(plaintext, c.myPriv, c.myPub, recipientPub)
	if eerr != nil {
		return nil, eerr
	}
	return env.Encode(), nil
}

func (c *Chat) resolvePeerKey(ctx context.Context, peer models.Address) ([32]byte, error) {
	if peer == c.myAddress {
		return c.myPub, nil
	}
	return c.indexer.FetchPublicKey(ctx, peer)
}

func (c *Chat) enqueueFailed(peer models.Address, text string, replyTo *models.Message, amount uint64, sendErr error) {
	var replyCtx *models.ReplyContext
	if replyTo != nil {
		replyCtx = &models.ReplyContext{TxID: replyTo.ID, Preview: cryptocore.TruncateReplyPreview(replyTo.Content)}
	}
	pending := models.PendingMessage{
		ID:               uuid.New(),
		Recipient:        peer,
		Content:          text,
		ReplyTo:          replyCtx,
		AmountMicroAlgos: amount,
		CreatedAt:        time.Now(),
		LastAttempt:      time.Now(),
		Status:           models.PendingStatusFailed,
		LastError:        sendErr.Error(),
	}
	if qerr := c.queue.Enqueue(pending); qerr != nil {
		c.log.Warn("chat: failed to enqueue pending message after send failure", "reason", qerr.Error())
		return
	}
	metrics.PendingQueueSize.Set(float64(len(c.queue.Snapshot())))
}

func (c *Chat) waitForIndexer(ctx context.Context, peer models.Address, txID string) error {
	for attempt := 0; attempt < waitIndexedMaxAttempts; attempt++ {
		msgs, err := c.indexer.ScanMessages(ctx, c.myAddress, c.myPriv, peer, 0, c.psk)
		if err == nil {
			for _, m := range msgs {
				if m.ID == txID {
					return nil
				}
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitIndexedInterval):
		}
	}
	return ErrIndexerTimeout
}

// trackOperation starts a timer and returns a closure that records the
// outcome against internal/metrics when the caller defers it.
func (c *Chat) trackOperation(operation string, errRef *error) func() {
	started := time.Now()
	return func() {
		var err error
		if errRef != nil {
			err = *errRef
		}
		metrics.RecordOperation(operation, err, time.Since(started))
	}
}

// MetricsSnapshot returns a point-in-time view of operation counters and
// latency alongside the pending-queue depth and PSK-replay rejection count.
func (c *Chat) MetricsSnapshot() models.MetricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return metrics.Snapshot(len(c.queue.Snapshot()), 0)
}
