// Package discovery implements MessageIndexer: public-key discovery via
// self-transactions and two-directional transaction scanning, envelope
// classification, and decryption into Message records.
package discovery

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/algochat/algochat/internal/cache"
	"github.com/algochat/algochat/internal/cryptocore"
	"github.com/algochat/algochat/internal/metrics"
	"github.com/algochat/algochat/internal/platform/privacylog"
	"github.com/algochat/algochat/internal/platform/ratelimiter"
	"github.com/algochat/algochat/internal/ports"
	"github.com/algochat/algochat/internal/pskstate"
	"github.com/algochat/algochat/pkg/models"
)

const (
	defaultPageSize = 25
	defaultMaxPages = 20
)

// PSKLookup resolves a peer address to its PSK contact state. internal/chat
// owns the actual contact store; MessageIndexer only consumes it.
type PSKLookup interface {
	Lookup(peer models.Address) (initialPSK [32]byte, state *pskstate.State, ok bool)
}

// MessageIndexer scans ledger transactions for AlgoChat envelopes.
type MessageIndexer struct {
	indexer  ports.Indexer
	pubKeys  *cache.PublicKeyCache
	limiter  *ratelimiter.MapLimiter
	pageSize int
	maxPages int
	log      *slog.Logger
}

// Option configures a MessageIndexer.
type Option func(*MessageIndexer)

// WithPageSize overrides the default indexer page size.
func WithPageSize(n int) Option {
	return func(m *MessageIndexer) {
		if n > 0 {
			m.pageSize = n
		}
	}
}

// WithMaxPages bounds how many pages a single scan or key-discovery lookup
// may fetch, so a lookup against a busy account can't run away.
func WithMaxPages(n int) Option {
	return func(m *MessageIndexer) {
		if n > 0 {
			m.maxPages = n
		}
	}
}

// WithRateLimiter attaches a per-peer limiter that is consulted once per
// indexer page request. Its verdict is not acted on: a denied token neither
// delays nor skips the request.
func WithRateLimiter(l *ratelimiter.MapLimiter) Option {
	return func(m *MessageIndexer) { m.limiter = l }
}

// WithLogger attaches a structured logger; defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(m *MessageIndexer) { m.log = log }
}

// New constructs a MessageIndexer over idx, caching discovered keys in
// pubKeys.
func New(idx ports.Indexer, pubKeys *cache.PublicKeyCache, opts ...Option) *MessageIndexer {
	m := &MessageIndexer{
		indexer:  idx,
		pubKeys:  pubKeys,
		pageSize: defaultPageSize,
		maxPages: defaultMaxPages,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FetchPublicKey resolves address's static X25519 encryption key, consulting
// the TTL cache first and falling back to scanning address's own sent
// transactions for a chat envelope.
func (m *MessageIndexer) FetchPublicKey(ctx context.Context, address models.Address) ([32]byte, error) {
	if key, ok := m.pubKeys.Retrieve(address); ok {
		return key, nil
	}

	pageToken := ""
	budget := ratelimiter.NewPageBudget(m.maxPages)
	for budget.Take() {
		m.limiter.Allow(string(address[:]), time.Now())
		result, err := m.indexer.Search(ctx, ports.Address(address), m.pageSize, pageToken)
		if err != nil {
			return [32]byte{}, err
		}
		metrics.IndexerPagesFetched.WithLabelValues("fetch_public_key").Inc()
		for _, tx := range result.Transactions {
			if tx.Sender != ports.Address(address) {
				continue // a transaction address merely received carries someone else's key
			}
			if !cryptocore.IsChatMessage(tx.Note) {
				continue
			}
			decoded, err := cryptocore.Decode(tx.Note)
			if err != nil || decoded.Kind != cryptocore.KindStandard {
				continue
			}
			key := decoded.Standard.SenderStatic
			m.pubKeys.Store(address, key)
			return key, nil
		}
		if result.NextToken == "" {
			break
		}
		pageToken = result.NextToken
	}
	return [32]byte{}, &PublicKeyNotFoundError{Address: address}
}

// ScanMessages returns every chat message exchanged between myAddress and
// participant with ConfirmedRound > afterRound, decrypted and
// timestamp-sorted, deduplicated by id.
func (m *MessageIndexer) ScanMessages(
	ctx context.Context,
	myAddress models.Address,
	myPriv [32]byte,
	participant models.Address,
	afterRound uint64,
	psk PSKLookup,
) ([]models.Message, error) {
	txs, err := m.collectBetween(ctx, myAddress, participant, afterRound)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Message, len(txs))
	for _, tx := range txs {
		if !cryptocore.IsChatMessage(tx.Note) {
			continue
		}
		decoded, err := cryptocore.Decode(tx.Note)
		if err != nil {
			m.log.Warn("discovery: dropping unparsable envelope", "tx_id", tx.ID)
			continue
		}

		direction := models.DirectionReceived
		if tx.Sender == ports.Address(myAddress) {
			direction = models.DirectionSent
		}

		content, ok := m.decryptOne(decoded, myPriv, participant, psk, tx.ID, direction)
		if !ok {
			continue
		}
		msg := models.Message{
			ID:             string(tx.ID),
			Sender:         models.Address(tx.Sender),
			Recipient:      models.Address(tx.Recipient),
			Content:        content.Text,
			Timestamp:      tx.RoundTime,
			ConfirmedRound: uint64(tx.Round),
			Direction:      direction,
		}
		if content.ReplyTo != nil {
			msg.ReplyTo = &models.ReplyContext{TxID: content.ReplyTo.TxID, Preview: content.ReplyTo.Preview}
		}
		byID[msg.ID] = msg
	}

	out := make([]models.Message, 0, len(byID))
	for _, msg := range byID {
		out = append(out, msg)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MessageIndexer) decryptOne(
	decoded cryptocore.DecodedEnvelope,
	myPriv [32]byte,
	participant models.Address,
	psk PSKLookup,
	txID ports.TxID,
	direction string,
) (*cryptocore.DecryptedContent, bool) {
	switch decoded.Kind {
	case cryptocore.KindStandard:
		content, err := cryptocore.Decrypt(decoded.Standard, myPriv)
		if err != nil {
			m.log.Warn("discovery: decrypt failed", "tx_id", txID)
			return nil, false
		}
		if content == nil {
			return nil, false // key-publish marker
		}
		return content, true

	case cryptocore.KindPSK:
		if psk == nil {
			return nil, false
		}
		initialPSK, state, ok := psk.Lookup(participant)
		if !ok {
			m.log.Info("discovery: skipping PSK envelope, not a PSK contact",
				privacylog.SanitizeArgs("address", participant)...)
			return nil, false
		}
		// The replay window tracks the peer's counters. My own sent
		// messages carry my counters and may be scanned more than once
		// (refresh overlap, wait-for-indexer polling), so they bypass it.
		if direction == models.DirectionReceived {
			if err := state.ValidateAndRecordReceive(decoded.Psk.Counter); err != nil {
				reason := "out_of_range"
				if err == pskstate.ErrReplayDetected {
					reason = "replay"
				}
				metrics.RecordPSKReplayRejected(reason)
				m.log.Warn("discovery: rejecting PSK envelope", "tx_id", txID, "reason", err.Error())
				return nil, false
			}
		}
		current := cryptocore.CurrentPSK(initialPSK, decoded.Psk.Counter)
		content, err := cryptocore.DecryptPSK(decoded.Psk, current, myPriv)
		if err != nil {
			m.log.Warn("discovery: psk decrypt failed", "tx_id", txID)
			return nil, false
		}
		if content == nil {
			return nil, false
		}
		return content, true

	default:
		return nil, false
	}
}

// collectBetween fetches transactions sent by myAddress to participant and
// sent by participant to myAddress, each bounded by maxPages, restricted to
// round > afterRound.
func (m *MessageIndexer) collectBetween(ctx context.Context, myAddress, participant models.Address, afterRound uint64) ([]ports.Transaction, error) {
	mine, err := m.collectSentBy(ctx, myAddress, participant)
	if err != nil {
		return nil, err
	}
	theirs, err := m.collectSentBy(ctx, participant, myAddress)
	if err != nil {
		return nil, err
	}

	all := make([]ports.Transaction, 0, len(mine)+len(theirs))
	for _, tx := range append(mine, theirs...) {
		if uint64(tx.Round) > afterRound {
			all = append(all, tx)
		}
	}
	return all, nil
}

func (m *MessageIndexer) collectSentBy(ctx context.Context, sender, counterparty models.Address) ([]ports.Transaction, error) {
	var out []ports.Transaction
	pageToken := ""
	budget := ratelimiter.NewPageBudget(m.maxPages)
	for budget.Take() {
		m.limiter.Allow(string(sender[:]), time.Now())
		result, err := m.indexer.Search(ctx, ports.Address(sender), m.pageSize, pageToken)
		if err != nil {
			return nil, err
		}
		metrics.IndexerPagesFetched.WithLabelValues("scan_messages").Inc()
		for _, tx := range result.Transactions {
			if tx.Recipient == ports.Address(counterparty) {
				out = append(out, tx)
			}
		}
		if result.NextToken == "" {
			break
		}
		pageToken = result.NextToken
	}
	return out, nil
}

// DiscoverSentParticipants pages through myAddress's own sent transactions
// and returns the distinct recipients of its chat envelopes, excluding
// self-sends (key-publish markers aren't conversation partners). This is
// the only participant-discovery signal an indexer limited to "search
// transactions sent BY address" can offer.
func (m *MessageIndexer) DiscoverSentParticipants(ctx context.Context, myAddress models.Address) ([]models.Address, error) {
	seen := make(map[models.Address]struct{})
	pageToken := ""
	budget := ratelimiter.NewPageBudget(m.maxPages)
	for budget.Take() {
		m.limiter.Allow(string(myAddress[:]), time.Now())
		result, err := m.indexer.Search(ctx, ports.Address(myAddress), m.pageSize, pageToken)
		if err != nil {
			return nil, err
		}
		metrics.IndexerPagesFetched.WithLabelValues("conversations").Inc()
		for _, tx := range result.Transactions {
			if !cryptocore.IsChatMessage(tx.Note) {
				continue
			}
			recipient := models.Address(tx.Recipient)
			if recipient == myAddress {
				continue
			}
			seen[recipient] = struct{}{}
		}
		if result.NextToken == "" {
			break
		}
		pageToken = result.NextToken
	}
	out := make([]models.Address, 0, len(seen))
	for addr := range seen {
		out = append(out, addr)
	}
	return out, nil
}
