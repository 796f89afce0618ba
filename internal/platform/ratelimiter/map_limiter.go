// Package ratelimiter provides a token-bucket-per-key limiter. Retry
// attempts in internal/syncmgr are paced by it; internal/discovery consults
// it per indexer page request but does not act on a denied token.
package ratelimiter

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MapLimiter applies a token bucket per string key and periodically evicts
// idle entries so long-lived processes don't accumulate one limiter per
// peer address forever.
type MapLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	byKey   map[string]*entry
	hits    uint64
	idleTTL time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a key-based limiter; returns nil if args are invalid, and a
// nil *MapLimiter always allows (so callers can wire an optional limiter
// without a nil check at every call site).
func New(rps float64, burst int, idleTTL time.Duration) *MapLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &MapLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		byKey:   make(map[string]*entry),
		idleTTL: idleTTL,
	}
}

// Allow reports whether one token can be consumed for the key at now.
func (l *MapLimiter) Allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &entry{
			limiter:  rate.NewLimiter(l.limit, l.burst),
			lastSeen: now,
		}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}

	return allowed
}

// PageBudget bounds how many pages a single paginated scan may consume,
// guarding against a misbehaving or malicious Indexer driving an unbounded
// number of round trips.
type PageBudget struct {
	remaining int
}

// NewPageBudget returns a budget allowing up to maxPages calls to Take.
func NewPageBudget(maxPages int) *PageBudget {
	if maxPages < 0 {
		maxPages = 0
	}
	return &PageBudget{remaining: maxPages}
}

// Take consumes one page of budget, reporting false once exhausted.
func (b *PageBudget) Take() bool {
	if b == nil || b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}
