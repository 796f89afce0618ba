// Package pskstate tracks per-peer PSK ratchet counters and detects replay,
// the only mutable state shared across calls in the crypto path. It must be
// mutated only under a serializing boundary (internal/chat owns that
// boundary); this package itself is not safe for concurrent use without
// one.
package pskstate

import "fmt"

// CounterWindow bounds how far a received counter may drift from the
// highest one seen so far before it is rejected outright.
const CounterWindow = 200

var (
	ErrReplayDetected    = fmt.Errorf("pskstate: replay detected")
	ErrCounterOutOfRange = fmt.Errorf("pskstate: counter out of range")
)

// State is one peer's PSK ratchet bookkeeping.
type State struct {
	SendCounter     uint32
	PeerLastCounter uint32
	SeenCounters    map[uint32]struct{}
	window          int64
}

// New returns a fresh State with counters at zero and the default replay
// window.
func New() *State {
	return NewWithWindow(CounterWindow)
}

// NewWithWindow returns a fresh State using a deployment-configured replay
// window instead of the default. Unlike SESSION_SIZE (baked into the PSK
// HKDF tree and fixed by the wire format), the counter window is a local
// acceptance policy and safe to tune per deployment (internal/config).
func NewWithWindow(window uint32) *State {
	return &State{SeenCounters: make(map[uint32]struct{}), window: int64(window)}
}

// AdvanceSendCounter returns the counter to use for the next outgoing
// message, then increments the internal counter.
func (s *State) AdvanceSendCounter() uint32 {
	c := s.SendCounter
	s.SendCounter++
	return c
}

// ValidateAndRecordReceive implements the sliding-window replay detector.
// On success it records c as seen and advances PeerLastCounter if c
// is the new high-water mark, pruning seenCounters that have fallen out of
// the window.
func (s *State) ValidateAndRecordReceive(c uint32) error {
	if s.SeenCounters == nil {
		s.SeenCounters = make(map[uint32]struct{})
	}

	window := s.window
	if window == 0 {
		window = CounterWindow
	}

	if underflowSafeBelow(c, s.PeerLastCounter, window) {
		return ErrCounterOutOfRange
	}
	if _, seen := s.SeenCounters[c]; seen {
		return ErrReplayDetected
	}
	if int64(c) > int64(s.PeerLastCounter)+window {
		return ErrCounterOutOfRange
	}

	s.SeenCounters[c] = struct{}{}
	if c > s.PeerLastCounter {
		s.PeerLastCounter = c
	}
	s.pruneBelowWindow()
	return nil
}

func (s *State) pruneBelowWindow() {
	window := s.window
	if window == 0 {
		window = CounterWindow
	}
	floor := int64(s.PeerLastCounter) - window
	for c := range s.SeenCounters {
		if int64(c) < floor {
			delete(s.SeenCounters, c)
		}
	}
}

// underflowSafeBelow reports whether c < peerLast - window, without
// relying on unsigned-integer underflow when peerLast < window.
func underflowSafeBelow(c, peerLast uint32, window int64) bool {
	floor := int64(peerLast) - window
	return int64(c) < floor
}
