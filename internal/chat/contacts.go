package chat

import (
	"fmt"
	"sync"

	"github.com/algochat/algochat/internal/pskstate"
	"github.com/algochat/algochat/internal/pskuri"
	"github.com/algochat/algochat/pkg/models"
)

// ErrNotPskContact reports that a peer has no registered PSK ratchet state.
var ErrNotPskContact = fmt.Errorf("chat: not a psk contact")

type pskEntry struct {
	contact models.PSKContact
	state   *pskstate.State
}

// PSKContactStore owns the only cross-call shared mutable state in the
// crypto path: the per-peer ratchet counters. Every method here takes the
// store's own lock, and Chat never hands out a *pskstate.State without it.
type PSKContactStore struct {
	mu            sync.Mutex
	byAddress     map[models.Address]*pskEntry
	counterWindow uint32
}

// NewPSKContactStore returns an empty store using counterWindow for every
// new contact's replay-acceptance window (0 selects pskstate's default).
func NewPSKContactStore(counterWindow uint32) *PSKContactStore {
	return &PSKContactStore{
		byAddress:     make(map[models.Address]*pskEntry),
		counterWindow: counterWindow,
	}
}

// Add registers a PSK contact with fresh ratchet state.
func (s *PSKContactStore) Add(contact models.PSKContact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := pskstate.New()
	if s.counterWindow > 0 {
		state = pskstate.NewWithWindow(s.counterWindow)
	}
	s.byAddress[contact.Address] = &pskEntry{contact: contact, state: state}
}

// Get returns the PSKContact record for peer, if registered.
func (s *PSKContactStore) Get(peer models.Address) (models.PSKContact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byAddress[peer]
	if !ok {
		return models.PSKContact{}, false
	}
	return e.contact, true
}

// List returns every registered PSK contact.
func (s *PSKContactStore) List() []models.PSKContact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PSKContact, 0, len(s.byAddress))
	for _, e := range s.byAddress {
		out = append(out, e.contact)
	}
	return out
}

// Lookup implements internal/discovery.PSKLookup and the send-path's own
// lookup: returns peer's initial PSK and ratchet state if it is a
// registered contact.
func (s *PSKContactStore) Lookup(peer models.Address) (initialPSK [32]byte, state *pskstate.State, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, found := s.byAddress[peer]
	if !found {
		return initialPSK, nil, false
	}
	return e.contact.InitialPSK, e.state, true
}

// ImportURI parses a PSK exchange URI and registers the contact it
// describes.
func (s *PSKContactStore) ImportURI(raw string) (models.PSKContact, error) {
	ex, err := pskuri.Parse(raw)
	if err != nil {
		return models.PSKContact{}, err
	}
	contact := models.PSKContact{Address: ex.Address, InitialPSK: ex.PSK, Label: ex.Label}
	s.Add(contact)
	return contact, nil
}

// ExportURI renders peer's PSK contact back into its exchange URI form, for
// display/sharing out of band.
func (s *PSKContactStore) ExportURI(peer models.Address) (string, error) {
	contact, ok := s.Get(peer)
	if !ok {
		return "", ErrNotPskContact
	}
	return pskuri.Format(pskuri.Exchange{Address: contact.Address, PSK: contact.InitialPSK, Label: contact.Label}), nil
}
