// Package peer identifies the peers in the tangle's gossip mesh and
// tracks their public keys, generalizing the teacher's host-string
// peer model to the opaque per-process UUID identity the sync
// protocol's key-exchange and voting messages are addressed by.
package peer

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/adamwoolhether/tangle/foundation/crypto"
)

// InvalidAccount is raised when an account hash doesn't match any
// known peer's exchanged public key.
type InvalidAccount struct {
	Hash string
}

func (e *InvalidAccount) Error() string {
	return fmt.Sprintf("peer: no known account matches hash %q", e.Hash)
}

// Peer identifies one remote participant in the mesh.
type Peer struct {
	ID   uuid.UUID
	Host string
}

// New constructs a Peer value.
func New(id uuid.UUID, host string) Peer {
	return Peer{ID: id, Host: host}
}

// Match reports whether this peer's id matches the given id.
func (p Peer) Match(id uuid.UUID) bool {
	return p.ID == id
}

// Set tracks known peers and, once exchanged, their public keys. It
// mirrors the teacher's RWMutex-guarded peer.Set, generalized to key
// by uuid and to carry the key-exchange state the sync protocol needs.
type Set struct {
	mu    sync.RWMutex
	peers map[uuid.UUID]Peer
	keys  map[uuid.UUID]*crypto.PublicKey
}

// NewSet constructs an empty peer set.
func NewSet() *Set {
	return &Set{
		peers: make(map[uuid.UUID]Peer),
		keys:  make(map[uuid.UUID]*crypto.PublicKey),
	}
}

// Add adds a new peer, reporting whether it was not already present.
func (s *Set) Add(p Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.peers[p.ID]; exists {
		return false
	}
	s.peers[p.ID] = p

	return true
}

// Remove drops a peer and its known key.
func (s *Set) Remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.peers, id)
	delete(s.keys, id)
}

// Copy returns every known peer except the one matching self.
func (s *Set) Copy(self uuid.UUID) []Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Peer, 0, len(s.peers))
	for id, p := range s.peers {
		if id != self {
			out = append(out, p)
		}
	}

	return out
}

// Known reports whether a peer id has been added to the set.
func (s *Set) Known(id uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.peers[id]
	return ok
}

// Count returns the number of known peers.
func (s *Set) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.peers)
}

// SetKey records a peer's verified public key.
func (s *Set) SetKey(id uuid.UUID, pub *crypto.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys[id] = pub
}

// Key returns a peer's public key, if known.
func (s *Set) Key(id uuid.UUID) (*crypto.PublicKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pub, ok := s.keys[id]
	return pub, ok
}

// KeyCount returns the number of peers whose key has been exchanged.
func (s *Set) KeyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.keys)
}

// FindAccount resolves an account hash (as produced by
// crypto.AccountIDFromPublicKey) to the matching exchanged public key,
// scanning every known peer's key the way the original's
// findAccount(accountHash) scans peerKeys. Returns InvalidAccount if no
// exchanged key hashes to it.
func (s *Set) FindAccount(hash string) (*crypto.PublicKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, pub := range s.keys {
		if string(crypto.AccountIDFromPublicKey(pub)) == hash {
			return pub, nil
		}
	}

	return nil, &InvalidAccount{Hash: hash}
}
