// Package cluster is a peer directory for the optional transport/
// deployment path: a map from a replica's stable raft.Node identity to
// the network address it can be reached on. Consensus membership here is
// a fixed, pre-configured set, not a set of shard owners a key hashes to,
// since reconfiguring membership at runtime is out of scope.
package cluster

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Peer is one entry in the directory: a replica's identity, its dial
// address, and when it was registered.
type Peer struct {
	ID      uuid.UUID
	Address string
	AddedAt time.Time
}

// PeerDirectory tracks the network address of every replica in a cohort,
// so a transport.Client knows where to dial a given raft.Node.ID.
type PeerDirectory struct {
	peers map[uuid.UUID]*Peer
	mu    sync.RWMutex
}

// NewPeerDirectory returns an empty directory.
func NewPeerDirectory() *PeerDirectory {
	return &PeerDirectory{peers: make(map[uuid.UUID]*Peer)}
}

// Register adds a peer's address to the directory.
func (d *PeerDirectory) Register(id uuid.UUID, address string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.peers[id]; exists {
		return fmt.Errorf("cluster: peer %s already registered", id)
	}
	d.peers[id] = &Peer{ID: id, Address: address, AddedAt: time.Now()}
	return nil
}

// Unregister removes a peer from the directory.
func (d *PeerDirectory) Unregister(id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.peers[id]; !exists {
		return fmt.Errorf("cluster: peer %s not found", id)
	}
	delete(d.peers, id)
	return nil
}

// Address returns the dial address registered for id.
func (d *PeerDirectory) Address(id uuid.UUID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	peer, exists := d.peers[id]
	if !exists {
		return "", fmt.Errorf("cluster: peer %s not found", id)
	}
	return peer.Address, nil
}

// Peers returns every registered peer.
func (d *PeerDirectory) Peers() []*Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()

	peers := make([]*Peer, 0, len(d.peers))
	for _, p := range d.peers {
		peers = append(peers, p)
	}
	return peers
}

// PeerIDs returns the identity of every registered peer, the shape
// raft.Node.SetPeers expects.
func (d *PeerDirectory) PeerIDs() []uuid.UUID {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(d.peers))
	for id := range d.peers {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of registered peers.
func (d *PeerDirectory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}
