// Package peer implements the peer connection finite-state machine and
// the routing table each worker keeps of the peers it exchanges rays
// with.
package peer

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/alex-ozdemir/raylet/pkg/types"
)

// MaxRetries bounds how many ConnectionRequest attempts a Connecting
// peer gets before it is considered unreachable.
const MaxRetries = 10

// Peer is one entry in a worker's routing table: a remote worker it can
// forward rays to or receive rays from.
type Peer struct {
	WorkerID types.WorkerID
	UDPAddr  *net.UDPAddr

	// MySeed is the nonce this side advertises; YourSeed is the nonce
	// most recently seen from the remote side, echoed back on the next
	// ConnectionRequest so a restarted peer can detect a stale reply.
	MySeed   uint64
	YourSeed uint64

	Treelets map[types.TreeletID]bool

	State   types.ConnState
	Retries int
}

// NewSeed generates a random 64-bit nonce for the handshake, the same
// way the cluster's join-token generator draws from crypto/rand rather
// than a seeded PRNG.
func NewSeed() (uint64, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return 0, fmt.Errorf("peer: generate seed: %w", err)
	}
	return binary.BigEndian.Uint64(buf), nil
}

// Table is a worker's (or the coordinator's) set of known peers, keyed
// by worker id. It is not safe for concurrent use from multiple
// goroutines -- like every other piece of mutable process state, it is
// owned exclusively by the event loop's dispatcher goroutine.
type Table struct {
	peers map[types.WorkerID]*Peer
}

// NewTable creates an empty peer table.
func NewTable() *Table {
	return &Table{peers: make(map[types.WorkerID]*Peer)}
}

// Create adds a new peer in the Connecting state. Per the connection
// FSM's monotonicity invariant, Create never overwrites an existing
// entry for the same worker id -- callers must remove a peer before
// recreating it.
func (t *Table) Create(id types.WorkerID, addr *net.UDPAddr) (*Peer, error) {
	if _, exists := t.peers[id]; exists {
		return nil, fmt.Errorf("peer: worker %d already has a table entry", id)
	}
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	p := &Peer{
		WorkerID: id,
		UDPAddr:  addr,
		MySeed:   seed,
		Treelets: make(map[types.TreeletID]bool),
		State:    types.ConnConnecting,
	}
	t.peers[id] = p
	return p, nil
}

// Get returns the peer for id, or nil if none exists.
func (t *Table) Get(id types.WorkerID) *Peer {
	return t.peers[id]
}

// Remove deletes a peer's table entry.
func (t *Table) Remove(id types.WorkerID) {
	delete(t.peers, id)
}

// All returns every peer currently in the table.
func (t *Table) All() []*Peer {
	out := make([]*Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, p)
	}
	return out
}

// Connecting returns every peer still in the Connecting state.
func (t *Table) Connecting() []*Peer {
	var out []*Peer
	for _, p := range t.peers {
		if p.State == types.ConnConnecting {
			out = append(out, p)
		}
	}
	return out
}

// HoldersOf returns the worker ids of every Connected peer known to
// hold treeletID.
func (t *Table) HoldersOf(treeletID types.TreeletID) []types.WorkerID {
	var out []types.WorkerID
	for id, p := range t.peers {
		if p.State == types.ConnConnected && p.Treelets[treeletID] {
			out = append(out, id)
		}
	}
	return out
}

// OnConnectionRequest advances a peer on receipt of a ConnectionRequest,
// recording the remote side's seed so a later ConnectionResponse can be
// validated against it. It does not transition state on its own --
// that happens when the matching ConnectionResponse arrives.
func (p *Peer) OnConnectionRequest(theirSeed uint64) {
	p.YourSeed = theirSeed
}

// OnConnectionResponse attempts the Connecting → Connected transition.
// The transition only fires if yourSeed echoes back the seed this side
// advertised (MySeed); a mismatch -- most likely a stale reply from
// before a restart -- leaves the peer in Connecting. Per the FSM's
// monotonicity invariant, a peer that is already Connected is left
// untouched: Connected never regresses to Connecting.
func (p *Peer) OnConnectionResponse(yourSeed uint64, treeletIDs []types.TreeletID) bool {
	if p.State == types.ConnConnected {
		return true
	}
	if yourSeed != p.MySeed {
		return false
	}
	p.State = types.ConnConnected
	p.Retries = 0
	for _, id := range treeletIDs {
		p.Treelets[id] = true
	}
	return true
}

// RetryOrExpire increments the retry counter for a Connecting peer and
// reports whether it has exceeded MaxRetries and should be given up on.
func (p *Peer) RetryOrExpire() (expired bool) {
	p.Retries++
	return p.Retries > MaxRetries
}

