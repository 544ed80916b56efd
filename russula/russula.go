package russula

import (
	"net"
	"sort"
	"time"

	"github.com/distbench/orchestrator/utils"
)

// Peer binds one network connection to one protocol instance. The connection
// is exclusively owned by the session for its lifetime.
type Peer[S State] struct {
	Addr     string
	Conn     net.Conn
	Protocol Protocol[S]
}

// Russula drives an ordered collection of peer sessions as a single logical
// barrier: a coordinator holds one session per worker, a worker holds the one
// session to its coordinator. Sessions are ordered by network address so that
// fan-out behavior is reproducible across runs.
type Russula[S State] struct {
	peers     []*Peer[S]
	pollDelay time.Duration
}

// New assembles an aggregate from already-connected peer sessions. Most
// callers go through Builder instead.
func New[S State](peers []*Peer[S], pollDelay time.Duration) *Russula[S] {
	return &Russula[S]{peers: peers, pollDelay: pollDelay}
}

// Peers returns the sessions in address order.
func (r *Russula[S]) Peers() []*Peer[S] {
	return r.peers
}

// RunUntilReady blocks until every peer session has reached the protocol's
// Ready phase. There is no built-in timeout; a dead peer waits forever unless
// the caller imposes an external deadline.
func (r *Russula[S]) RunUntilReady() error {
	for _, p := range r.peers {
		ready := p.Protocol.ReadyState()
		for p.Protocol.State() != ready {
			if err := p.Protocol.AdvanceOnce(p.Conn); err != nil {
				return err
			}
			if p.Protocol.State() != ready {
				time.Sleep(r.pollDelay)
			}
		}
	}
	return nil
}

// PollToward attempts at most one step per peer session and reports Ready
// only when every session is at the target phase. A single lagging peer
// forces Pending.
func (r *Russula[S]) PollToward(target S) (Poll, error) {
	poll := Ready
	for _, p := range r.peers {
		if p.Protocol.State() == target {
			continue
		}
		if err := p.Protocol.AdvanceOnce(p.Conn); err != nil {
			return Pending, err
		}
		if p.Protocol.State() != target {
			poll = Pending
		}
	}
	return poll, nil
}

// PollUntil polls toward target with the aggregate's delay between attempts.
// A zero bound polls forever; otherwise ErrReadyTimeout is returned once the
// bound expires.
func (r *Russula[S]) PollUntil(target S, bound time.Duration) error {
	deadline := time.Time{}
	if bound > 0 {
		deadline = time.Now().Add(bound)
	}
	for {
		poll, err := r.PollToward(target)
		if err != nil {
			return err
		}
		if poll.IsReady() {
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return ErrReadyTimeout
		}
		time.Sleep(r.pollDelay)
	}
}

// AllReport reports whether every session's current phase equals state.
// Callers use it to assert expected state before a user-driven transition.
func (r *Russula[S]) AllReport(state S) bool {
	for _, p := range r.peers {
		if p.Protocol.State() != state {
			return false
		}
	}
	return true
}

// UserAdvanceAll issues the explicit caller-driven transition on every
// session, e.g. the coordinator's "start the benchmark now".
func (r *Russula[S]) UserAdvanceAll() error {
	for _, p := range r.peers {
		if err := p.Protocol.UserAdvance(p.Conn); err != nil {
			return err
		}
	}
	return nil
}

// Close drops every session's connection. The aggregate is not reusable
// afterwards.
func (r *Russula[S]) Close() {
	for _, p := range r.peers {
		if p.Conn != nil {
			p.Conn.Close()
		}
	}
}

// Builder resolves a set of peer addresses plus a protocol template into
// live, connected peer sessions.
type Builder[S State] struct {
	addrs       []string
	newProtocol func() Protocol[S]
	pollDelay   time.Duration
}

// NewBuilder copies and sorts the address set. newProtocol produces one fresh
// protocol instance per peer; instances are never shared between sessions.
func NewBuilder[S State](addrs []string, newProtocol func() Protocol[S], pollDelay time.Duration) *Builder[S] {
	sorted := make([]string, len(addrs))
	copy(sorted, addrs)
	sort.Strings(sorted)
	return &Builder[S]{
		addrs:       sorted,
		newProtocol: newProtocol,
		pollDelay:   pollDelay,
	}
}

// Build performs the role-appropriate handshake for every peer address.
// Partial connectivity is not a valid starting state: the first failed
// connection aborts the build and closes any sessions already established.
func (b *Builder[S]) Build() (*Russula[S], error) {
	peers := make([]*Peer[S], 0, len(b.addrs))
	for _, addr := range b.addrs {
		protocol := b.newProtocol()
		conn, err := protocol.Connect(addr)
		if err != nil {
			for _, p := range peers {
				p.Conn.Close()
			}
			return nil, err
		}
		utils.ProtocolLog("russula", "connected peer %s", addr)
		peers = append(peers, &Peer[S]{
			Addr:     addr,
			Conn:     conn,
			Protocol: protocol,
		})
	}
	return New(peers, b.pollDelay), nil
}
