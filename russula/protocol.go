// Package russula implements the coordination protocol used to drive a fleet
// of remote benchmark workers through a shared sequence of phases in
// lock-step. One coordinator process owns a TCP connection per worker and
// advances each worker's state machine one step per poll; the aggregate only
// reports progress once every peer has reached the target phase.
package russula

import "net"

// Poll reports whether a target phase has been reached.
type Poll int

const (
	Pending Poll = iota
	Ready
)

func (p Poll) IsReady() bool {
	return p == Ready
}

func (p Poll) String() string {
	if p == Ready {
		return "Ready"
	}
	return "Pending"
}

// State is implemented by each role's phase enum. A role's phases form a
// strictly linear chain with a terminal fixed point; every phase has exactly
// one canonical wire token.
type State interface {
	comparable
	Token() []byte
	String() string
}

// StepKind classifies how a phase may be left.
type StepKind int

const (
	// AwaitPeer phases only advance once the expected peer token arrives.
	AwaitPeer StepKind = iota
	// UserDriven phases advance only via an explicit UserAdvance call.
	UserDriven
	// SelfDriven phases advance unconditionally on the next step attempt.
	SelfDriven
	// Finished marks the terminal phase.
	Finished
)

func (k StepKind) String() string {
	switch k {
	case AwaitPeer:
		return "AwaitPeer"
	case UserDriven:
		return "UserDriven"
	case SelfDriven:
		return "SelfDriven"
	case Finished:
		return "Finished"
	}
	return "Undefined"
}

// TransitionStep is the static per-phase policy for leaving a phase.
// AwaitMsg is set only for AwaitPeer steps.
type TransitionStep struct {
	Kind     StepKind
	AwaitMsg []byte
}

// Protocol is implemented once per role/endpoint pair (coordinator or worker,
// server or client benchmark endpoint). The phase value it owns is only ever
// mutated by AdvanceOnce and UserAdvance.
type Protocol[S State] interface {
	// Connect performs the role-appropriate handshake: coordinators dial
	// out to the worker address, workers bind and accept exactly one
	// coordinator connection.
	Connect(addr string) (net.Conn, error)

	State() S
	ReadyState() S
	DoneState() S

	// TransitionStep reports the rule for leaving the current phase.
	TransitionStep() TransitionStep

	// AdvanceOnce attempts exactly one step. A peer that has nothing to
	// say yet is a normal outcome, not an error; the phase is left
	// unchanged and the caller retries after its poll delay.
	AdvanceOnce(conn net.Conn) error

	// UserAdvance performs the explicit caller-requested transition out of
	// a UserDriven phase. Calling it in any other phase is a no-op.
	UserAdvance(conn net.Conn) error
}
