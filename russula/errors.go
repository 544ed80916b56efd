package russula

import (
	"errors"
	"fmt"
)

// ErrNetworkBlocked signals that a non-blocking read found no data. It is the
// normal "peer not ready yet" outcome and must never abort a session.
var ErrNetworkBlocked = errors.New("no data available from peer")

// ErrReadyTimeout is returned by PollUntil when the caller-supplied bound
// expires before every peer reaches the target phase.
var ErrReadyTimeout = errors.New("timed out waiting for target phase")

// ConnectError reports a failed dial or accept. Fatal for the session; the
// aggregate is never built on partial connectivity.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// MalformedMessageError reports a received token that does not decode to any
// known phase. The offending bytes are retained for diagnostics. Fatal for
// the session: a protocol violation, not a transient condition.
type MalformedMessageError struct {
	Msg []byte
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed message %q", e.Msg)
}

// IoError reports any other transport-level failure (broken pipe, reset
// connection, short write). Fatal for the session.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}
