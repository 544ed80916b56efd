// Package netbench provides the concrete protocol roles for a netbench run:
// a coordinator and a worker state machine for the server benchmark endpoint
// and for the client benchmark endpoint. Each role owns a fixed linear phase
// chain; phases are announced on the wire as short ASCII tokens.
package netbench

import (
	"bytes"
	"errors"
	"net"

	"github.com/distbench/orchestrator/russula"
	"github.com/distbench/orchestrator/utils"
)

// recvExpected polls for one peer message. It reports true only when the
// awaited token arrived. A token that decodes to a known peer phase but is
// not the awaited one is a duplicate or late re-announcement; it is logged
// and ignored. Undecodable bytes are a protocol violation.
func recvExpected(conn net.Conn, expect []byte, decodePeer func([]byte) error, role string) (bool, error) {
	msg, err := russula.RecvMsg(conn)
	if errors.Is(err, russula.ErrNetworkBlocked) {
		// Peer not ready yet; retry on the next poll
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if bytes.Equal(msg, expect) {
		return true, nil
	}
	if err := decodePeer(msg); err != nil {
		return false, err
	}
	utils.WarnLog("%s: ignoring %q while awaiting %q", role, msg, expect)
	return false, nil
}
