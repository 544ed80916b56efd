package netbench

import (
	"net"

	"github.com/distbench/orchestrator/russula"
	"github.com/distbench/orchestrator/utils"
)

const clientCoordRole = "ClientCoord"

// ClientCoordState is the coordinator's phase chain for the client benchmark
// endpoint. The client driver completes on its own, so the tail waits for the
// worker instead of killing it.
type ClientCoordState int

const (
	ClientCoordCheckPeer ClientCoordState = iota
	ClientCoordReady
	ClientCoordRunPeer
	ClientCoordWaitPeerDone
	ClientCoordDone
)

func (s ClientCoordState) String() string {
	switch s {
	case ClientCoordCheckPeer:
		return "CheckPeer"
	case ClientCoordReady:
		return "Ready"
	case ClientCoordRunPeer:
		return "RunPeer"
	case ClientCoordWaitPeerDone:
		return "WaitPeerDone"
	case ClientCoordDone:
		return "Done"
	}
	return "Undefined"
}

func (s ClientCoordState) Token() []byte {
	switch s {
	case ClientCoordCheckPeer:
		return []byte("coord_check_peer")
	case ClientCoordReady:
		return []byte("coord_ready")
	case ClientCoordRunPeer:
		return []byte("coord_run_peer")
	case ClientCoordWaitPeerDone:
		return []byte("coord_wait_peer_done")
	case ClientCoordDone:
		return []byte("coord_done")
	}
	return nil
}

func ClientCoordFromToken(b []byte) (ClientCoordState, error) {
	for _, s := range []ClientCoordState{
		ClientCoordCheckPeer,
		ClientCoordReady,
		ClientCoordRunPeer,
		ClientCoordWaitPeerDone,
		ClientCoordDone,
	} {
		if string(b) == string(s.Token()) {
			return s, nil
		}
	}
	return 0, &russula.MalformedMessageError{Msg: b}
}

// ClientCoord is the coordinator-role protocol for the client benchmark
// endpoint.
type ClientCoord struct {
	state     ClientCoordState
	announced bool
}

func NewClientCoord() *ClientCoord {
	return &ClientCoord{state: ClientCoordCheckPeer}
}

func NewClientCoordProtocol() russula.Protocol[ClientCoordState] {
	return NewClientCoord()
}

func (c *ClientCoord) Connect(addr string) (net.Conn, error) {
	utils.ProtocolLog(clientCoordRole, "connecting to worker %s", addr)
	return russula.Dial(addr)
}

func (c *ClientCoord) State() ClientCoordState {
	return c.state
}

func (c *ClientCoord) ReadyState() ClientCoordState {
	return ClientCoordReady
}

func (c *ClientCoord) DoneState() ClientCoordState {
	return ClientCoordDone
}

func (c *ClientCoord) TransitionStep() russula.TransitionStep {
	switch c.state {
	case ClientCoordCheckPeer:
		return russula.TransitionStep{Kind: russula.AwaitPeer, AwaitMsg: ClientWorkerReady.Token()}
	case ClientCoordReady:
		return russula.TransitionStep{Kind: russula.UserDriven}
	case ClientCoordRunPeer:
		return russula.TransitionStep{Kind: russula.SelfDriven}
	case ClientCoordWaitPeerDone:
		return russula.TransitionStep{Kind: russula.AwaitPeer, AwaitMsg: ClientWorkerDone.Token()}
	}
	return russula.TransitionStep{Kind: russula.Finished}
}

func (c *ClientCoord) AdvanceOnce(conn net.Conn) error {
	switch c.state {
	case ClientCoordCheckPeer:
		if !c.announced {
			if err := russula.SendMsg(conn, ClientCoordCheckPeer.Token()); err != nil {
				return err
			}
			c.announced = true
		}
		got, err := recvExpected(conn, ClientWorkerReady.Token(), decodeClientWorker, clientCoordRole)
		if err != nil || !got {
			return err
		}
		c.next()
	case ClientCoordReady:
		// UserDriven; only UserAdvance moves us
	case ClientCoordRunPeer:
		// Announce the run command and advance without waiting for an ack
		if err := russula.SendMsg(conn, ClientCoordRunPeer.Token()); err != nil {
			return err
		}
		c.next()
	case ClientCoordWaitPeerDone:
		got, err := recvExpected(conn, ClientWorkerDone.Token(), decodeClientWorker, clientCoordRole)
		if err != nil || !got {
			return err
		}
		c.next()
	case ClientCoordDone:
	}
	return nil
}

func (c *ClientCoord) UserAdvance(net.Conn) error {
	if c.state == ClientCoordReady {
		c.next()
	}
	return nil
}

func (c *ClientCoord) next() {
	prev := c.state
	if c.state < ClientCoordDone {
		c.state++
	}
	c.announced = false
	utils.ProtocolLog(clientCoordRole, "%s -> %s", prev, c.state)
}

func decodeClientWorker(b []byte) error {
	_, err := ClientWorkerFromToken(b)
	return err
}
