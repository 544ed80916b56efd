package netbench

import (
	"net"

	"github.com/distbench/orchestrator/russula"
	"github.com/distbench/orchestrator/utils"
)

const serverCoordRole = "ServerCoord"

// ServerCoordState is the coordinator's phase chain for the server benchmark
// endpoint.
type ServerCoordState int

const (
	ServerCoordCheckPeer ServerCoordState = iota // Announce ourselves, await the worker's ready token
	ServerCoordReady                             // Barrier reached; the orchestrator decides when to run
	ServerCoordRunPeer                           // Command the worker to run; no ack expected
	ServerCoordKillPeer                          // Await the worker's done token
	ServerCoordDone                              // Terminal
)

func (s ServerCoordState) String() string {
	switch s {
	case ServerCoordCheckPeer:
		return "CheckPeer"
	case ServerCoordReady:
		return "Ready"
	case ServerCoordRunPeer:
		return "RunPeer"
	case ServerCoordKillPeer:
		return "KillPeer"
	case ServerCoordDone:
		return "Done"
	}
	return "Undefined"
}

func (s ServerCoordState) Token() []byte {
	switch s {
	case ServerCoordCheckPeer:
		return []byte("coord_check_peer")
	case ServerCoordReady:
		return []byte("coord_ready")
	case ServerCoordRunPeer:
		return []byte("coord_run_peer")
	case ServerCoordKillPeer:
		return []byte("coord_kill_peer")
	case ServerCoordDone:
		return []byte("coord_done")
	}
	return nil
}

func ServerCoordFromToken(b []byte) (ServerCoordState, error) {
	for _, s := range []ServerCoordState{
		ServerCoordCheckPeer,
		ServerCoordReady,
		ServerCoordRunPeer,
		ServerCoordKillPeer,
		ServerCoordDone,
	} {
		if string(b) == string(s.Token()) {
			return s, nil
		}
	}
	return 0, &russula.MalformedMessageError{Msg: b}
}

// ServerCoord is the coordinator-role protocol for the server benchmark
// endpoint. One instance drives one worker session; the aggregate holds an
// instance per worker.
type ServerCoord struct {
	state ServerCoordState
	// Whether the current phase's token has been announced to the peer.
	// Each phase announces at most once to keep the unframed byte stream
	// to one in-flight message.
	announced bool
}

func NewServerCoord() *ServerCoord {
	return &ServerCoord{state: ServerCoordCheckPeer}
}

func NewServerCoordProtocol() russula.Protocol[ServerCoordState] {
	return NewServerCoord()
}

// Connect dials out to the worker address.
func (c *ServerCoord) Connect(addr string) (net.Conn, error) {
	utils.ProtocolLog(serverCoordRole, "connecting to worker %s", addr)
	return russula.Dial(addr)
}

func (c *ServerCoord) State() ServerCoordState {
	return c.state
}

func (c *ServerCoord) ReadyState() ServerCoordState {
	return ServerCoordReady
}

func (c *ServerCoord) DoneState() ServerCoordState {
	return ServerCoordDone
}

func (c *ServerCoord) TransitionStep() russula.TransitionStep {
	switch c.state {
	case ServerCoordCheckPeer:
		return russula.TransitionStep{Kind: russula.AwaitPeer, AwaitMsg: ServerWorkerReady.Token()}
	case ServerCoordReady:
		return russula.TransitionStep{Kind: russula.UserDriven}
	case ServerCoordRunPeer:
		return russula.TransitionStep{Kind: russula.SelfDriven}
	case ServerCoordKillPeer:
		return russula.TransitionStep{Kind: russula.AwaitPeer, AwaitMsg: ServerWorkerDone.Token()}
	}
	return russula.TransitionStep{Kind: russula.Finished}
}

func (c *ServerCoord) AdvanceOnce(conn net.Conn) error {
	switch c.state {
	case ServerCoordCheckPeer:
		if !c.announced {
			if err := russula.SendMsg(conn, ServerCoordCheckPeer.Token()); err != nil {
				return err
			}
			c.announced = true
		}
		got, err := recvExpected(conn, ServerWorkerReady.Token(), decodeServerWorker, serverCoordRole)
		if err != nil || !got {
			return err
		}
		c.next()
	case ServerCoordReady:
		// UserDriven; only UserAdvance moves us
	case ServerCoordRunPeer:
		// Announce the run command and advance without waiting for an
		// ack, so one coordinator is not serialized on N round trips.
		// The worker catches up on its own schedule.
		if err := russula.SendMsg(conn, ServerCoordRunPeer.Token()); err != nil {
			return err
		}
		c.next()
	case ServerCoordKillPeer:
		got, err := recvExpected(conn, ServerWorkerDone.Token(), decodeServerWorker, serverCoordRole)
		if err != nil || !got {
			return err
		}
		c.next()
	case ServerCoordDone:
	}
	return nil
}

func (c *ServerCoord) UserAdvance(net.Conn) error {
	if c.state == ServerCoordReady {
		c.next()
	}
	return nil
}

func (c *ServerCoord) next() {
	prev := c.state
	if c.state < ServerCoordDone {
		c.state++
	}
	c.announced = false
	utils.ProtocolLog(serverCoordRole, "%s -> %s", prev, c.state)
}

func decodeServerWorker(b []byte) error {
	_, err := ServerWorkerFromToken(b)
	return err
}
