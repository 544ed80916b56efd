package netbench

import (
	"net"

	"github.com/distbench/orchestrator/russula"
	"github.com/distbench/orchestrator/utils"
)

const serverWorkerRole = "ServerWorker"

// ServerWorkerState can be treated as an enum; the phases form the worker's
// linear chain for the server benchmark endpoint.
type ServerWorkerState int

const (
	ServerWorkerWaitCoordInit ServerWorkerState = iota // Wait for the coordinator's check_peer announcement
	ServerWorkerReady                                  // Announced ready, wait for the run command
	ServerWorkerRun                                    // Benchmark driver runs as an external process
	ServerWorkerDone                                   // Terminal
)

func (s ServerWorkerState) String() string {
	switch s {
	case ServerWorkerWaitCoordInit:
		return "WaitCoordInit"
	case ServerWorkerReady:
		return "Ready"
	case ServerWorkerRun:
		return "Run"
	case ServerWorkerDone:
		return "Done"
	}
	return "Undefined"
}

func (s ServerWorkerState) Token() []byte {
	switch s {
	case ServerWorkerWaitCoordInit:
		return []byte("server_wait_coord_init")
	case ServerWorkerReady:
		return []byte("server_ready")
	case ServerWorkerRun:
		return []byte("server_run")
	case ServerWorkerDone:
		return []byte("server_done")
	}
	return nil
}

// ServerWorkerFromToken decodes a wire token into a phase. Unknown tokens are
// a protocol violation, never a silent default.
func ServerWorkerFromToken(b []byte) (ServerWorkerState, error) {
	for _, s := range []ServerWorkerState{
		ServerWorkerWaitCoordInit,
		ServerWorkerReady,
		ServerWorkerRun,
		ServerWorkerDone,
	} {
		if string(b) == string(s.Token()) {
			return s, nil
		}
	}
	return 0, &russula.MalformedMessageError{Msg: b}
}

// ServerWorker is the worker-role protocol for the server benchmark endpoint.
type ServerWorker struct {
	state ServerWorkerState
}

func NewServerWorker() *ServerWorker {
	return &ServerWorker{state: ServerWorkerWaitCoordInit}
}

// NewServerWorkerProtocol is a Builder factory.
func NewServerWorkerProtocol() russula.Protocol[ServerWorkerState] {
	return NewServerWorker()
}

// Connect binds the worker address and accepts the one coordinator
// connection for this run.
func (w *ServerWorker) Connect(addr string) (net.Conn, error) {
	utils.ProtocolLog(serverWorkerRole, "listening on %s", addr)
	return russula.Accept(addr)
}

func (w *ServerWorker) State() ServerWorkerState {
	return w.state
}

func (w *ServerWorker) ReadyState() ServerWorkerState {
	return ServerWorkerReady
}

func (w *ServerWorker) DoneState() ServerWorkerState {
	return ServerWorkerDone
}

func (w *ServerWorker) TransitionStep() russula.TransitionStep {
	switch w.state {
	case ServerWorkerWaitCoordInit:
		return russula.TransitionStep{Kind: russula.AwaitPeer, AwaitMsg: ServerCoordCheckPeer.Token()}
	case ServerWorkerReady:
		return russula.TransitionStep{Kind: russula.AwaitPeer, AwaitMsg: ServerCoordRunPeer.Token()}
	case ServerWorkerRun:
		return russula.TransitionStep{Kind: russula.SelfDriven}
	}
	return russula.TransitionStep{Kind: russula.Finished}
}

func (w *ServerWorker) AdvanceOnce(conn net.Conn) error {
	switch w.state {
	case ServerWorkerWaitCoordInit:
		got, err := recvExpected(conn, ServerCoordCheckPeer.Token(), decodeServerCoord, serverWorkerRole)
		if err != nil || !got {
			return err
		}
		// Reply with our own ready token before moving on
		if err := russula.SendMsg(conn, ServerWorkerReady.Token()); err != nil {
			return err
		}
		w.next()
	case ServerWorkerReady:
		got, err := recvExpected(conn, ServerCoordRunPeer.Token(), decodeServerCoord, serverWorkerRole)
		if err != nil || !got {
			return err
		}
		w.next()
	case ServerWorkerRun:
		// The owning application only polls past Run once the external
		// driver process has exited; announce completion and finish.
		w.next()
		return russula.SendMsg(conn, ServerWorkerDone.Token())
	case ServerWorkerDone:
	}
	return nil
}

func (w *ServerWorker) UserAdvance(net.Conn) error {
	return nil
}

func (w *ServerWorker) next() {
	prev := w.state
	if w.state < ServerWorkerDone {
		w.state++
	}
	utils.ProtocolLog(serverWorkerRole, "%s -> %s", prev, w.state)
}

func decodeServerCoord(b []byte) error {
	_, err := ServerCoordFromToken(b)
	return err
}
