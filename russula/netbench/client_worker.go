package netbench

import (
	"net"

	"github.com/distbench/orchestrator/russula"
	"github.com/distbench/orchestrator/utils"
)

const clientWorkerRole = "ClientWorker"

// ClientWorkerState is the worker's phase chain for the client benchmark
// endpoint. Unlike the server endpoint, the client driver completes on its
// own, so the chain carries the extra RunningAwaitComplete and Stopped steps.
type ClientWorkerState int

const (
	ClientWorkerWaitCoordInit ClientWorkerState = iota
	ClientWorkerReady
	ClientWorkerRun
	ClientWorkerRunningAwaitComplete // Driver launched, owning application reports its exit
	ClientWorkerStopped
	ClientWorkerDone
)

func (s ClientWorkerState) String() string {
	switch s {
	case ClientWorkerWaitCoordInit:
		return "WaitCoordInit"
	case ClientWorkerReady:
		return "Ready"
	case ClientWorkerRun:
		return "Run"
	case ClientWorkerRunningAwaitComplete:
		return "RunningAwaitComplete"
	case ClientWorkerStopped:
		return "Stopped"
	case ClientWorkerDone:
		return "Done"
	}
	return "Undefined"
}

func (s ClientWorkerState) Token() []byte {
	switch s {
	case ClientWorkerWaitCoordInit:
		return []byte("client_wait_coord_init")
	case ClientWorkerReady:
		return []byte("client_ready")
	case ClientWorkerRun:
		return []byte("client_run")
	case ClientWorkerRunningAwaitComplete:
		return []byte("client_running_await_complete")
	case ClientWorkerStopped:
		return []byte("client_stopped")
	case ClientWorkerDone:
		return []byte("client_done")
	}
	return nil
}

func ClientWorkerFromToken(b []byte) (ClientWorkerState, error) {
	for _, s := range []ClientWorkerState{
		ClientWorkerWaitCoordInit,
		ClientWorkerReady,
		ClientWorkerRun,
		ClientWorkerRunningAwaitComplete,
		ClientWorkerStopped,
		ClientWorkerDone,
	} {
		if string(b) == string(s.Token()) {
			return s, nil
		}
	}
	return 0, &russula.MalformedMessageError{Msg: b}
}

// ClientWorker is the worker-role protocol for the client benchmark endpoint.
type ClientWorker struct {
	state ClientWorkerState
}

func NewClientWorker() *ClientWorker {
	return &ClientWorker{state: ClientWorkerWaitCoordInit}
}

func NewClientWorkerProtocol() russula.Protocol[ClientWorkerState] {
	return NewClientWorker()
}

func (w *ClientWorker) Connect(addr string) (net.Conn, error) {
	utils.ProtocolLog(clientWorkerRole, "listening on %s", addr)
	return russula.Accept(addr)
}

func (w *ClientWorker) State() ClientWorkerState {
	return w.state
}

func (w *ClientWorker) ReadyState() ClientWorkerState {
	return ClientWorkerReady
}

func (w *ClientWorker) DoneState() ClientWorkerState {
	return ClientWorkerDone
}

func (w *ClientWorker) TransitionStep() russula.TransitionStep {
	switch w.state {
	case ClientWorkerWaitCoordInit:
		return russula.TransitionStep{Kind: russula.AwaitPeer, AwaitMsg: ClientCoordCheckPeer.Token()}
	case ClientWorkerReady:
		return russula.TransitionStep{Kind: russula.AwaitPeer, AwaitMsg: ClientCoordRunPeer.Token()}
	case ClientWorkerRun:
		return russula.TransitionStep{Kind: russula.SelfDriven}
	case ClientWorkerRunningAwaitComplete:
		return russula.TransitionStep{Kind: russula.UserDriven}
	case ClientWorkerStopped:
		return russula.TransitionStep{Kind: russula.SelfDriven}
	}
	return russula.TransitionStep{Kind: russula.Finished}
}

func (w *ClientWorker) AdvanceOnce(conn net.Conn) error {
	switch w.state {
	case ClientWorkerWaitCoordInit:
		got, err := recvExpected(conn, ClientCoordCheckPeer.Token(), decodeClientCoord, clientWorkerRole)
		if err != nil || !got {
			return err
		}
		if err := russula.SendMsg(conn, ClientWorkerReady.Token()); err != nil {
			return err
		}
		w.next()
	case ClientWorkerReady:
		got, err := recvExpected(conn, ClientCoordRunPeer.Token(), decodeClientCoord, clientWorkerRole)
		if err != nil || !got {
			return err
		}
		w.next()
	case ClientWorkerRun:
		// The owning application launches the driver on entry to Run
		w.next()
	case ClientWorkerRunningAwaitComplete:
		// UserDriven; the application reports driver exit via UserAdvance
	case ClientWorkerStopped:
		w.next()
		return russula.SendMsg(conn, ClientWorkerDone.Token())
	case ClientWorkerDone:
	}
	return nil
}

func (w *ClientWorker) UserAdvance(net.Conn) error {
	if w.state == ClientWorkerRunningAwaitComplete {
		w.next()
	}
	return nil
}

func (w *ClientWorker) next() {
	prev := w.state
	if w.state < ClientWorkerDone {
		w.state++
	}
	utils.ProtocolLog(clientWorkerRole, "%s -> %s", prev, w.state)
}

func decodeClientCoord(b []byte) error {
	_, err := ClientCoordFromToken(b)
	return err
}
