package russula

import (
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// Messages are short ASCII tokens sent as a single write with no length
// prefix; one bounded read per attempt consumes a whole message.
const msgBufSize = 100

// How long a single send or receive attempt waits for the connection to
// become writable or readable before reporting "blocked".
const ioWait = 100 * time.Millisecond

const dialTimeout = 10 * time.Second

// Dial is the initiator-side connect used by coordinators.
func Dial(addr string) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	return conn, nil
}

// Accept binds addr and accepts exactly one inbound connection, then closes
// the listener. A worker serves one coordinator connection per run.
func Accept(addr string) (net.Conn, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	defer ln.Close()

	conn, err := ln.Accept()
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	return conn, nil
}

// SendMsg performs a single best-effort write of one token. Short writes and
// deadline expiry surface as transport errors; retrying is the state
// machine's responsibility, not the transport's.
func SendMsg(conn net.Conn, token []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(ioWait)); err != nil {
		return &IoError{Op: "send", Err: err}
	}
	n, err := conn.Write(token)
	if err != nil {
		return &IoError{Op: "send", Err: err}
	}
	if n != len(token) {
		return &IoError{Op: "send", Err: io.ErrShortWrite}
	}
	return nil
}

// RecvMsg performs a single bounded read of one message. When no data arrives
// within the readiness window it returns ErrNetworkBlocked, which callers
// treat as "peer not ready yet" rather than failure.
func RecvMsg(conn net.Conn) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(ioWait)); err != nil {
		return nil, &IoError{Op: "recv", Err: err}
	}
	buf := make([]byte, msgBufSize)
	n, err := conn.Read(buf)
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return nil, ErrNetworkBlocked
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, ErrNetworkBlocked
		}
		return nil, &IoError{Op: "recv", Err: err}
	}
	return buf[:n], nil
}
