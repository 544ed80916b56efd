package russula

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRecvRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	done := make(chan error, 1)
	go func() {
		done <- SendMsg(a, []byte("ready"))
	}()

	msg, err := RecvMsg(b)
	require.NoError(t, err)
	assert.Equal(t, []byte("ready"), msg)
	require.NoError(t, <-done)
}

func TestRecvNoDataIsBlockedNotError(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	msg, err := RecvMsg(b)
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, ErrNetworkBlocked)
}

func TestRecvClosedConnIsIoError(t *testing.T) {
	a, b := net.Pipe()
	a.Close()

	_, err := RecvMsg(b)
	require.Error(t, err)
	var ioErr *IoError
	assert.True(t, errors.As(err, &ioErr))
}

func TestDialRefused(t *testing.T) {
	// Grab a port and close it again so nothing is listening there
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Dial(addr)
	require.Error(t, err)
	var connErr *ConnectError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, addr, connErr.Addr)
}

func TestAcceptDialPair(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	accepted := make(chan net.Conn, 1)
	errCh := make(chan error, 1)
	go func() {
		conn, err := Accept(addr)
		if err != nil {
			errCh <- err
			return
		}
		accepted <- conn
	}()

	var dialed net.Conn
	for i := 0; i < 50; i++ {
		dialed, err = Dial(addr)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer dialed.Close()

	select {
	case conn := <-accepted:
		defer conn.Close()

		require.NoError(t, SendMsg(dialed, []byte("coord_check_peer")))
		msg, err := RecvMsg(conn)
		require.NoError(t, err)
		assert.Equal(t, []byte("coord_check_peer"), msg)
	case err := <-errCh:
		t.Fatalf("accept failed: %v", err)
	}
}
