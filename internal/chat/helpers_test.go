package chat

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcoot/tlschat/internal/protocol"
	"github.com/mcoot/tlschat/internal/testutil"
)

const waitTimeout = 2 * time.Second

// addrConn gives a net.Pipe end distinct TCP-looking addresses so address
// matching behaves like it would for real sockets
type addrConn struct {
	net.Conn
	local  net.Addr
	remote net.Addr
}

func (c *addrConn) LocalAddr() net.Addr  { return c.local }
func (c *addrConn) RemoteAddr() net.Addr { return c.remote }

var nextPeerPort atomic.Int32

func init() {
	nextPeerPort.Store(40000)
}

// pipePair returns the server and client ends of an in-memory connection
func pipePair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	s, c := net.Pipe()
	t.Cleanup(func() {
		_ = s.Close()
		_ = c.Close()
	})
	server := &addrConn{
		Conn:   s,
		local:  &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8080},
		remote: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(nextPeerPort.Add(1))},
	}
	return server, c
}

func testConnConfig() ConnConfig {
	return ConnConfig{
		ReadMode:     ReadPolling,
		PollInterval: 5 * time.Millisecond,
		WriteTimeout: time.Second,
	}
}

// newTestConn returns a server-side Conn and a client reading from it
func newTestConn(t *testing.T, id string) (*Conn, *testClient) {
	t.Helper()
	server, client := pipePair(t)
	conn := NewConn(id, server, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), testConnConfig())
	return conn, newTestClient(t, client)
}

// testClient is the client end of a connection. Inbound frames are read
// continuously so server writes never stall.
type testClient struct {
	t    *testing.T
	conn net.Conn
	msgs chan string
}

func newTestClient(t *testing.T, conn net.Conn) *testClient {
	c := &testClient{t: t, conn: conn, msgs: make(chan string, 256)}
	go func() {
		defer close(c.msgs)
		r := protocol.NewReader(conn)
		for {
			msg, err := r.ReadMessage(context.Background())
			if err != nil {
				return
			}
			c.msgs <- msg
		}
	}()
	return c
}

func (c *testClient) send(msg string) {
	c.t.Helper()
	require.NoError(c.t, protocol.WriteMessage(c.conn, msg))
}

func (c *testClient) expect(want string) {
	c.t.Helper()
	select {
	case got, ok := <-c.msgs:
		require.True(c.t, ok, "connection closed while waiting for %q", want)
		require.Equal(c.t, want, got)
	case <-time.After(waitTimeout):
		require.FailNow(c.t, "timed out waiting for message", want)
	}
}

// expectClosed waits for the server to close the connection with no
// further messages
func (c *testClient) expectClosed() {
	c.t.Helper()
	select {
	case got, ok := <-c.msgs:
		require.False(c.t, ok, "unexpected message %q", got)
	case <-time.After(waitTimeout):
		require.FailNow(c.t, "timed out waiting for close")
	}
}

func (c *testClient) close() {
	_ = c.conn.Close()
}

func testRegistries(t *testing.T) map[string]func() Registry {
	return map[string]func() Registry{
		"locked": func() Registry {
			return NewLockedRegistry()
		},
		"hub": func() Registry {
			h := NewHub(testutil.NopLogger())
			go h.Run()
			t.Cleanup(h.Close)
			return h
		},
	}
}
