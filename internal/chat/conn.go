// Package chat runs authenticated chat sessions over framed connections:
// credential exchange, the session registry and message fan-out.
package chat

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/tlschat/internal/protocol"
)

// ReadMode selects how a connection waits for inbound data
type ReadMode string

const (
	// ReadPolling reads with a short deadline and retries after the poll
	// interval, so reads observe context cancellation
	ReadPolling ReadMode = "polling"
	// ReadBlocking reads until data arrives; shutdown relies on closing
	// the connection
	ReadBlocking ReadMode = "blocking"
)

// ParseReadMode converts a config string into a ReadMode
func ParseReadMode(s string) (ReadMode, error) {
	switch ReadMode(strings.ToLower(strings.TrimSpace(s))) {
	case ReadPolling, "":
		return ReadPolling, nil
	case ReadBlocking:
		return ReadBlocking, nil
	default:
		return "", fmt.Errorf("unknown read mode %q", s)
	}
}

// ConnConfig holds per-connection I/O settings
type ConnConfig struct {
	ReadMode     ReadMode
	PollInterval time.Duration
	// WriteTimeout bounds a single Send; zero disables the deadline
	WriteTimeout time.Duration
}

// DefaultConnConfig returns default connection settings
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		ReadMode:     ReadPolling,
		PollInterval: protocol.DefaultPollInterval,
		WriteTimeout: 10 * time.Second,
	}
}

// Conn is one client connection. Reads belong to the goroutine serving the
// connection; Send may be called from any goroutine.
type Conn struct {
	id           string
	conn         net.Conn
	reader       *protocol.Reader
	writeTimeout time.Duration
	connectedAt  time.Time
	peerAddr     string
	localAddr    string

	writeMu sync.Mutex

	mu          sync.RWMutex
	login       string
	displayName string
}

// NewConn wraps an established connection
func NewConn(id string, nc net.Conn, connectedAt time.Time, cfg ConnConfig) *Conn {
	opts := []protocol.ReaderOption{protocol.WithPollInterval(cfg.PollInterval)}

	c := &Conn{
		id:           id,
		conn:         nc,
		writeTimeout: cfg.WriteTimeout,
		connectedAt:  connectedAt,
		peerAddr:     addrString(nc.RemoteAddr()),
		localAddr:    addrString(nc.LocalAddr()),
	}
	if cfg.ReadMode == ReadBlocking {
		c.reader = protocol.NewReader(nc, opts...)
	} else {
		c.reader = protocol.NewReader(protocol.NonBlocking(nc), opts...)
	}
	return c
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

// ID returns the connection identifier
func (c *Conn) ID() string {
	return c.id
}

// PeerAddr returns the remote address
func (c *Conn) PeerAddr() string {
	return c.peerAddr
}

// LocalAddr returns the local address
func (c *Conn) LocalAddr() string {
	return c.localAddr
}

// ConnectedAt returns when the connection was accepted
func (c *Conn) ConnectedAt() time.Time {
	return c.connectedAt
}

// Login returns the authenticated login, or "" before authentication
func (c *Conn) Login() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.login
}

// DisplayName returns the authenticated display name
func (c *Conn) DisplayName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.displayName
}

func (c *Conn) setIdentity(login, displayName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.login = login
	c.displayName = displayName
}

// ReadMessage reads the next framed message
func (c *Conn) ReadMessage(ctx context.Context) (string, error) {
	return c.reader.ReadMessage(ctx)
}

// Send writes msg as one frame. Concurrent sends are serialized so frames
// never interleave.
func (c *Conn) Send(msg string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	return protocol.WriteMessage(c.conn, msg)
}

// Close closes the underlying connection
func (c *Conn) Close() error {
	return c.conn.Close()
}
