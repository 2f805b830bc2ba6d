// Package client is a TLS client for the chat protocol.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/tlschat/internal/protocol"
)

// ErrRejected is returned when the server rejects credentials. The wrapped
// message carries the server's reply.
var ErrRejected = errors.New("credentials rejected")

// Client is one authenticated or authenticating chat connection
type Client struct {
	conn   *tls.Conn
	reader *protocol.Reader

	writeMu sync.Mutex
}

// TLSConfig builds a client TLS config. caFile adds a trusted PEM bundle;
// insecure skips verification entirely.
func TLSConfig(serverAddr, caFile string, insecure bool) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: insecure, //nolint:gosec // opt-in for self-signed dev servers
	}

	if host, _, err := net.SplitHostPort(serverAddr); err == nil {
		cfg.ServerName = host
	}

	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", caFile)
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

// Dial connects and completes the TLS handshake
func Dial(ctx context.Context, addr string, tlsConfig *tls.Config) (*Client, error) {
	dialer := &tls.Dialer{Config: tlsConfig}
	nc, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	conn := nc.(*tls.Conn)
	return &Client{
		conn:   conn,
		reader: protocol.NewReader(conn),
	}, nil
}

// Send writes one message
func (c *Client) Send(msg string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteMessage(c.conn, msg)
}

// Receive reads the next message. Cancelling ctx interrupts the read; a
// frame partially read at that point is lost.
func (c *Client) Receive(ctx context.Context) (string, error) {
	if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
		return "", err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	return c.reader.ReadMessage(ctx)
}

// Login authenticates an existing account
func (c *Client) Login(ctx context.Context, login, password string) error {
	return c.authenticate(ctx, protocol.Credentials{
		Kind:     protocol.KindLogin,
		Login:    login,
		Password: password,
	})
}

// Register creates an account and authenticates as it
func (c *Client) Register(ctx context.Context, login, password, displayName string) error {
	return c.authenticate(ctx, protocol.Credentials{
		Kind:        protocol.KindRegister,
		Login:       login,
		Password:    password,
		DisplayName: displayName,
	})
}

func (c *Client) authenticate(ctx context.Context, creds protocol.Credentials) error {
	if err := c.Send(creds.Encode()); err != nil {
		return fmt.Errorf("send credentials: %w", err)
	}
	reply, err := c.Receive(ctx)
	if err != nil {
		return fmt.Errorf("read auth reply: %w", err)
	}
	if reply != protocol.ReplyCorrect {
		return fmt.Errorf("%w: %s", ErrRejected, reply)
	}
	return nil
}

// Exit sends the exit command and waits for its echo. Messages received
// before the echo are passed to onMessage when it is non-nil.
func (c *Client) Exit(ctx context.Context, onMessage func(string)) error {
	if err := c.Send(protocol.ExitCommand); err != nil {
		return fmt.Errorf("send exit: %w", err)
	}
	for {
		msg, err := c.Receive(ctx)
		if err != nil {
			return fmt.Errorf("wait for exit echo: %w", err)
		}
		if msg == protocol.ExitCommand {
			return nil
		}
		if onMessage != nil {
			onMessage(msg)
		}
	}
}

// WaitFor reads until a message satisfying match arrives and returns it
func (c *Client) WaitFor(ctx context.Context, match func(string) bool) (string, error) {
	for {
		msg, err := c.Receive(ctx)
		if err != nil {
			return "", err
		}
		if match(msg) {
			return msg, nil
		}
	}
}

// IsChatLine reports whether msg is a broadcast chat line carrying text
func IsChatLine(msg, text string) bool {
	return strings.HasPrefix(msg, "[") && strings.HasSuffix(msg, ":"+text)
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}
