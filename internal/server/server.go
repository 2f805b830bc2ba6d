// Package server accepts TLS connections and hands each one to a
// connection handler on its own goroutine.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/mcoot/tlschat/internal/middleware"
)

var (
	// ErrNotListening is returned by Serve before Listen
	ErrNotListening = errors.New("server is not listening")

	// ErrServerClosed is returned by Listen after Shutdown
	ErrServerClosed = errors.New("server closed")
)

// Config holds configuration for the TLS server
type Config struct {
	Host             string
	Port             int
	HandshakeTimeout time.Duration
	// MaxConnections caps concurrently served connections; 0 means unlimited
	MaxConnections  int
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible defaults for server configuration
func DefaultConfig() Config {
	return Config{
		Host:             "",
		Port:             8080,
		HandshakeTimeout: 10 * time.Second,
		MaxConnections:   0,
		ShutdownTimeout:  30 * time.Second,
	}
}

// LoadTLSConfig loads a server certificate and key from PEM files
func LoadTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Server is a TLS listener with tracked connections and graceful shutdown
type Server struct {
	handler   middleware.ConnHandler
	tlsConfig *tls.Config
	config    Config
	logger    *slog.Logger

	// ctx is handed to every handler and cancelled on Shutdown
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// New creates a new Server
func New(handler middleware.ConnHandler, tlsConfig *tls.Config, config Config, logger *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handler:   handler,
		tlsConfig: tlsConfig,
		config:    config,
		logger:    logger.With(slog.String("component", "server")),
		ctx:       ctx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}
}

// Listen binds the TCP listener
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServerClosed
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = ln
	return nil
}

// Serve accepts connections until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}

	s.logger.Info("starting TLS server",
		slog.String("addr", ln.Addr().String()),
		slog.Int("max_connections", s.config.MaxConnections))

	var backoff time.Duration
	for {
		raw, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.logger.Info("listener closed, accept loop stopped")
				return nil
			}

			// Transient accept failures (e.g. too many open files)
			backoff = nextBackoff(backoff)
			s.logger.Error("accept failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", backoff))
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if !s.track(raw) {
			continue
		}
		go s.handle(raw)
	}
}

// Start listens and serves
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}

// track admits a new connection. It closes and rejects the connection when
// the server is shutting down or at its connection limit.
func (s *Server) track(raw net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		_ = raw.Close()
		return false
	}

	if s.config.MaxConnections > 0 && len(s.conns) >= s.config.MaxConnections {
		s.logger.Warn("connection limit reached, rejecting connection",
			slog.String("peer", raw.RemoteAddr().String()),
			slog.Int("max_connections", s.config.MaxConnections))
		_ = raw.Close()
		return false
	}

	s.conns[raw] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(raw net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, raw)
}

func (s *Server) handle(raw net.Conn) {
	defer s.wg.Done()
	defer s.untrack(raw)

	conn := tls.Server(raw, s.tlsConfig)

	hsCtx, cancel := context.WithTimeout(s.ctx, s.config.HandshakeTimeout)
	err := conn.HandshakeContext(hsCtx)
	cancel()
	if err != nil {
		s.logger.Debug("tls handshake failed",
			slog.String("peer", raw.RemoteAddr().String()),
			slog.String("error", err.Error()))
		_ = raw.Close()
		return
	}

	// Wake blocked reads on shutdown so handlers see the cancelled context
	stop := context.AfterFunc(s.ctx, func() {
		_ = raw.SetReadDeadline(time.Now())
	})
	defer stop()

	s.handler(s.ctx, conn)
}

// ConnectionCount returns the number of connections being served
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown stops accepting, cancels handlers and waits for them to finish.
// Connections still open when the shutdown timeout or ctx expires are
// closed forcibly.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.listener
	s.mu.Unlock()

	s.logger.Info("shutting down TLS server")

	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("failed to close listener", slog.String("error", err.Error()))
		}
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	select {
	case <-done:
		s.logger.Info("TLS server stopped")
		return nil
	case <-shutdownCtx.Done():
	}

	s.mu.Lock()
	remaining := len(s.conns)
	for raw := range s.conns {
		_ = raw.Close()
	}
	s.mu.Unlock()

	s.logger.Warn("forced connections closed", slog.Int("connections", remaining))
	<-done
	return fmt.Errorf("shutdown error: %w", shutdownCtx.Err())
}

// Addr returns the bound address, or the configured one before Listen
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}
