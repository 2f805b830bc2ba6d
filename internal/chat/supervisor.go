package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"syscall"

	"github.com/mcoot/tlschat/internal/dependencies/clock"
	"github.com/mcoot/tlschat/internal/dependencies/random"
	"github.com/mcoot/tlschat/internal/protocol"
)

// connIDLength is the length of generated connection identifiers
const connIDLength = 8

// Supervisor drives one connection through authentication and chat
type Supervisor struct {
	authn       Authenticator
	registry    Registry
	broadcaster *Broadcaster
	clock       clock.Clock
	random      random.Random
	connCfg     ConnConfig
	logger      *slog.Logger
}

// NewSupervisor creates a Supervisor
func NewSupervisor(
	authn Authenticator,
	registry Registry,
	clock clock.Clock,
	random random.Random,
	connCfg ConnConfig,
	logger *slog.Logger,
) *Supervisor {
	return &Supervisor{
		authn:       authn,
		registry:    registry,
		broadcaster: NewBroadcaster(registry, clock, logger),
		clock:       clock,
		random:      random,
		connCfg:     connCfg,
		logger:      logger.With(slog.String("component", "supervisor")),
	}
}

// Registry returns the registry connections are added to
func (s *Supervisor) Registry() Registry {
	return s.registry
}

// ServeConn serves nc until the client exits, the connection fails or ctx
// is cancelled. The connection is always closed on return and removed from
// the registry if it was added.
func (s *Supervisor) ServeConn(ctx context.Context, nc net.Conn) {
	conn := NewConn(s.random.String(connIDLength, random.IDAlphabet), nc, s.clock.Now(), s.connCfg)
	logger := s.logger.With(
		slog.String("conn_id", conn.ID()),
		slog.String("peer", conn.PeerAddr()))

	defer s.close(conn, logger)

	result, err := Authenticate(ctx, conn, s.authn, logger)
	if err != nil {
		s.logEnd(logger, "authentication ended", err)
		return
	}

	s.registry.Add(conn)
	defer func() {
		removed := s.registry.RemoveMatching(SameAddress(conn))
		logger.Debug("connection unregistered", slog.Int("removed", removed))
	}()

	logger.Info("chat session started",
		slog.String("login", result.Login),
		slog.String("display_name", result.DisplayName))

	if err := s.broadcaster.Run(ctx, conn); err != nil {
		s.logEnd(logger, "chat session ended", err)
		return
	}
	logger.Info("chat session exited")
}

func (s *Supervisor) close(conn *Conn, logger *slog.Logger) {
	if err := conn.Close(); err != nil {
		if isBenignCloseError(err) {
			logger.Debug("connection already closed", slog.String("error", err.Error()))
			return
		}
		logger.Warn("failed to close connection", slog.String("error", err.Error()))
	}
}

// logEnd logs why a session stopped. Disconnects and cancellation are
// routine; anything else is a warning.
func (s *Supervisor) logEnd(logger *slog.Logger, msg string, err error) {
	if isDisconnect(err) {
		logger.Info(msg, slog.String("reason", err.Error()))
		return
	}
	logger.Warn(msg, slog.String("error", err.Error()))
}

func isDisconnect(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, net.ErrClosed) ||
		protocol.IsConnectionReset(err)
}

func isBenignCloseError(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		protocol.IsConnectionReset(err)
}
