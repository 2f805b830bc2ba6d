package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcoot/tlschat/internal/dependencies/clock"
	"github.com/mcoot/tlschat/internal/protocol"
)

// timestampLayout is the HH:MM:SS prefix of broadcast messages
const timestampLayout = "15:04:05"

// FormatMessage renders a chat line as "[HH:MM:SS]<name>:<message>"
func FormatMessage(at time.Time, displayName, message string) string {
	return "[" + at.Format(timestampLayout) + "]" + displayName + ":" + message
}

// Broadcaster relays each message from an authenticated connection to
// every registered connection
type Broadcaster struct {
	registry Registry
	clock    clock.Clock
	logger   *slog.Logger
}

// NewBroadcaster creates a Broadcaster
func NewBroadcaster(registry Registry, clock clock.Clock, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		clock:    clock,
		logger:   logger.With(slog.String("component", "broadcaster")),
	}
}

// Run relays messages from conn until it sends the exit command, which is
// echoed back and ends the loop with nil. A read failure is returned as is.
func (b *Broadcaster) Run(ctx context.Context, conn *Conn) error {
	for {
		msg, err := conn.ReadMessage(ctx)
		if err != nil {
			return err
		}

		switch msg {
		case "":
			continue
		case protocol.ExitCommand:
			if err := conn.Send(protocol.ExitCommand); err != nil {
				b.logger.Debug("exit echo failed",
					slog.String("conn_id", conn.ID()),
					slog.String("error", err.Error()))
			}
			return nil
		default:
			b.Broadcast(conn, msg)
		}
	}
}

// Broadcast sends message from sender to every registered connection,
// including the sender. Failed recipients are logged and skipped. It
// returns the number of successful deliveries.
func (b *Broadcaster) Broadcast(sender *Conn, message string) int {
	line := FormatMessage(b.clock.Now(), sender.DisplayName(), message)

	targets := b.registry.Snapshot()
	delivered := 0
	for _, target := range targets {
		if err := target.Send(line); err != nil {
			b.logger.Warn("broadcast delivery failed",
				slog.String("conn_id", target.ID()),
				slog.String("peer", target.PeerAddr()),
				slog.String("error", err.Error()))
			continue
		}
		delivered++
	}

	b.logger.Debug("message broadcast",
		slog.String("sender", sender.ID()),
		slog.Int("delivered", delivered),
		slog.Int("targets", len(targets)))
	return delivered
}
