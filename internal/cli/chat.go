package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	chatclient "github.com/mcoot/tlschat/internal/client"
	"github.com/mcoot/tlschat/internal/protocol"
)

// errServerClosed is returned when the server drops an interactive session
var errServerClosed = errors.New("server closed the connection")

func newChatCmd() *cobra.Command {
	var flags sessionFlags

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Join the chat interactively",
		Long: `Connect to the chat server, authenticate and join the conversation.

Each line read from stdin is sent as one message and every message the
server broadcasts is printed. Type /exit or close stdin to leave.
Pass --name to register a new account instead of logging in.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, &flags)
		},
	}

	flags.bind(cmd)

	return cmd
}

func runChat(cmd *cobra.Command, flags *sessionFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c, err := flags.connect(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	out := newOutput(cmd)
	out.PrintNotice("Connected to %s as %s. Type %s to leave.", cfg.ServerAddr, flags.login, protocol.ExitCommand)

	relayed := make(chan error, 1)
	go func() { relayed <- relayMessages(ctx, c, out) }()

	lines := scanLines(ctx, cmd.InOrStdin())
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				line = protocol.ExitCommand
			}
			if line == "" {
				continue
			}
			if err := c.Send(line); err != nil {
				return fmt.Errorf("send: %w", err)
			}
			if line == protocol.ExitCommand {
				return awaitExit(ctx, relayed)
			}
		case err := <-relayed:
			return err
		case <-ctx.Done():
			_ = c.Send(protocol.ExitCommand)
			return nil
		}
	}
}

// relayMessages prints incoming messages until the exit echo arrives
func relayMessages(ctx context.Context, c *chatclient.Client, out *Output) error {
	for {
		msg, err := c.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || protocol.IsConnectionReset(err) {
				return errServerClosed
			}
			return fmt.Errorf("receive: %w", err)
		}
		if msg == protocol.ExitCommand {
			out.PrintNotice("Disconnected.")
			return nil
		}
		out.PrintMessage(msg)
	}
}

func awaitExit(ctx context.Context, relayed <-chan error) error {
	timer := time.NewTimer(cfg.Timeout)
	defer timer.Stop()

	select {
	case err := <-relayed:
		return err
	case <-timer.C:
		return errors.New("timed out waiting for the server to acknowledge exit")
	case <-ctx.Done():
		return nil
	}
}

// scanLines feeds lines from r into the returned channel, which is closed
// at EOF
func scanLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimRight(scanner.Text(), "\r"):
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
