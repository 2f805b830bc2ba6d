package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	chatclient "github.com/mcoot/tlschat/internal/client"
	"github.com/mcoot/tlschat/internal/protocol"
)

func newSendCmd() *cobra.Command {
	var flags sessionFlags

	cmd := &cobra.Command{
		Use:   "send <message...>",
		Short: "Send a single message and leave",
		Long: `Authenticate, send one message, wait for the server to broadcast it
back and then exit. The broadcast line is printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := strings.Join(args, " ")
			if msg == "" || msg == protocol.ExitCommand {
				return errors.New("message must be non-empty and not the exit command")
			}

			c, err := flags.connect(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
			defer cancel()

			if err := c.Send(msg); err != nil {
				return fmt.Errorf("send: %w", err)
			}
			line, err := c.WaitFor(ctx, func(m string) bool {
				return chatclient.IsChatLine(m, msg)
			})
			if err != nil {
				return fmt.Errorf("wait for broadcast: %w", err)
			}

			newOutput(cmd).PrintMessage(line)
			return c.Exit(ctx, nil)
		},
	}

	flags.bind(cmd)

	return cmd
}
