package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	chatclient "github.com/mcoot/tlschat/internal/client"
)

// sessionFlags are the credential flags shared by chat and send
type sessionFlags struct {
	login    string
	password string
	name     string
}

func (f *sessionFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.login, "login", "", "Account login (required)")
	cmd.Flags().StringVar(&f.password, "password", "", "Account password (prompted when omitted)")
	cmd.Flags().StringVar(&f.name, "name", "", "Register a new account with this display name instead of logging in")
	_ = cmd.MarkFlagRequired("login")
}

// connect dials the chat server and authenticates. A non-empty name
// registers; otherwise it logs in.
func (f *sessionFlags) connect(cmd *cobra.Command) (*chatclient.Client, error) {
	password := f.password
	if password == "" {
		var err error
		if password, err = promptPassword(cmd.ErrOrStderr(), "Password: "); err != nil {
			return nil, err
		}
	}

	tlsConfig, err := cfg.TLSConfig()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	defer cancel()

	c, err := chatclient.Dial(ctx, cfg.ServerAddr, tlsConfig)
	if err != nil {
		return nil, err
	}

	if f.name != "" {
		err = c.Register(ctx, f.login, password, f.name)
	} else {
		err = c.Login(ctx, f.login, password)
	}
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("authenticate as %s: %w", f.login, err)
	}

	return c, nil
}
