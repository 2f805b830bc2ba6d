package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mcoot/tlschat/internal/model"
	"github.com/mcoot/tlschat/internal/protocol"
	"github.com/mcoot/tlschat/internal/services/auth"
)

// Authenticator validates and registers accounts
type Authenticator interface {
	Login(ctx context.Context, login, password string) (*model.Account, error)
	Register(ctx context.Context, login, password, displayName string) (*model.Account, error)
}

// Ensure auth.Service implements Authenticator
var _ Authenticator = (*auth.Service)(nil)

// AuthState is the outcome of the credential exchange
type AuthState int

const (
	StateAwaitingCredentials AuthState = iota
	StateLoginOK
	StateRegisterOK
)

func (s AuthState) String() string {
	switch s {
	case StateAwaitingCredentials:
		return "awaiting_credentials"
	case StateLoginOK:
		return "login_ok"
	case StateRegisterOK:
		return "register_ok"
	default:
		return "unknown"
	}
}

// AuthResult describes an authenticated connection
type AuthResult struct {
	State       AuthState
	Login       string
	DisplayName string
}

// Authenticate reads credential messages from conn until one succeeds.
// Rejected credentials are answered and the exchange continues. Read
// failures, failed replies and back-end errors end it with an error.
// On success the connection's identity is set.
func Authenticate(ctx context.Context, conn *Conn, authn Authenticator, logger *slog.Logger) (AuthResult, error) {
	for {
		payload, err := conn.ReadMessage(ctx)
		if err != nil {
			return AuthResult{}, fmt.Errorf("read credentials: %w", err)
		}

		result, reply, err := attempt(ctx, authn, payload)
		if err != nil {
			return AuthResult{}, err
		}

		if err := conn.Send(reply); err != nil {
			return AuthResult{}, fmt.Errorf("send auth reply: %w", err)
		}

		if result.State != StateAwaitingCredentials {
			conn.setIdentity(result.Login, result.DisplayName)
			logger.Info("connection authenticated",
				slog.String("conn_id", conn.ID()),
				slog.String("login", result.Login),
				slog.String("state", result.State.String()))
			return result, nil
		}

		logger.Debug("credentials rejected",
			slog.String("conn_id", conn.ID()),
			slog.String("reply", reply))
	}
}

// attempt handles one credential message and returns the reply to send.
// A non-nil error means the exchange cannot continue.
func attempt(ctx context.Context, authn Authenticator, payload string) (AuthResult, string, error) {
	creds, err := protocol.ParseCredentials(payload)
	if err != nil {
		return AuthResult{}, protocol.ReplyInvalidFormat, nil
	}

	var (
		account *model.Account
		state   AuthState
	)
	switch creds.Kind {
	case protocol.KindRegister:
		account, err = authn.Register(ctx, creds.Login, creds.Password, creds.DisplayName)
		state = StateRegisterOK
	default:
		account, err = authn.Login(ctx, creds.Login, creds.Password)
		state = StateLoginOK
	}

	if err != nil {
		reply, ok := rejectionReply(err)
		if !ok {
			return AuthResult{}, "", fmt.Errorf("%s: %w", creds.Kind, err)
		}
		return AuthResult{}, reply, nil
	}

	return AuthResult{
		State:       state,
		Login:       account.Login,
		DisplayName: account.DisplayName,
	}, protocol.ReplyCorrect, nil
}

// rejectionReply maps a credential rejection to its wire reply
func rejectionReply(err error) (string, bool) {
	switch {
	case errors.Is(err, auth.ErrUnknownLogin):
		return protocol.ReplyUnknownLogin, true
	case errors.Is(err, auth.ErrInvalidPassword):
		return protocol.ReplyInvalidPassword, true
	case errors.Is(err, auth.ErrLoginExists):
		return protocol.ReplyLoginExists, true
	case errors.Is(err, auth.ErrPasswordTooLong):
		return protocol.ReplyInvalidFormat, true
	default:
		return "", false
	}
}
