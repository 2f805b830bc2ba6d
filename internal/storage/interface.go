package storage

import (
	"context"

	"github.com/mcoot/tlschat/internal/model"
)

// CredentialStore defines the interface for account persistence.
// Every method is a single critical section; InsertIfAbsent is the only
// compound check-then-act operation and must be atomic.
type CredentialStore interface {
	// Exists reports whether an account with the given login is present
	Exists(ctx context.Context, login string) (bool, error)

	// GetAccount returns the account for a login, or model.ErrAccountNotFound
	GetAccount(ctx context.Context, login string) (*model.Account, error)

	// InsertIfAbsent stores the account unless its login is taken.
	// Returns false without modifying anything if the login already exists.
	InsertIfAbsent(ctx context.Context, account *model.Account) (bool, error)

	// UpdateAccount replaces an existing account, or returns model.ErrAccountNotFound
	UpdateAccount(ctx context.Context, account *model.Account) error
}
