package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/tlschat/internal/dependencies/clock"
	"github.com/mcoot/tlschat/internal/model"
	"github.com/mcoot/tlschat/internal/storage"
)

// Errors
var (
	ErrUnknownLogin     = errors.New("user with such login does not exist")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrLoginExists      = errors.New("user with such login exists")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrEmptyDisplayName = errors.New("display name must not be empty")
)

// Service validates logins and registers accounts against the credential store
type Service struct {
	store  storage.CredentialStore
	clock  clock.Clock
	cost   int
	logger *slog.Logger
}

// Config holds configuration for the auth service
type Config struct {
	// BcryptCost is the work factor for password hashes
	BcryptCost int
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		BcryptCost: bcrypt.DefaultCost,
	}
}

// New creates a new auth Service
func New(store storage.CredentialStore, clock clock.Clock, cfg Config, logger *slog.Logger) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultConfig().BcryptCost
	}
	return &Service{
		store:  store,
		clock:  clock,
		cost:   cfg.BcryptCost,
		logger: logger.With(slog.String("component", "auth")),
	}
}

// Login checks a login/password pair and returns the matching account
func (s *Service) Login(ctx context.Context, login, password string) (*model.Account, error) {
	account, err := s.Account(ctx, login)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidPassword
	}

	return account, nil
}

// Account returns the account for login
func (s *Service) Account(ctx context.Context, login string) (*model.Account, error) {
	account, err := s.store.GetAccount(ctx, login)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return nil, ErrUnknownLogin
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	return account, nil
}

// Register creates a new account. The existence check and the insert happen
// as one atomic store operation, so concurrent registrations of the same
// login cannot both succeed.
func (s *Service) Register(ctx context.Context, login, password, displayName string) (*model.Account, error) {
	// Cheap pre-check so duplicates don't pay for a bcrypt hash
	exists, err := s.store.Exists(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("check login: %w", err)
	}
	if exists {
		return nil, ErrLoginExists
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	account := &model.Account{
		Login:        login,
		PasswordHash: hash,
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	inserted, err := s.store.InsertIfAbsent(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	if !inserted {
		return nil, ErrLoginExists
	}

	s.logger.Info("account registered", slog.String("login", login))
	return account, nil
}

// ChangePassword replaces the password after verifying the current one
func (s *Service) ChangePassword(ctx context.Context, login, currentPassword, newPassword string) error {
	account, err := s.Login(ctx, login, currentPassword)
	if err != nil {
		return err
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}

	account.PasswordHash = hash
	account.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	s.logger.Info("password changed", slog.String("login", login))
	return nil
}

// ChangeDisplayName updates the name shown next to the account's messages
func (s *Service) ChangeDisplayName(ctx context.Context, login, displayName string) (*model.Account, error) {
	if displayName == "" {
		return nil, ErrEmptyDisplayName
	}

	account, err := s.Account(ctx, login)
	if err != nil {
		return nil, err
	}

	account.DisplayName = displayName
	account.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}

	return account, nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
