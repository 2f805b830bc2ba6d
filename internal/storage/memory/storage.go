package memory

import (
	"context"
	"sync"

	"github.com/mcoot/tlschat/internal/model"
	"github.com/mcoot/tlschat/internal/storage"
)

// Storage is an in-memory implementation of the credential store
type Storage struct {
	mu       sync.RWMutex
	accounts map[string]model.Account
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		accounts: make(map[string]model.Account),
	}
}

// Ensure Storage implements the interface
var _ storage.CredentialStore = (*Storage)(nil)

func (s *Storage) Exists(ctx context.Context, login string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[login]
	return ok, nil
}

// GetAccount returns a copy so callers can't mutate stored state
func (s *Storage) GetAccount(ctx context.Context, login string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[login]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return &account, nil
}

func (s *Storage) InsertIfAbsent(ctx context.Context, account *model.Account) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.Login]; ok {
		return false, nil
	}
	s.accounts[account.Login] = *account
	return true, nil
}

func (s *Storage) UpdateAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.Login]; !ok {
		return model.ErrAccountNotFound
	}
	s.accounts[account.Login] = *account
	return nil
}

// Count returns the number of stored accounts
func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}
