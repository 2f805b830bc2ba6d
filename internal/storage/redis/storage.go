package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/tlschat/internal/model"
	"github.com/mcoot/tlschat/internal/storage"
)

// Storage is a Redis-backed implementation of the credential store
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.CredentialStore = (*Storage)(nil)

func (s *Storage) Exists(ctx context.Context, login string) (bool, error) {
	n, err := s.client.Exists(ctx, accountKey(login)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Storage) GetAccount(ctx context.Context, login string) (*model.Account, error) {
	data, err := s.client.Get(ctx, accountKey(login)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}

	var account model.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// InsertIfAbsent relies on SETNX, so concurrent registrations of the same
// login resolve to exactly one winner
func (s *Storage) InsertIfAbsent(ctx context.Context, account *model.Account) (bool, error) {
	data, err := json.Marshal(account)
	if err != nil {
		return false, err
	}

	// No TTL: accounts are never deleted
	return s.client.SetNX(ctx, accountKey(account.Login), data, 0).Result()
}

func (s *Storage) UpdateAccount(ctx context.Context, account *model.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return err
	}

	key := accountKey(account.Login)
	update := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return model.ErrAccountNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	retries := max(s.cfg.MaxUpdateRetries, 1)
	for i := 0; i < retries; i++ {
		err = s.client.Watch(ctx, update, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("update account %q: %w", account.Login, err)
}
