package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mcoot/tlschat/internal/api"
	"github.com/mcoot/tlschat/internal/chat"
	"github.com/mcoot/tlschat/internal/config"
	"github.com/mcoot/tlschat/internal/dependencies/clock"
	"github.com/mcoot/tlschat/internal/dependencies/random"
	"github.com/mcoot/tlschat/internal/middleware"
	"github.com/mcoot/tlschat/internal/services/auth"
	"github.com/mcoot/tlschat/internal/storage"
	"github.com/mcoot/tlschat/internal/storage/memory"
	redisstorage "github.com/mcoot/tlschat/internal/storage/redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.CredentialStore

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	AuthService *auth.Service
	Registry    chat.Registry
	Supervisor  *chat.Supervisor

	logger  *slog.Logger
	closers []func() error
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// ConnConfig holds per-connection I/O settings (optional)
	// If zero value, defaults to chat.DefaultConnConfig()
	ConnConfig chat.ConnConfig
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// RegistryType selects the session registry ("locked" or "hub")
	// If empty, defaults to "locked"
	RegistryType string
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var (
		store   storage.CredentialStore
		closers []func() error
	)
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = config.StorageTypeMemory
	}

	switch storageType {
	case config.StorageTypeMemory:
		store = memory.New()
	case config.StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
		closers = append(closers, redisStore.Close)
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	authCfg := cfg.AuthConfig
	if authCfg.BcryptCost == 0 {
		authCfg = auth.DefaultConfig()
	}

	connCfg := cfg.ConnConfig
	if connCfg == (chat.ConnConfig{}) {
		connCfg = chat.DefaultConnConfig()
	}

	registry, closeRegistry, err := newRegistry(cfg.RegistryType, logger)
	if err != nil {
		return nil, errors.Join(err, closeAll(closers))
	}
	if closeRegistry != nil {
		closers = append(closers, closeRegistry)
	}

	app := newWithDependencies(store, registry, clock.New(), random.New(), authCfg, connCfg, logger)
	app.closers = closers
	return app, nil
}

// newRegistry builds the configured registry. The hub's event loop is
// started here and stopped by the returned closer.
func newRegistry(registryType string, logger *slog.Logger) (chat.Registry, func() error, error) {
	switch registryType {
	case "", config.RegistryTypeLocked:
		return chat.NewLockedRegistry(), nil, nil
	case config.RegistryTypeHub:
		hub := chat.NewHub(logger)
		go hub.Run()
		return hub, func() error {
			hub.Close()
			return nil
		}, nil
	default:
		return nil, nil, fmt.Errorf("invalid RegistryType %q: must be 'locked' or 'hub'", registryType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.CredentialStore,
	registry chat.Registry,
	clk clock.Clock,
	rnd random.Random,
	authCfg auth.Config,
	connCfg chat.ConnConfig,
	logger *slog.Logger,
) *App {
	authService := auth.New(store, clk, authCfg, logger)
	supervisor := chat.NewSupervisor(authService, registry, clk, rnd, connCfg, logger)

	return &App{
		Storage:     store,
		Clock:       clk,
		Random:      rnd,
		AuthService: authService,
		Registry:    registry,
		Supervisor:  supervisor,
		logger:      logger,
	}
}

// ConnHandler returns the connection handler for the TLS server
func (a *App) ConnHandler() middleware.ConnHandler {
	return middleware.Chain(a.Supervisor.ServeConn,
		middleware.Recovery(a.logger),
		middleware.Logging(a.logger),
	)
}

// AdminRouter returns the admin HTTP API handler
func (a *App) AdminRouter(adminToken string) http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:      a.logger,
		Registry:    a.Registry,
		AuthService: a.AuthService,
		AdminToken:  adminToken,
	})
}

// Close releases resources held by the app
func (a *App) Close() error {
	return closeAll(a.closers)
}

// closeAll runs closers in reverse order of creation
func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
