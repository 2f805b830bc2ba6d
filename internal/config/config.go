// Package config assembles server configuration from defaults and the
// environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/tlschat/internal/api"
	"github.com/mcoot/tlschat/internal/chat"
	"github.com/mcoot/tlschat/internal/server"
	"github.com/mcoot/tlschat/internal/services/auth"
	redisstorage "github.com/mcoot/tlschat/internal/storage/redis"
)

// Storage and registry selectors
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"

	RegistryTypeLocked = "locked"
	RegistryTypeHub    = "hub"
)

// ErrMissingTLSFiles is returned when no certificate or key is configured
var ErrMissingTLSFiles = errors.New("TLS_CERT_FILE and TLS_KEY_FILE are required")

// Config is the complete server configuration
type Config struct {
	Server      server.Config
	TLSCertFile string
	TLSKeyFile  string

	StorageType string
	Redis       redisstorage.Config

	RegistryType string
	Conn         chat.ConnConfig
	Auth         auth.Config

	// Admin.Addr empty disables the admin API
	Admin      api.ServerConfig
	AdminToken string

	LogLevel slog.Level
}

// Default returns the configuration used when no environment is set
func Default() Config {
	return Config{
		Server:       server.DefaultConfig(),
		StorageType:  StorageTypeMemory,
		Redis:        redisstorage.DefaultConfig(),
		RegistryType: RegistryTypeLocked,
		Conn:         chat.DefaultConnConfig(),
		Auth:         auth.DefaultConfig(),
		Admin:        api.DefaultServerConfig(),
		LogLevel:     slog.LevelInfo,
	}
}

// FromEnv overlays environment variables on Default. All invalid values
// are reported together.
func FromEnv() (Config, error) {
	cfg := Default()
	var errs []error

	cfg.Server.Host = getEnvOrDefault("CHAT_HOST", cfg.Server.Host)
	cfg.Server.Port = intEnv("CHAT_PORT", cfg.Server.Port, &errs)
	cfg.Server.MaxConnections = intEnv("MAX_CONNECTIONS", cfg.Server.MaxConnections, &errs)
	cfg.Server.HandshakeTimeout = durationEnv("HANDSHAKE_TIMEOUT", cfg.Server.HandshakeTimeout, &errs)
	cfg.Server.ShutdownTimeout = durationEnv("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout, &errs)

	cfg.TLSCertFile = os.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = os.Getenv("TLS_KEY_FILE")

	cfg.StorageType = strings.ToLower(getEnvOrDefault("STORAGE_TYPE", cfg.StorageType))
	switch cfg.StorageType {
	case StorageTypeMemory:
	case StorageTypeRedis:
		cfg.Redis.URL = os.Getenv("REDIS_URL")
		if cfg.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL required when STORAGE_TYPE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_TYPE: unknown value %q", cfg.StorageType))
	}

	cfg.RegistryType = strings.ToLower(getEnvOrDefault("REGISTRY_TYPE", cfg.RegistryType))
	if cfg.RegistryType != RegistryTypeLocked && cfg.RegistryType != RegistryTypeHub {
		errs = append(errs, fmt.Errorf("REGISTRY_TYPE: unknown value %q", cfg.RegistryType))
	}

	mode, err := chat.ParseReadMode(os.Getenv("READ_MODE"))
	if err != nil {
		errs = append(errs, fmt.Errorf("READ_MODE: %w", err))
	}
	cfg.Conn.ReadMode = mode
	cfg.Conn.PollInterval = durationEnv("POLL_INTERVAL", cfg.Conn.PollInterval, &errs)
	cfg.Conn.WriteTimeout = durationEnv("WRITE_TIMEOUT", cfg.Conn.WriteTimeout, &errs)

	cfg.Auth.BcryptCost = intEnv("BCRYPT_COST", cfg.Auth.BcryptCost, &errs)
	if cfg.Auth.BcryptCost < bcrypt.MinCost || cfg.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST: must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, cfg.Auth.BcryptCost))
		cfg.Auth.BcryptCost = auth.DefaultConfig().BcryptCost
	}

	// Set but empty disables the admin API
	if addr, ok := os.LookupEnv("ADMIN_ADDR"); ok {
		cfg.Admin.Addr = addr
	}
	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")

	if level, ok := os.LookupEnv("LOG_LEVEL"); ok && level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}

	return cfg, errors.Join(errs...)
}

// Validate checks settings needed to start serving
func (c Config) Validate() error {
	if c.TLSCertFile == "" || c.TLSKeyFile == "" {
		return ErrMissingTLSFiles
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func intEnv(key string, defaultVal int, errs *[]error) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid non-negative integer %q", key, val))
		return defaultVal
	}
	return n
}

func durationEnv(key string, defaultVal time.Duration, errs *[]error) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, val))
		return defaultVal
	}
	return d
}
