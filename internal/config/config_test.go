package config

import (
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/tlschat/internal/chat"
)

var envKeys = []string{
	"CHAT_HOST", "CHAT_PORT", "MAX_CONNECTIONS", "HANDSHAKE_TIMEOUT", "SHUTDOWN_TIMEOUT",
	"TLS_CERT_FILE", "TLS_KEY_FILE", "STORAGE_TYPE", "REDIS_URL", "REGISTRY_TYPE",
	"READ_MODE", "POLL_INTERVAL", "WRITE_TIMEOUT", "BCRYPT_COST", "ADMIN_ADDR",
	"ADMIN_TOKEN", "LOG_LEVEL",
}

// clearEnv unsets every variable FromEnv reads for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, StorageTypeMemory, cfg.StorageType)
	assert.Equal(t, RegistryTypeLocked, cfg.RegistryType)
	assert.Equal(t, chat.ReadPolling, cfg.Conn.ReadMode)
	assert.Equal(t, 100*time.Millisecond, cfg.Conn.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.Conn.WriteTimeout)
	assert.Equal(t, 0, cfg.Server.MaxConnections)
	assert.Equal(t, "localhost:8081", cfg.Admin.Addr)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.ErrorIs(t, cfg.Validate(), ErrMissingTLSFiles)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAT_HOST", "127.0.0.1")
	t.Setenv("CHAT_PORT", "9443")
	t.Setenv("TLS_CERT_FILE", "/etc/tlschat/cert.pem")
	t.Setenv("TLS_KEY_FILE", "/etc/tlschat/key.pem")
	t.Setenv("STORAGE_TYPE", "Redis")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("REGISTRY_TYPE", "hub")
	t.Setenv("READ_MODE", "blocking")
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("MAX_CONNECTIONS", "64")
	t.Setenv("ADMIN_ADDR", ":9090")
	t.Setenv("ADMIN_TOKEN", "tok")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("BCRYPT_COST", "4")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9443, cfg.Server.Port)
	assert.Equal(t, StorageTypeRedis, cfg.StorageType)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Equal(t, RegistryTypeHub, cfg.RegistryType)
	assert.Equal(t, chat.ReadBlocking, cfg.Conn.ReadMode)
	assert.Equal(t, 250*time.Millisecond, cfg.Conn.PollInterval)
	assert.Equal(t, 3*time.Second, cfg.Conn.WriteTimeout)
	assert.Equal(t, 64, cfg.Server.MaxConnections)
	assert.Equal(t, ":9090", cfg.Admin.Addr)
	assert.Equal(t, "tok", cfg.AdminToken)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 4, cfg.Auth.BcryptCost)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvEmptyAdminAddrDisables(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADMIN_ADDR", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Empty(t, cfg.Admin.Addr)
}

func TestFromEnvRedisRequiresURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_TYPE", "redis")
	t.Setenv("REDIS_URL", "")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "REDIS_URL")
}

func TestFromEnvReportsAllInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAT_PORT", "http")
	t.Setenv("POLL_INTERVAL", "soon")
	t.Setenv("STORAGE_TYPE", "postgres")
	t.Setenv("REGISTRY_TYPE", "ring")
	t.Setenv("READ_MODE", "async")
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("MAX_CONNECTIONS", "-1")

	_, err := FromEnv()
	require.Error(t, err)
	for _, key := range []string{"CHAT_PORT", "POLL_INTERVAL", "STORAGE_TYPE", "REGISTRY_TYPE", "READ_MODE", "LOG_LEVEL", "MAX_CONNECTIONS"} {
		assert.ErrorContains(t, err, key)
	}
}

func TestFromEnvBcryptCostRange(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{value: "4"},
		{value: "31"},
		{value: "3", wantErr: true},
		{value: "32", wantErr: true},
		{value: "0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("BCRYPT_COST", tt.value)

			cfg, err := FromEnv()
			if tt.wantErr {
				assert.ErrorContains(t, err, "BCRYPT_COST")
				assert.Equal(t, Default().Auth.BcryptCost, cfg.Auth.BcryptCost)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.value, strconv.Itoa(cfg.Auth.BcryptCost))
		})
	}
}
