package cli

import (
	"crypto/tls"
	"os"
	"time"

	chatclient "github.com/mcoot/tlschat/internal/client"
)

// Config holds CLI configuration
type Config struct {
	ServerAddr string
	AdminURL   string
	AdminToken string
	CAFile     string
	Insecure   bool
	Output     string
	// Timeout bounds connecting, authenticating and waiting for replies
	Timeout time.Duration
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerAddr: getEnvOrDefault("TLSCHAT_SERVER", "localhost:8080"),
		AdminURL:   getEnvOrDefault("TLSCHAT_ADMIN", "http://localhost:8081"),
		AdminToken: os.Getenv("TLSCHAT_ADMIN_TOKEN"),
		CAFile:     os.Getenv("TLSCHAT_CA_FILE"),
		Output:     "text",
		Timeout:    10 * time.Second,
	}
}

// TLSConfig builds the client TLS config for the chat server
func (c *Config) TLSConfig() (*tls.Config, error) {
	return chatclient.TLSConfig(c.ServerAddr, c.CAFile, c.Insecure)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
