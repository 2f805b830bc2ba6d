package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg   *Config
	admin *AdminClient
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "chatctl",
		Short: "CLI tool for the TLS chat server",
		Long: `chatctl talks to the TLS chat server.

The chat and send commands speak the chat protocol directly over TLS.
The health, sessions and account commands use the server's admin API.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Output != "text" && cfg.Output != "json" {
				return fmt.Errorf("unknown output format %q", cfg.Output)
			}
			admin = NewAdminClient(cfg.AdminURL, cfg.AdminToken)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerAddr, "server", cfg.ServerAddr, "Chat server address (env: TLSCHAT_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.AdminURL, "admin", cfg.AdminURL, "Admin API URL (env: TLSCHAT_ADMIN)")
	rootCmd.PersistentFlags().StringVar(&cfg.AdminToken, "admin-token", cfg.AdminToken, "Admin API bearer token (env: TLSCHAT_ADMIN_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&cfg.CAFile, "ca-file", cfg.CAFile, "PEM file of trusted CAs (env: TLSCHAT_CA_FILE)")
	rootCmd.PersistentFlags().BoolVar(&cfg.Insecure, "insecure", cfg.Insecure, "Skip TLS certificate verification")
	rootCmd.PersistentFlags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Timeout for connecting and waiting on replies")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")

	// Add subcommands
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newSendCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newAccountCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newOutput(cmd *cobra.Command) *Output {
	return NewOutput(cfg.Output, cmd.OutOrStdout(), cmd.ErrOrStderr())
}
