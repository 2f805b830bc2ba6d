package cli

import (
	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check admin API health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result HealthResult

			if err := admin.Get(cmd.Context(), "/api/v1/health", &result); err != nil {
				return err
			}

			newOutput(cmd).Print(result)
			return nil
		},
	}
}
