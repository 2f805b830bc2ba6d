package cli

import (
	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List authenticated chat sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result SessionList

			if err := admin.Get(cmd.Context(), "/api/v1/sessions", &result); err != nil {
				return err
			}

			newOutput(cmd).Print(result)
			return nil
		},
	}
}
