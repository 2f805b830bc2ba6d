package cli

import (
	"github.com/spf13/cobra"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account management via the admin API",
	}

	cmd.AddCommand(newAccountGetCmd())
	cmd.AddCommand(newAccountRenameCmd())
	cmd.AddCommand(newAccountPasswdCmd())

	return cmd
}

func newAccountGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <login>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Account
			if err := admin.Get(cmd.Context(), accountPath(args[0]), &result); err != nil {
				return err
			}

			newOutput(cmd).Print(result)
			return nil
		},
	}
}

func newAccountRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <login> <display-name>",
		Short: "Change an account's display name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"display_name": args[1]}

			var result Account
			if err := admin.Patch(cmd.Context(), accountPath(args[0]), body, &result); err != nil {
				return err
			}

			newOutput(cmd).Print(result)
			return nil
		},
	}
}

func newAccountPasswdCmd() *cobra.Command {
	var current, next string

	cmd := &cobra.Command{
		Use:   "passwd <login>",
		Short: "Change an account's password",
		Long:  "Change an account's password. Passwords not given as flags are prompted for.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if current == "" {
				if current, err = promptPassword(cmd.ErrOrStderr(), "Current password: "); err != nil {
					return err
				}
			}
			if next == "" {
				if next, err = promptPassword(cmd.ErrOrStderr(), "New password: "); err != nil {
					return err
				}
			}

			body := map[string]string{
				"current_password": current,
				"new_password":     next,
			}
			if err := admin.Post(cmd.Context(), accountPath(args[0])+"/password", body, nil); err != nil {
				return err
			}

			newOutput(cmd).PrintMessage("Password changed")
			return nil
		},
	}

	cmd.Flags().StringVar(&current, "current", "", "Current password")
	cmd.Flags().StringVar(&next, "new", "", "New password")

	return cmd
}
