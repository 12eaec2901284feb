package cmd

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nextlevelbuilder/phishclaw/internal/matrix"
)

func loginCmd() *cobra.Command {
	var homeserver string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Obtain an access token via password login",
		Long:  "Logs in with username and password and prints the access token to export as PHISHCLAW_ACCESS_TOKEN. The password is read from the terminal, never from arguments.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(os.Stderr, "Password: ")
			password, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			result, err := matrix.PasswordLogin(ctx, homeserver, args[0], string(password))
			if err != nil {
				return err
			}

			fmt.Printf("Logged in as %s\n", result.UserID)
			fmt.Printf("export PHISHCLAW_ACCESS_TOKEN=%s\n", result.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&homeserver, "homeserver", "https://matrix.org", "homeserver URL")
	return cmd
}
