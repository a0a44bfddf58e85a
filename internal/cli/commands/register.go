package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vidflow-dev/vidflow/internal/cli/client"
)

// NewRegisterCmd creates the register command
func NewRegisterCmd(g *Globals) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a vidflow account",
		Long: `Create a vidflow account.

An activation link is emailed to the address. Activate the account with
'vidflow activate <uid> <token>' before logging in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			email = firstNonEmpty(email, os.Getenv(envEmail))
			password = firstNonEmpty(password, os.Getenv(envPassword))
			if email == "" {
				return fmt.Errorf("email is required (use --email flag or %s env var)", envEmail)
			}

			confirm := password
			if password == "" {
				var err error
				if password, err = g.readPassword(out, "Password"); err != nil {
					return err
				}
				if confirm, err = g.readPassword(out, "Confirm password"); err != nil {
					return err
				}
			}

			sess, err := g.session()
			if err != nil {
				return err
			}
			return runRegister(cmd.Context(), out, sess, client.RegisterRequest{
				Email:             email,
				Password:          password,
				ConfirmedPassword: confirm,
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set VIDFLOW_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set VIDFLOW_PASSWORD, will prompt if not provided)")

	return cmd
}

func runRegister(ctx context.Context, out io.Writer, sess accountService, req client.RegisterRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	if err := validate(out, req); err != nil {
		return err
	}

	res := sess.Register(ctx, req)
	if err := envelopeError(out, "registration failed", res); err != nil {
		return err
	}

	fmt.Fprintln(out, "✓ Account created!")
	if res.Message != "" {
		fmt.Fprintf(out, "  %s\n", res.Message)
	}
	return nil
}
