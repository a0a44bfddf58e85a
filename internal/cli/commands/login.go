package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vidflow-dev/vidflow/internal/cli/client"
	"github.com/vidflow-dev/vidflow/internal/cli/userconfig"
)

// NewLoginCmd creates the login command
func NewLoginCmd(g *Globals) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to vidflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			// Check for environment variables (useful for CI/CD)
			email = firstNonEmpty(email, os.Getenv(envEmail))
			password = firstNonEmpty(password, os.Getenv(envPassword))

			if email == "" {
				return fmt.Errorf("email is required (use --email flag or %s env var)", envEmail)
			}
			if password == "" {
				var err error
				if password, err = g.readPassword(out, "Password"); err != nil {
					return err
				}
			}

			sess, err := g.session()
			if err != nil {
				return err
			}
			if err := runLogin(cmd.Context(), out, sess, email, password); err != nil {
				return err
			}

			// Remember an explicitly chosen server for later commands
			if g.APIURL != "" {
				if err := userconfig.SetAPIURL(g.APIURL); err != nil {
					fmt.Fprintf(out, "Warning: failed to save API URL: %v\n", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set VIDFLOW_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set VIDFLOW_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(ctx context.Context, out io.Writer, sess accountService, email, password string) error {
	form := client.LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := validate(out, form); err != nil {
		return err
	}

	fmt.Fprintf(out, "Logging in as %s...\n", form.Email)

	res := sess.Login(ctx, form.Email, form.Password)
	if err := envelopeError(out, "login failed", res); err != nil {
		return err
	}

	fmt.Fprintln(out, "✓ Login successful!")
	if res.Data != nil {
		fmt.Fprintf(out, "  User: %s\n", displayName(res.Data.FirstName, res.Data.LastName, res.Data.Email))
	}
	return nil
}

func displayName(first, last, email string) string {
	name := strings.TrimSpace(first + " " + last)
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s (%s)", name, email)
}
