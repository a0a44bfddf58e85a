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

// NewForgotPasswordCmd creates the forgot-password command
func NewForgotPasswordCmd(g *Globals) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Email a password reset link",
		RunE: func(cmd *cobra.Command, args []string) error {
			email = firstNonEmpty(email, os.Getenv(envEmail))
			if email == "" {
				return fmt.Errorf("email is required (use --email flag or %s env var)", envEmail)
			}

			sess, err := g.session()
			if err != nil {
				return err
			}
			return runForgotPassword(cmd.Context(), cmd.OutOrStdout(), sess, email)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set VIDFLOW_EMAIL)")

	return cmd
}

func runForgotPassword(ctx context.Context, out io.Writer, sess accountService, email string) error {
	form := client.PasswordResetRequest{Email: strings.TrimSpace(email)}
	if err := validate(out, form); err != nil {
		return err
	}

	res := sess.ForgotPassword(ctx, form.Email)
	if err := envelopeError(out, "password reset failed", res); err != nil {
		return err
	}

	fmt.Fprintf(out, "✓ %s\n", firstNonEmpty(res.Message, "Check your email for the reset link."))
	return nil
}

// NewResetPasswordCmd creates the reset-password command
func NewResetPasswordCmd(g *Globals) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "reset-password <uid> <token>",
		Short: "Set a new password using the emailed reset link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			password = firstNonEmpty(password, os.Getenv(envPassword))
			confirm := password
			if password == "" {
				var err error
				if password, err = g.readPassword(out, "New password"); err != nil {
					return err
				}
				if confirm, err = g.readPassword(out, "Confirm new password"); err != nil {
					return err
				}
			}

			sess, err := g.session()
			if err != nil {
				return err
			}
			return runResetPassword(cmd.Context(), out, sess, args[0], args[1], client.PasswordConfirmRequest{
				NewPassword:     password,
				ConfirmPassword: confirm,
			})
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "New password (or set VIDFLOW_PASSWORD, will prompt if not provided)")

	return cmd
}

func runResetPassword(ctx context.Context, out io.Writer, sess accountService, uid, token string, form client.PasswordConfirmRequest) error {
	if err := validate(out, form); err != nil {
		return err
	}

	res := sess.ResetPassword(ctx, uid, token, form.NewPassword, form.ConfirmPassword)
	if err := envelopeError(out, "password reset failed", res); err != nil {
		return err
	}

	fmt.Fprintf(out, "✓ %s\n", firstNonEmpty(res.Message, "Password has been reset."))
	fmt.Fprintln(out, "  Log in with: vidflow login")
	return nil
}
