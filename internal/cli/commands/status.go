package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewStatusCmd creates the status command
func NewStatusCmd(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether the stored session is still valid",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := g.session()
			if err != nil {
				return err
			}
			return runStatus(cmd.Context(), cmd.OutOrStdout(), sess)
		},
	}
}

func runStatus(ctx context.Context, out io.Writer, sess accountService) error {
	if !sess.Restore() {
		fmt.Fprintln(out, "Not logged in.")
		return errNotAuthenticated
	}

	res := sess.ValidateSession(ctx)
	if !res.Success {
		fmt.Fprintf(out, "Session is no longer valid: %s\n", res.Message)
		return errNotAuthenticated
	}

	fmt.Fprintln(out, "✓ Logged in")
	if res.Data != nil {
		fmt.Fprintf(out, "  User: %s\n", displayName(res.Data.FirstName, res.Data.LastName, res.Data.Email))
		if res.Data.IsActive != nil && !*res.Data.IsActive {
			fmt.Fprintln(out, "  Account is not activated")
		}
	}
	return nil
}
