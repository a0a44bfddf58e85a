package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewActivateCmd creates the activate command
func NewActivateCmd(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <uid> <token>",
		Short: "Activate an account using the emailed link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := g.session()
			if err != nil {
				return err
			}
			return runActivate(cmd.Context(), cmd.OutOrStdout(), sess, args[0], args[1])
		},
	}
}

func runActivate(ctx context.Context, out io.Writer, sess accountService, uid, token string) error {
	res := sess.ActivateAccount(ctx, uid, token)
	if err := envelopeError(out, "activation failed", res); err != nil {
		return err
	}

	fmt.Fprintf(out, "✓ %s\n", firstNonEmpty(res.Message, "Account activated."))
	return nil
}
