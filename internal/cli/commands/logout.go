package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := g.session()
			if err != nil {
				return err
			}
			runLogout(cmd.OutOrStdout(), sess)
			return nil
		},
	}
}

func runLogout(out io.Writer, sess accountService) {
	sess.Logout()
	fmt.Fprintln(out, "✓ Logged out")
}
