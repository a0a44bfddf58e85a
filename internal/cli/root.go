package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vidflow-dev/vidflow/internal/cli/commands"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the command tree around g
func NewRootCmd(g *commands.Globals) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vidflow",
		Short: "vidflow - browse and stream the vidflow catalog",
		Long: `vidflow CLI - your account and the video catalog from the terminal.

Sign in once with 'vidflow login'; credentials are kept in the OS keyring and
refreshed automatically.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&g.APIURL, "api-url", "", "API base URL (or set VIDFLOW_API_URL)")
	rootCmd.PersistentFlags().StringVar(&g.LogLevel, "log-level", "", "Log level: debug, info, warn, error (or set VIDFLOW_LOG_LEVEL)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vidflow version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewRegisterCmd(g))
	rootCmd.AddCommand(commands.NewLoginCmd(g))
	rootCmd.AddCommand(commands.NewLogoutCmd(g))
	rootCmd.AddCommand(commands.NewStatusCmd(g))
	rootCmd.AddCommand(commands.NewForgotPasswordCmd(g))
	rootCmd.AddCommand(commands.NewResetPasswordCmd(g))
	rootCmd.AddCommand(commands.NewActivateCmd(g))
	rootCmd.AddCommand(commands.NewVideosCmd(g))
	rootCmd.AddCommand(commands.NewStreamCmd(g))

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	if err := NewRootCmd(commands.NewGlobals()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
