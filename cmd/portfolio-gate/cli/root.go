// Package cli implements the portfolio-gate command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var cfgFile string

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	return newRootCmd(version, commit, date).Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio-gate",
		Short: "Security backend for a personal portfolio site",
		Long: `Portfolio Gate: the security backend behind a personal portfolio site.

It manages encrypted API keys with a full audit trail, admin sessions,
Turnstile bot verification with per-day analytics, and short-lived
download tokens for protected files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; env vars override)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newUserCmd())
	cmd.AddCommand(newKeygenCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}
