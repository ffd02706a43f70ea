package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/secfolio/portfolio-gate/internal/secrets"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an encryption key",
		Long:  "Generate a random key suitable for PORTFOLIO_GATE_ENCRYPTION_KEY.",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secrets.GenerateKey(32)
			if err != nil {
				return err
			}
			fmt.Println(key)
			return nil
		},
	}
}
