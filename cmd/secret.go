package cmd

import (
	"fmt"

	"github.com/example/slotchaser/internal/config"
	"github.com/example/slotchaser/internal/crypto"
	"github.com/spf13/cobra"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Seal passwords for request files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "seal <plaintext>",
		Short: "Print an enc: value for a request file password, using SLOTCHASER_SECRET_KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if cfg.SecretKey == nil {
				return fmt.Errorf("SLOTCHASER_SECRET_KEY is not set (run `slotchaser keys`)")
			}
			a, err := crypto.New(cfg.SecretKey)
			if err != nil {
				return err
			}
			sealed, err := a.Seal(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	})
	return cmd
}
