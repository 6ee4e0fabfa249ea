package cmd

import (
	"encoding/base64"
	"fmt"

	"github.com/example/slotchaser/internal/crypto"
	"github.com/gorilla/securecookie"
	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Generate SLOTCHASER_SECRET_KEY and cookie key values (base64)",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := crypto.NewKey()
			if err != nil {
				return err
			}
			hash := securecookie.GenerateRandomKey(32)
			block := securecookie.GenerateRandomKey(32)
			if hash == nil || block == nil {
				return fmt.Errorf("generating cookie keys: not enough randomness")
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "export SLOTCHASER_SECRET_KEY=%s\n", base64.StdEncoding.EncodeToString(secret))
			fmt.Fprintf(out, "export SLOTCHASER_COOKIE_HASH_KEY=%s\n", base64.StdEncoding.EncodeToString(hash))
			fmt.Fprintf(out, "export SLOTCHASER_COOKIE_BLOCK_KEY=%s\n", base64.StdEncoding.EncodeToString(block))
			return nil
		},
	}
}
