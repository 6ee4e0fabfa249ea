package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/example/slotchaser/internal/auth"
	"github.com/spf13/cobra"
)

func newOperatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage the operator console login",
	}
	cmd.AddCommand(newOperatorHashCmd())
	return cmd
}

func newOperatorHashCmd() *cobra.Command {
	var password string

	c := &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for SLOTCHASER_OPERATOR_PASSWORD_HASH",
		Long:  "Print a bcrypt hash for SLOTCHASER_OPERATOR_PASSWORD_HASH. Without --password the first line of stdin is used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				sc := bufio.NewScanner(cmd.InOrStdin())
				if sc.Scan() {
					password = strings.TrimSpace(sc.Text())
				}
				if err := sc.Err(); err != nil {
					return err
				}
			}
			if password == "" {
				return errors.New("password required")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "export SLOTCHASER_OPERATOR_PASSWORD_HASH='%s'\n", hash)
			return nil
		},
	}

	c.Flags().StringVar(&password, "password", "", "password (read from stdin when empty)")
	return c
}
