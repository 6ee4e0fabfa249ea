package cmd

import (
	"fmt"

	"github.com/example/slotchaser/internal/requests"
	"github.com/spf13/cobra"
)

func newSampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sample [path]",
		Short: "Write a request file template to edit (default " + requests.DefaultSampleFile + ")",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := requests.DefaultSampleFile
			if len(args) == 1 {
				path = args[0]
			}
			if err := requests.Write(path, requests.Sample()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
}
