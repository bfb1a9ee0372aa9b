package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swz-git/bob/pkg/dirhash"
)

// NewHashCmd creates the hash subcommand.  The same fingerprint drives the
// incremental rebuild decision.
func NewHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <dir>",
		Short: "Print the build fingerprint of a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := dirhash.Hash(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%016x\n", h)
			return nil
		},
	}
}
