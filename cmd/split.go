package cmd

import (
	"github.com/spf13/cobra"

	"github.com/swz-git/bob/pkg/split"
)

// NewSplitCmd creates the split subcommand.
func NewSplitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "split <dir>",
		Short: "Split an assembled build directory into platform-specific directories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return split.Split(args[0])
		},
	}
}
