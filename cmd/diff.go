package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/swz-git/bob/pkg/diff"
)

// NewDiffCmd creates the diff subcommand, writing a serialized diff of two
// directories to stdout.
func NewDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Produce a binary diff between two directories on stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			old, new := args[0], args[1]
			for _, dir := range []string{old, new} {
				if _, err := os.Stat(dir); err != nil {
					return fmt.Errorf("directory %q: %w", dir, err)
				}
			}

			d, err := diff.Build(old, new)
			if err != nil {
				return err
			}
			serialized, err := d.Serialize()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(serialized)
			return err
		},
	}
}

// NewDiffApplyCmd creates the diff-apply subcommand, applying a serialized
// diff from stdin to a directory.
func NewDiffApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff-apply <dir>",
		Short: "Apply a binary diff from stdin to a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if _, err := os.Stat(dir); err != nil {
				return fmt.Errorf("directory %q: %w", dir, err)
			}

			serialized, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			d, err := diff.Deserialize(serialized)
			if err != nil {
				return err
			}
			return d.Apply(dir, true)
		},
	}
}
