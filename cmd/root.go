// Package cmd defines the bob command tree.
package cmd

import (
	"strings"

	"github.com/ory/viper"
	"github.com/spf13/cobra"
)

// RootCommandConfig carries static metadata into the command tree.
type RootCommandConfig struct {
	Name    string
	Version string
}

// NewRootCmd creates the root of the command tree: the command name,
// globally available flags and the subcommands.  It has no action of its
// own; running the binary with no arguments prints usage.
func NewRootCmd(config RootCommandConfig) (*cobra.Command, error) {
	root := &cobra.Command{
		Use:           config.Name,
		Short:         "Build tool for game-bot packs",
		Long:          "bob builds a fleet of bot projects declared in bob.toml manifests,\nreusing prior builds when a project's sources are unchanged, and ships\nthe results as compact binary diffs.",
		Version:       config.Version,
		SilenceErrors: true, // errors are handled explicitly in main
		SilenceUsage:  true, // no usage dump on error
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	// Environment variables prefixed BOB_ map onto flags of the same name.
	viper.AutomaticEnv()
	viper.SetEnvPrefix("bob")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	verbose := viper.GetBool("verbose")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", verbose, "print verbose logs")
	if err := viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose")); err != nil {
		return nil, err
	}

	root.AddCommand(NewBuildCmd())
	root.AddCommand(NewSplitCmd())
	root.AddCommand(NewDiffCmd())
	root.AddCommand(NewDiffApplyCmd())
	root.AddCommand(NewHashCmd())

	return root, nil
}

// bindFunc conforms to the cobra PreRunE signature.
type bindFunc func(*cobra.Command, []string) error

// bindEnv returns a bindFunc that binds env vars to the named flags.
func bindEnv(flags ...string) bindFunc {
	return func(cmd *cobra.Command, args []string) (err error) {
		for _, flag := range flags {
			if err = viper.BindPFlag(flag, cmd.Flags().Lookup(flag)); err != nil {
				return
			}
		}
		return
	}
}
