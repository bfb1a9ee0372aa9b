package cmd

import (
	"github.com/ory/viper"
	"github.com/spf13/cobra"

	"github.com/swz-git/bob/pkg/build"
	"github.com/swz-git/bob/pkg/docker"
)

// NewBuildCmd creates the build subcommand.
func NewBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <manifest>",
		Short: "Build the projects a bob.toml declares",
		Long: `Builds every project declared by the given manifest and its dependency
manifests into the output directory.  Projects whose source hash matches
the previous build are reused rather than rebuilt.`,
		Args:    cobra.ExactArgs(1),
		PreRunE: bindEnv("out-dir"),
		RunE: func(cmd *cobra.Command, args []string) error {
			b := build.New(
				viper.GetString("out-dir"),
				build.WithDriver(docker.CLIDriver{Verbose: viper.GetBool("verbose")}),
				build.WithVerbose(viper.GetBool("verbose")),
			)
			return b.Build(cmd.Context(), args[0])
		},
	}

	cmd.Flags().StringP("out-dir", "o", "./bob_build", "directory to assemble builds into ($BOB_OUT_DIR)")
	return cmd
}
