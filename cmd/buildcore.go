package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var buildCoreCmd = &cobra.Command{
	Use:   "build-core",
	Short: "Clone and build the core library",
	Long: `Clone the core library at the reference given by --repo, --branch, --tag and --commit and build it.
With --verify its own tests are run as well.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := newSession(cmd)

		ctx, cancel := commandContext()
		defer cancel()

		if err := s.SetupCore(ctx, coreRef); err != nil {
			fail(cmd, err)
		}
		if err := s.BuildCore(ctx, verify); err != nil {
			fail(cmd, err)
		}
		logrus.Infof("Built %s in %s", s.Core.Name, s.CoreDir())
	},
}

func init() {
	rootCmd.AddCommand(buildCoreCmd)
}
