package cmd

import (
	"github.com/DominicWuest/ecosystem-ci/pkg/ecosystem"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var runSuitesCmd = &cobra.Command{
	Use:   "run-suites [suites...]",
	Short: "Run the given suites against a previously built core library",
	Long: `Run the given suites against the core library checkout left by build-core, or against --release.
If no suites are given, every built-in suite and every suite of the config file is run.`,
	Run: func(cmd *cobra.Command, args []string) {
		checkRelease(cmd)
		s := newSession(cmd)
		names := resolveSuites(cmd, args)

		ctx, cancel := commandContext()
		defer cancel()

		opts := ecosystem.RunOptions{Verify: verify, Release: release}
		if err := ecosystem.DefaultRegistry.RunAll(ctx, s, names, opts); err != nil {
			fail(cmd, err)
		}
		logrus.Infof("All %d suites passed", len(names))
	},
}

func init() {
	rootCmd.AddCommand(runSuitesCmd)
}
