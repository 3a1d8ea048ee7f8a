package cmd

import (
	"github.com/DominicWuest/ecosystem-ci/pkg/ecosystem"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [suites...]",
	Short: "Build the core library and run the given suites against it",
	Long: `Build the core library and run the given suites against it.
If no suites are given, every built-in suite and every suite of the config file is run.
With --release, the published version is used and the core library is neither cloned nor built.`,
	Run: runRun,
}

func runRun(cmd *cobra.Command, args []string) {
	checkRelease(cmd)
	s := newSession(cmd)
	names := resolveSuites(cmd, args)

	ctx, cancel := commandContext()
	defer cancel()

	if release == "" {
		if err := s.SetupCore(ctx, coreRef); err != nil {
			fail(cmd, err)
		}
		if err := s.BuildCore(ctx, verify); err != nil {
			fail(cmd, err)
		}
	}

	opts := ecosystem.RunOptions{Verify: verify, Release: release}
	if err := ecosystem.DefaultRegistry.RunAll(ctx, s, names, opts); err != nil {
		fail(cmd, err)
	}
	logrus.Infof("All %d suites passed", len(names))
}

func init() {
	rootCmd.AddCommand(runCmd)
}
