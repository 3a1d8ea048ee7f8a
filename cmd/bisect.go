package cmd

import (
	"context"

	"github.com/DominicWuest/ecosystem-ci/pkg/ecosystem"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var bisectGood string

var bisectCmd = &cobra.Command{
	Use:   "bisect --good <ref> [suites...]",
	Short: "Find the core library commit that broke the given suites",
	Long: `Find the core library commit that broke the given suites.
The core library is checked out at the reference given by --repo, --branch, --tag and --commit, which has to be bad.
Every probe rebuilds the core library and runs all given suites against it, a failure marks the commit as bad.
Release and documentation commits are skipped without building them.`,
	Run: func(cmd *cobra.Command, args []string) {
		if release != "" {
			fail(cmd, &ecosystem.ConfigurationError{Msg: "--release can not be used for bisecting"})
		}
		s := newSession(cmd)
		names := resolveSuites(cmd, args)

		ctx, cancel := commandContext()
		defer cancel()

		if err := s.SetupCore(ctx, coreRef); err != nil {
			fail(cmd, err)
		}

		// The first probe prepares the suites' working copies, later ones reuse them
		firstRun := true
		probe := func(ctx context.Context) error {
			opts := ecosystem.RunOptions{Verify: verify && firstRun, Prepared: !firstRun}
			firstRun = false
			if err := s.BuildCore(ctx, opts.Verify); err != nil {
				return err
			}
			return ecosystem.DefaultRegistry.RunAll(ctx, s, names, opts)
		}

		logrus.Info("Checking that the starting commit is bad")
		err := probe(ctx)
		if err == nil {
			logrus.Info("Initial check passed, nothing to bisect")
			return
		}
		logrus.Infof("Initial check failed as expected - %v", err)

		oc, err := s.Bisector().Bisect(ctx, bisectGood, probe)
		if err != nil {
			logrus.Fatalf("Bisection failed - %v", err)
		}
		if oc == nil {
			logrus.Warn("Bisection did not identify an offending commit")
			return
		}
		logrus.Infof("Offending commit: %s", oc.Commit)
		logrus.Infof("Commit message: %q", oc.CommitMessage)
		logrus.Infof("Author: %s, Date: %s", oc.CommitAuthor, oc.CommitDate)
	},
}

func init() {
	rootCmd.AddCommand(bisectCmd)

	bisectCmd.Flags().StringVar(&bisectGood, "good", "", "Last known good reference of the core library, e.g. a previous tag")
	bisectCmd.MarkFlagRequired("good")
}
