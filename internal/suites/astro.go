package suites

import (
	"context"
	"os"
	"path/filepath"

	"github.com/DominicWuest/ecosystem-ci/pkg/ecosystem"
)

// Tests depending on a dev server restart are flaky in CI
var astroFlakyTests = []string{
	"packages/astro/test/units/dev/restart.test.js",
}

func init() {
	ecosystem.Register("astro", func(ctx context.Context, s *ecosystem.Session, opts ecosystem.RunOptions) error {
		dir := filepath.Join(s.Workspace, "astro")
		_, err := s.RunSuite(ctx, ecosystem.SuiteDescriptor{
			Name: "astro",

			RepoRef: ecosystem.RepoRef{Repo: "withastro/astro", Branch: "main", Shallow: true},

			// astro pins its own rollup
			Overrides: ecosystem.Overrides{"rollup": false},

			Build: ecosystem.Raw("build:ci"),
			BeforeTest: ecosystem.Action(func(context.Context) error {
				for _, test := range astroFlakyTests {
					if err := os.Remove(filepath.Join(dir, test)); err != nil && !os.IsNotExist(err) {
						return err
					}
				}
				return nil
			}),
			Test: ecosystem.Raw("test:vite-ci"),
		}, opts)
		return err
	})
}
