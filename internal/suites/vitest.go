package suites

import "github.com/DominicWuest/ecosystem-ci/pkg/ecosystem"

func init() {
	ecosystem.DefaultRegistry.RegisterDescriptor(ecosystem.SuiteDescriptor{
		Name: "vitest",

		RepoRef: ecosystem.RepoRef{Repo: "vitest-dev/vitest", Branch: "main", Shallow: true},

		Build:      ecosystem.Raw("build"),
		BeforeTest: ecosystem.Raw("pnpm playwright install chromium"),
		Test:       ecosystem.ScriptRef{Name: "test:ci", Args: []string{"--reporter=dot"}},
	})
}
