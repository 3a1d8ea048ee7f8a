package suites

import "github.com/DominicWuest/ecosystem-ci/pkg/ecosystem"

func init() {
	ecosystem.DefaultRegistry.RegisterDescriptor(ecosystem.SuiteDescriptor{
		Name: "vitepress",

		RepoRef: ecosystem.RepoRef{Repo: "vuejs/vitepress", Branch: "main", Shallow: true},

		Build:      ecosystem.Raw("build"),
		BeforeTest: ecosystem.Raw("pnpm playwright install chromium"),
		Test:       ecosystem.Sequence{ecosystem.Raw("test:unit"), ecosystem.Raw("test:e2e")},
	})
}
