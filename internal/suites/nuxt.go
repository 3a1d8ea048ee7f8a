package suites

import "github.com/DominicWuest/ecosystem-ci/pkg/ecosystem"

func init() {
	ecosystem.DefaultRegistry.RegisterDescriptor(ecosystem.SuiteDescriptor{
		Name: "nuxt",

		RepoRef: ecosystem.RepoRef{Repo: "nuxt/nuxt", Branch: "main", Shallow: true},

		Build:      ecosystem.Sequence{ecosystem.Raw("dev:prepare"), ecosystem.Raw("build")},
		BeforeTest: ecosystem.Raw("pnpm playwright-core install chromium"),
		Test: ecosystem.Sequence{
			ecosystem.ScriptRef{Name: "test:fixtures"},
			ecosystem.ScriptRef{Name: "test:types"},
		},
	})
}
