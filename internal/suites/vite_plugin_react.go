package suites

import "github.com/DominicWuest/ecosystem-ci/pkg/ecosystem"

func init() {
	ecosystem.DefaultRegistry.RegisterDescriptor(ecosystem.SuiteDescriptor{
		Name: "vite-plugin-react",

		RepoRef: ecosystem.RepoRef{Repo: "vitejs/vite-plugin-react", Branch: "main", Shallow: true},

		Build: ecosystem.Raw("build"),
		Test:  ecosystem.Raw("test"),
	})
}
