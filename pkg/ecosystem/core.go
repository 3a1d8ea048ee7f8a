package ecosystem

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// A CorePackage is a package published from the core library's repository
type CorePackage struct {
	Name string `yaml:"name"` // The published package name
	Path string `yaml:"path"` // The package directory relative to the repository root
}

// CoreConfig describes the core library every suite is tested against.
type CoreConfig struct {
	Name string `yaml:"name" default:"vite"` // Also the directory name of the checkout inside the workspace

	Repo    string `yaml:"repo" default:"vitejs/vite"`
	Branch  string `yaml:"branch" default:"main"`
	Shallow bool   `yaml:"shallow"`

	// The packages suites are redirected to. The first one is the core package itself, to which --release applies.
	Packages []CorePackage `yaml:"packages"`

	// Dependencies of the core package whose version suites are forced to use as well
	PinDependencies []string `yaml:"pinDependencies"`

	Install TaskSpec `yaml:"install"` // Defaults to a frozen install
	Build   TaskSpec `yaml:"build"`
	Test    TaskSpec `yaml:"test"` // Only run when verifying
}

// DefaultCoreConfig returns the configuration for testing vite
func DefaultCoreConfig() CoreConfig {
	return CoreConfig{
		Name: "vite",

		Repo:   "vitejs/vite",
		Branch: DefaultBranch,

		Packages: []CorePackage{
			{Name: "vite", Path: "packages/vite"},
			{Name: "@vitejs/plugin-legacy", Path: "packages/plugin-legacy"},
		},
		PinDependencies: []string{"rollup"},

		Build: TaskSpec{Task: Raw("build")},
		Test:  TaskSpec{Task: Sequence{Raw("test-unit"), Raw("test-serve"), Raw("test-build")}},
	}
}

// corePackage returns the name of the package --release applies to
func (c CoreConfig) corePackage() (CorePackage, error) {
	if len(c.Packages) == 0 {
		return CorePackage{}, configErrorf("core %s declares no packages", c.Name)
	}
	return c.Packages[0], nil
}

// SetupCore synchronizes the core library checkout. Empty fields of ref fall back to the core config.
func (s *Session) SetupCore(ctx context.Context, ref RepoRef) error {
	if ref.Repo == "" {
		ref.Repo = s.Core.Repo
	}
	if ref.Branch == "" {
		ref.Branch = s.Core.Branch
	}
	ref.Shallow = ref.Shallow || s.Core.Shallow

	log := s.logger("core")
	if err := s.synchronizer(log).Sync(ctx, ref, s.CoreDir()); err != nil {
		return err
	}
	if commit, err := HeadCommit(s.CoreDir()); err == nil {
		log.Infof("%s checked out at %s", s.Core.Name, commit)
	}
	return nil
}

// BuildCore installs and builds the core library checkout, running its tests as well if verify is set.
func (s *Session) BuildCore(ctx context.Context, verify bool) error {
	dir := s.CoreDir()
	log := s.logger("core")

	agent, err := DetectAgent(dir)
	if err != nil {
		return err
	}
	manifest, err := LoadManifest(dir)
	if err != nil {
		return errors.Join(fmt.Errorf("failed to read manifest of %s", s.Core.Name), err)
	}
	tr := &taskRunner{runner: s.Runner, env: s.Env, dir: dir, agent: agent, manifest: manifest}

	log.Infof("Building %s with %s", s.Core.Name, agent)
	if s.Core.Install.Task != nil {
		if err := tr.run(ctx, s.Core.Install.Task); err != nil {
			return err
		}
	} else {
		install, err := Command(agent, VerbFrozen)
		if err != nil {
			return err
		}
		if _, err := s.Runner.Run(ctx, dir, s.Env, install); err != nil {
			return err
		}
	}
	if err := tr.run(ctx, s.Core.Build.Task); err != nil {
		return err
	}
	if verify {
		log.Infof("Verifying %s", s.Core.Name)
		if err := tr.run(ctx, s.Core.Test.Task); err != nil {
			return err
		}
	}
	return nil
}

// coreDependencyVersion returns the version the core package declares for the dependency name
func (s *Session) coreDependencyVersion(name string) (string, bool) {
	pkg, err := s.Core.corePackage()
	if err != nil {
		return "", false
	}
	manifest, err := LoadManifest(filepath.Join(s.CoreDir(), pkg.Path))
	if err != nil {
		s.logger("core").Debugf("Could not read manifest of %s - %v", pkg.Name, err)
		return "", false
	}
	for _, block := range []string{"dependencies", "devDependencies"} {
		if version, ok := manifest.Lookup(block, name); ok {
			return version, true
		}
	}
	return "", false
}
