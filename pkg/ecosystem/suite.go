package ecosystem

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// A SuiteDescriptor is the recipe for testing one downstream project against the core library.
// Descriptors are never modified by the runner.
type SuiteDescriptor struct {
	Name string // The suite name, also the default working directory inside the workspace

	RepoRef

	Dir   string // Working directory relative to the workspace, defaults to Name
	Agent Agent  // Pins the package manager instead of detecting it

	Overrides Overrides // Extra overrides applied next to the core library ones

	BeforeInstall Task
	BeforeBuild   Task
	BeforeTest    Task
	Build         Task
	Test          Task // Nil skips testing, and verification along with it
}

// RunOptions are the per-run options passed to every suite
type RunOptions struct {
	// Verify runs install, build and test on the project's own dependencies before overriding them,
	// proving the project is healthy on its own.
	Verify bool

	// Release overrides the core package with a published version instead of the local build
	Release string

	// Prepared skips synchronizing the repository, reusing the working directory as it is
	Prepared bool
}

// A SuiteResult is returned by a successful [Session.RunSuite]
type SuiteResult struct {
	Dir string // The working directory of the suite
}

// ValidateRelease checks that release is a version that could have been published
func ValidateRelease(release string) error {
	if _, err := semver.StrictNewVersion(strings.TrimPrefix(release, "v")); err != nil {
		return configErrorf("release %q is not a valid version - %v", release, err)
	}
	return nil
}

// suiteDir returns the absolute working directory of a suite
func (s *Session) suiteDir(d SuiteDescriptor) string {
	dir := d.Dir
	if dir == "" {
		dir = d.Name
	}
	if dir == "" {
		dir = strings.TrimSuffix(path.Base(d.Repo), ".git")
	}
	return filepath.Join(s.Workspace, dir)
}

// RunSuite synchronizes the suite's repository, optionally verifies it, overrides its dependencies with the core library
// and builds and tests it.
func (s *Session) RunSuite(ctx context.Context, d SuiteDescriptor, opts RunOptions) (*SuiteResult, error) {
	dir := s.suiteDir(d)
	log := s.logger("suite:" + d.Name)

	if !opts.Prepared {
		if err := s.synchronizer(log).Sync(ctx, d.RepoRef, dir); err != nil {
			return nil, err
		}
	} else {
		log.Debugf("Reusing prepared directory %s", dir)
	}

	agent := d.Agent
	if agent == "" {
		detected, err := DetectAgent(dir)
		if err != nil {
			return nil, err
		}
		agent = detected
	}
	if !agent.Valid() {
		_, err := ParseAgent(string(agent))
		return nil, err
	}

	manifest, err := LoadManifest(dir)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to read manifest of suite %s", d.Name), err)
	}
	tr := &taskRunner{runner: s.Runner, env: s.Env, dir: dir, agent: agent, manifest: manifest}

	if opts.Verify && d.Test != nil {
		log.Info("Verifying suite on its own dependencies")
		install, err := Command(agent, VerbFrozen)
		if err != nil {
			return nil, err
		}
		if _, err := s.Runner.Run(ctx, dir, s.Env, install); err != nil {
			return nil, err
		}
		if err := s.buildAndTest(ctx, tr, d, true); err != nil {
			return nil, err
		}
	}

	overrides, err := s.resolveOverrides(d, opts)
	if err != nil {
		return nil, err
	}

	if err := tr.run(ctx, d.BeforeInstall); err != nil {
		return nil, err
	}
	// beforeInstall hooks commonly edit the manifest
	if manifest, err = LoadManifest(dir); err != nil {
		return nil, err
	}
	tr.manifest = manifest

	if err := s.overrideEngine(log).Apply(ctx, dir, manifest, overrides); err != nil {
		return nil, err
	}

	if err := s.buildAndTest(ctx, tr, d, d.Test != nil); err != nil {
		return nil, err
	}
	log.Infof("Suite %s passed", d.Name)

	return &SuiteResult{Dir: dir}, nil
}

// buildAndTest runs the build hooks and, if test is set, the test hooks of d
func (s *Session) buildAndTest(ctx context.Context, tr *taskRunner, d SuiteDescriptor, test bool) error {
	tasks := []Task{d.BeforeBuild, d.Build}
	if test {
		tasks = append(tasks, d.BeforeTest, d.Test)
	}
	for _, task := range tasks {
		if err := tr.run(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

// resolveOverrides combines the suite's overrides with the core library ones.
// An explicit release wins over the local build, but must not conflict with an explicit override of the core package.
func (s *Session) resolveOverrides(d SuiteDescriptor, opts RunOptions) (Overrides, error) {
	overrides := maps.Clone(d.Overrides)
	if overrides == nil {
		overrides = make(Overrides)
	}

	core, err := s.Core.corePackage()
	if err != nil {
		return nil, err
	}

	if opts.Release != "" {
		if existing, ok := overrides[core.Name].(string); ok && existing != opts.Release {
			return nil, configErrorf("conflicting overrides.%s=%s and --release=%s config. Use either one or the other", core.Name, existing, opts.Release)
		}
		overrides[core.Name] = opts.Release
		return overrides, nil
	}

	for _, pkg := range s.Core.Packages {
		// An explicit entry, including false, opts out of the local build
		if _, set := overrides[pkg.Name]; !set {
			overrides[pkg.Name] = filepath.Join(s.CoreDir(), pkg.Path)
		}
	}
	for _, dep := range s.Core.PinDependencies {
		if _, set := overrides[dep]; set {
			continue
		}
		if version, ok := s.coreDependencyVersion(dep); ok {
			overrides[dep] = version
		}
	}
	return overrides, nil
}
