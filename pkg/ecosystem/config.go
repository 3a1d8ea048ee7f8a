package ecosystem

import (
	"errors"
	"fmt"
	"io"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type suiteYaml struct {
	Name string `yaml:"name"`

	Repo    string `yaml:"repo"`
	Branch  string `yaml:"branch" default:"main"`
	Tag     string `yaml:"tag"`
	Commit  string `yaml:"commit"`
	Shallow *bool  `yaml:"shallow" default:"true"`

	Dir   string `yaml:"dir"`
	Agent string `yaml:"agent"`

	Overrides map[string]any `yaml:"overrides"`

	BeforeInstall TaskSpec `yaml:"beforeInstall"`
	BeforeBuild   TaskSpec `yaml:"beforeBuild"`
	BeforeTest    TaskSpec `yaml:"beforeTest"`
	Build         TaskSpec `yaml:"build"`
	Test          TaskSpec `yaml:"test"`
}

type configYaml struct {
	Workspace string      `yaml:"workspace" default:"workspace"`
	Core      CoreConfig  `yaml:"core"`
	Suites    []suiteYaml `yaml:"suites"`
}

// A Config is the content of a config file
type Config struct {
	Workspace string
	Core      CoreConfig
	Suites    []SuiteDescriptor
}

// DefaultConfig returns the config used when no config file is present
func DefaultConfig() *Config {
	return &Config{Workspace: "workspace", Core: DefaultCoreConfig()}
}

// GetConfig reads a config in yaml format from a reader.
// Core settings not present in the config keep the values of [DefaultCoreConfig].
func GetConfig(r io.Reader) (*Config, error) {
	config := configYaml{Core: DefaultCoreConfig()}

	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := defaults.Set(&config); err != nil {
		return nil, err
	}

	result := &Config{Workspace: config.Workspace, Core: config.Core}
	if _, err := result.Core.corePackage(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for i, suite := range config.Suites {
		if err := defaults.Set(&suite); err != nil {
			return nil, err
		}
		if suite.Name == "" {
			return nil, configErrorf("suite %d has no name", i)
		}
		if suite.Repo == "" {
			return nil, configErrorf("suite %s has no repo", suite.Name)
		}
		if seen[suite.Name] {
			return nil, configErrorf("suite %s is declared twice", suite.Name)
		}
		seen[suite.Name] = true

		var agent Agent
		if suite.Agent != "" {
			var err error
			if agent, err = ParseAgent(suite.Agent); err != nil {
				return nil, errors.Join(fmt.Errorf("suite %s", suite.Name), err)
			}
		}

		result.Suites = append(result.Suites, SuiteDescriptor{
			Name: suite.Name,

			RepoRef: RepoRef{
				Repo:    suite.Repo,
				Branch:  suite.Branch,
				Tag:     suite.Tag,
				Commit:  suite.Commit,
				Shallow: *suite.Shallow,
			},

			Dir:   suite.Dir,
			Agent: agent,

			Overrides: suite.Overrides,

			BeforeInstall: suite.BeforeInstall.Task,
			BeforeBuild:   suite.BeforeBuild.Task,
			BeforeTest:    suite.BeforeTest.Task,
			Build:         suite.Build.Task,
			Test:          suite.Test.Task,
		})
	}

	return result, nil
}
