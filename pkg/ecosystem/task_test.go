package ecosystem

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func testTaskRunner(t *testing.T, agent Agent, manifest string) (*taskRunner, *scriptedRunner) {
	m, err := ParseManifest("package.json", []byte(manifest))
	require.NoError(t, err)
	runner := &scriptedRunner{}
	return &taskRunner{runner: runner, dir: "/project", agent: agent, manifest: m}, runner
}

func TestRawScriptCandidate(t *testing.T) {
	values := []struct {
		raw       Raw
		script    string
		candidate bool
	}{
		{"build", "build", true},
		{"build --flag", "build", true},
		{"build --mode=ci -w", "build", true},
		{"build test foo bar", "", false},
		{"build --mode ci", "", false},
		{"", "", false},
		{"   ", "", false},
	}

	for _, v := range values {
		script, ok := v.raw.scriptCandidate()
		assert.Equal(t, v.candidate, ok, "Wrong candidacy of %q", v.raw)
		assert.Equal(t, v.script, script, "Wrong script of %q", v.raw)
	}
}

func TestRunTask(t *testing.T) {
	const withBuild = `{"scripts": {"build": "vite build", "test:ci": "vitest run"}}`
	const withoutBuild = `{"scripts": {}}`

	values := []struct {
		name     string
		agent    Agent
		manifest string
		task     Task
		expected []string
	}{
		{"Script with flags runs through the manager", AgentPnpm, withBuild, Raw("build --flag"), []string{"pnpm run build --flag"}},
		{"npm separates script arguments", AgentNpm, withBuild, Raw("build --watch"), []string{"npm run build -- --watch"}},
		{"Missing script runs raw", AgentPnpm, withoutBuild, Raw("build --flag"), []string{"build --flag"}},
		{"Multiple words always run raw", AgentPnpm, withBuild, Raw("build test foo bar"), []string{"build test foo bar"}},
		{"Shell command runs raw", AgentYarn, withBuild, Raw("pnpm playwright install chromium"), []string{"pnpm playwright install chromium"}},
		{"Script reference with arguments", AgentYarnBerry, withBuild, ScriptRef{Name: "test:ci", Args: []string{"--reporter=dot"}}, []string{"yarn run test:ci --reporter=dot"}},
		{"Sequence runs in order", AgentPnpm, withBuild, Sequence{Raw("build"), Raw("echo done"), ScriptRef{Name: "test:ci"}}, []string{"pnpm run build", "echo done", "pnpm run test:ci"}},
		{"Nil task does nothing", AgentPnpm, withBuild, nil, nil},
		{"Nested nil task does nothing", AgentPnpm, withBuild, Sequence{nil, Raw("build")}, []string{"pnpm run build"}},
	}

	for _, v := range values {
		t.Run(v.name, func(t *testing.T) {
			tr, runner := testTaskRunner(t, v.agent, v.manifest)
			require.NoError(t, tr.run(context.Background(), v.task))
			assert.Equal(t, v.expected, runner.commands)
			for _, dir := range runner.dirs {
				assert.Equal(t, "/project", dir)
			}
		})
	}

	t.Run("Missing script reference is a configuration error", func(t *testing.T) {
		tr, runner := testTaskRunner(t, AgentPnpm, withoutBuild)
		err := tr.run(context.Background(), ScriptRef{Name: "build"})
		assert.True(t, IsConfigurationError(err), "Wrong error: %v", err)
		assert.Empty(t, runner.commands)
	})
	t.Run("Action is invoked", func(t *testing.T) {
		tr, _ := testTaskRunner(t, AgentPnpm, withBuild)
		called := false
		require.NoError(t, tr.run(context.Background(), Action(func(context.Context) error {
			called = true
			return nil
		})))
		assert.True(t, called)
	})
	t.Run("Sequence stops at the first failure", func(t *testing.T) {
		tr, runner := testTaskRunner(t, AgentPnpm, withBuild)
		failure := errors.New("failure")
		err := tr.run(context.Background(), Sequence{
			Raw("echo first"),
			Action(func(context.Context) error { return failure }),
			Raw("echo never"),
		})
		assert.ErrorIs(t, err, failure)
		assert.Equal(t, []string{"echo first"}, runner.commands)
	})
}

func TestDecodeTask(t *testing.T) {
	var tasks struct {
		Missing  TaskSpec `yaml:"missing"`
		Empty    TaskSpec `yaml:"empty"`
		Raw      TaskSpec `yaml:"raw"`
		Script   TaskSpec `yaml:"script"`
		Sequence TaskSpec `yaml:"sequence"`
	}
	yml := `
empty: ~
raw: build --mode ci
script:
  script: test:ci
  args: ["--run"]
sequence:
  - build
  - script: test
  - [lint, typecheck]
`
	require.NoError(t, yaml.Unmarshal([]byte(yml), &tasks))

	assert.Nil(t, tasks.Missing.Task)
	assert.Nil(t, tasks.Empty.Task)
	assert.Equal(t, Raw("build --mode ci"), tasks.Raw.Task)
	assert.Equal(t, ScriptRef{Name: "test:ci", Args: []string{"--run"}}, tasks.Script.Task)
	assert.Equal(t, Sequence{Raw("build"), ScriptRef{Name: "test"}, Sequence{Raw("lint"), Raw("typecheck")}}, tasks.Sequence.Task)

	t.Run("Mapping without script", func(t *testing.T) {
		var spec TaskSpec
		assert.Error(t, yaml.Unmarshal([]byte("args: [x]"), &spec))
	})
}
