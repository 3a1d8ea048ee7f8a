package ecosystem

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// A Task is one step of a suite's recipe. It is one of [Raw], [Action], [ScriptRef] or [Sequence].
// A nil Task does nothing.
type Task interface {
	isTask()
}

// Raw is a shell command string.
// A bare word optionally followed by flags, e.g. "build --mode ci", runs as the package.json script of the same name
// if the project defines it, anything else runs verbatim in the shell.
type Raw string

// Action is an arbitrary Go function run in place of a command
type Action func(ctx context.Context) error

// ScriptRef explicitly runs a package.json script with arguments. The script has to exist.
type ScriptRef struct {
	Name string   `yaml:"script"`
	Args []string `yaml:"args"`
}

// Sequence runs its tasks in order, stopping at the first failure
type Sequence []Task

func (Raw) isTask()       {}
func (Action) isTask()    {}
func (ScriptRef) isTask() {}
func (Sequence) isTask()  {}

// scriptCandidate returns the script name raw would run if it is a single word followed only by flags
func (r Raw) scriptCandidate() (string, bool) {
	fields := strings.Fields(string(r))
	if len(fields) == 0 {
		return "", false
	}
	for _, arg := range fields[1:] {
		if !strings.HasPrefix(arg, "-") {
			return "", false
		}
	}
	return fields[0], true
}

// TaskSpec decodes a Task from YAML: a string becomes [Raw], a mapping with a script key a [ScriptRef],
// and a list a [Sequence] of the former.
type TaskSpec struct {
	Task Task
}

func (t *TaskSpec) UnmarshalYAML(node *yaml.Node) error {
	task, err := decodeTask(node)
	if err != nil {
		return err
	}
	t.Task = task
	return nil
}

func decodeTask(node *yaml.Node) (Task, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
		var raw string
		if err := node.Decode(&raw); err != nil {
			return nil, err
		}
		return Raw(raw), nil
	case yaml.MappingNode:
		var ref ScriptRef
		if err := node.Decode(&ref); err != nil {
			return nil, err
		}
		if ref.Name == "" {
			return nil, fmt.Errorf("line %d: task mapping requires a script", node.Line)
		}
		return ref, nil
	case yaml.SequenceNode:
		seq := make(Sequence, 0, len(node.Content))
		for _, child := range node.Content {
			task, err := decodeTask(child)
			if err != nil {
				return nil, err
			}
			if task != nil {
				seq = append(seq, task)
			}
		}
		return seq, nil
	}
	return nil, fmt.Errorf("line %d: invalid task, expected string, script mapping or list", node.Line)
}

// taskRunner executes tasks inside a project
type taskRunner struct {
	runner   Runner
	env      []string
	dir      string
	agent    Agent
	manifest *Manifest
}

// run dispatches task by its variant
func (t *taskRunner) run(ctx context.Context, task Task) error {
	switch task := task.(type) {
	case nil:
		return nil
	case Raw:
		if script, ok := task.scriptCandidate(); ok && t.manifest.HasScript(script) {
			fields := strings.Fields(string(task))
			cmd, err := Command(t.agent, VerbRun, fields...)
			if err != nil {
				return err
			}
			_, err = t.runner.Run(ctx, t.dir, t.env, cmd)
			return err
		}
		_, err := t.runner.Run(ctx, t.dir, t.env, string(task))
		return err
	case Action:
		if task == nil {
			return nil
		}
		return task(ctx)
	case ScriptRef:
		if !t.manifest.HasScript(task.Name) {
			return configErrorf("invalid task, script %q does not exist in %s", task.Name, t.manifest.Path)
		}
		cmd, err := Command(t.agent, VerbRun, append([]string{task.Name}, task.Args...)...)
		if err != nil {
			return err
		}
		_, err = t.runner.Run(ctx, t.dir, t.env, cmd)
		return err
	case Sequence:
		for _, sub := range task {
			if err := t.run(ctx, sub); err != nil {
				return err
			}
		}
		return nil
	default:
		return configErrorf("invalid task of type %T", task)
	}
}
