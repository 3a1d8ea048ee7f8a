package ecosystem

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// A Runner executes a shell command synchronously in dir with the given environment and returns its captured output.
// A non-zero exit status results in a [*CommandError].
type Runner interface {
	Run(ctx context.Context, dir string, env []string, command string) (string, error)
}

// ShellRunner runs commands through "sh -c", streaming every output line to Log while capturing it.
type ShellRunner struct {
	Log *logrus.Entry
}

// NewShellRunner returns a ShellRunner logging to log. A nil log mutes the command output.
func NewShellRunner(log *logrus.Entry) *ShellRunner {
	if log == nil {
		muted := logrus.New()
		muted.SetOutput(io.Discard)
		log = logrus.NewEntry(muted)
	}
	return &ShellRunner{Log: log}
}

func (r *ShellRunner) Run(ctx context.Context, dir string, env []string, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.Env = env
	// Children of sh share its pipes, so cancellation has to reach the whole group
	setProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", err
	}

	r.Log.Infof("$ %s", command)
	r.Log.Debugf("Running in %s", dir)
	if err := cmd.Start(); err != nil {
		return "", &CommandError{Command: command, Dir: dir, Err: err}
	}

	// A process that left the group may still hold the pipes open after cancellation
	stop := context.AfterFunc(ctx, func() {
		time.AfterFunc(waitDelay, func() {
			stdout.Close()
			stderr.Close()
		})
	})
	defer stop()

	// Both pipes have to be drained concurrently or the command may block on a full pipe
	var out bytes.Buffer
	var outMu sync.Mutex
	var g errgroup.Group
	pump := func(rd io.Reader, level logrus.Level) func() error {
		return func() error {
			// No line length limit, a minified bundle in an error dump is a single line
			br := bufio.NewReader(rd)
			for {
				line, err := br.ReadString('\n')
				if line != "" {
					line = strings.TrimSuffix(line, "\n")
					outMu.Lock()
					out.WriteString(line)
					out.WriteByte('\n')
					outMu.Unlock()
					r.Log.Log(level, line)
				}
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					// Keep the pipe drained so the command can't block on a full pipe
					io.Copy(io.Discard, rd)
					return err
				}
			}
		}
	}
	g.Go(pump(stdout, logrus.DebugLevel))
	g.Go(pump(stderr, logrus.DebugLevel))

	readErr := g.Wait()
	waitErr := cmd.Wait()
	if waitErr != nil {
		return out.String(), &CommandError{Command: command, Dir: dir, Output: out.String(), Err: waitErr}
	}
	if readErr != nil {
		return out.String(), &CommandError{Command: command, Dir: dir, Output: out.String(), Err: readErr}
	}
	return out.String(), nil
}

// How long to wait for the pipes to close after the command exited or was killed
const waitDelay = 5 * time.Second

// Environment variables forced onto every command run by a [Session].
var forcedEnv = map[string]string{
	"CI":                             "true",
	"TURBO_FORCE":                    "true",
	"YARN_ENABLE_IMMUTABLE_INSTALLS": "false",
	"NODE_OPTIONS":                   "--max-old-space-size=6144",
	"ECOSYSTEM_CI":                   "true",
}

// buildEnv returns base extended by the forced environment variables. Forced values replace inherited ones.
func buildEnv(base []string) []string {
	env := make([]string, 0, len(base)+len(forcedEnv))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, forced := forcedEnv[key]; forced {
			continue
		}
		env = append(env, kv)
	}
	for _, key := range sortedKeys(forcedEnv) {
		env = append(env, key+"="+forcedEnv[key])
	}
	return env
}

// processEnv returns the environment of the running process extended by the forced variables.
func processEnv() []string {
	return buildEnv(os.Environ())
}
