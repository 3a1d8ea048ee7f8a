package ecosystem

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/otiai10/copy"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// scriptedRunner records every command instead of running it.
// respond, if set, decides the output and error of a command.
type scriptedRunner struct {
	commands []string
	dirs     []string
	ctxErrs  []error
	respond  func(dir, command string) (string, error)
}

func (r *scriptedRunner) Run(ctx context.Context, dir string, env []string, command string) (string, error) {
	r.commands = append(r.commands, command)
	r.dirs = append(r.dirs, dir)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	if r.respond != nil {
		return r.respond(dir, command)
	}
	return "", nil
}

// count returns how often command was run
func (r *scriptedRunner) count(command string) int {
	n := 0
	for _, c := range r.commands {
		if c == command {
			n++
		}
	}
	return n
}

func mutedLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// testSession returns a session with its workspace in a temporary directory, running commands with runner
func testSession(t *testing.T, runner Runner) *Session {
	dir := t.TempDir()
	return &Session{
		ID:        "test",
		Workspace: filepath.Join(dir, "workspace"),
		Root:      dir,
		Runner:    runner,
		Core:      DefaultCoreConfig(),
		Log:       mutedLog(),
	}
}

// fixture copies the fixture project name into dir
func fixture(t *testing.T, name, dir string) {
	require.NoError(t, copy.Copy(filepath.Join("testdata", "projects", name), dir), "Failed to copy fixture %s", name)
}

func requireGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not installed")
	}
}

// gitCmd runs git in dir and returns its trimmed output
func gitCmd(t *testing.T, dir string, args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test Author",
		"GIT_AUTHOR_EMAIL=author@example.com",
		"GIT_COMMITTER_NAME=Test Author",
		"GIT_COMMITTER_EMAIL=author@example.com",
		"GIT_CONFIG_NOSYSTEM=1",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s failed: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

// newOrigin creates a repository with a main branch in a temporary directory
func newOrigin(t *testing.T) string {
	requireGit(t)
	dir := t.TempDir()
	gitCmd(t, dir, "init", "--quiet", "--initial-branch=main")
	gitCmd(t, dir, "config", "commit.gpgsign", "false")
	return dir
}

// commitFile writes content to file in the repository at dir and commits it, returning the commit hash
func commitFile(t *testing.T, dir, file, content, message string) string {
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0644))
	gitCmd(t, dir, "add", file)
	gitCmd(t, dir, "commit", "--quiet", "-m", message)
	return gitCmd(t, dir, "rev-parse", "HEAD")
}

// fileURL returns the clone URL of a local repository
func fileURL(dir string) string {
	return "file://" + dir
}
