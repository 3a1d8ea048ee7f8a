package ecosystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRepoURL(t *testing.T) {
	values := []struct {
		repo     string
		expected string
	}{
		{"vitejs/vite", "https://github.com/vitejs/vite.git"},
		{"https://gitlab.com/org/project.git", "https://gitlab.com/org/project.git"},
		{"git@github.com:vitejs/vite.git", "git@github.com:vitejs/vite.git"},
		{"file:///tmp/repo", "file:///tmp/repo"},
	}

	for _, v := range values {
		assert.Equal(t, v.expected, NormalizeRepoURL(v.repo), "Wrong URL for %s", v.repo)
	}
}

func TestShellQuote(t *testing.T) {
	values := []struct {
		word     string
		expected string
	}{
		{"main", "main"},
		{"feat/some-branch", "feat/some-branch"},
		{"https://github.com/vitejs/vite.git", "https://github.com/vitejs/vite.git"},
		{"", "''"},
		{"two words", "'two words'"},
		{"it's", `'it'"'"'s'`},
		{"$(rm -rf /)", "'$(rm -rf /)'"},
	}

	for _, v := range values {
		assert.Equal(t, v.expected, shellQuote(v.word), "Wrong quoting of %q", v.word)
	}
}

func TestSyncCommands(t *testing.T) {
	values := []struct {
		name     string
		ref      RepoRef
		expected []string
	}{
		{
			"Shallow branch",
			RepoRef{Repo: "org/repo", Branch: "next", Shallow: true},
			[]string{
				"git -c advice.detachedHead=false clone --depth=1 --no-tags --branch next https://github.com/org/repo.git DIR",
				"git clean -fdxq",
				"git reset --hard --quiet",
				"git fetch --depth=1 --no-tags origin next",
				"git -c advice.detachedHead=false checkout next",
				"git reset --hard FETCH_HEAD",
			},
		},
		{
			"Shallow tag",
			RepoRef{Repo: "org/repo", Tag: "v1.2.3", Shallow: true},
			[]string{
				"git -c advice.detachedHead=false clone --depth=1 --no-tags --branch v1.2.3 https://github.com/org/repo.git DIR",
				"git clean -fdxq",
				"git reset --hard --quiet",
				"git fetch --depth=1 --no-tags origin tag v1.2.3",
				"git -c advice.detachedHead=false checkout tags/v1.2.3",
			},
		},
		{
			"Shallow commit",
			RepoRef{Repo: "org/repo", Commit: "abc123", Shallow: true},
			[]string{
				"git -c advice.detachedHead=false clone --depth=1 --no-tags --branch main https://github.com/org/repo.git DIR",
				"git clean -fdxq",
				"git reset --hard --quiet",
				"git fetch --depth=1 --no-tags origin abc123",
				"git -c advice.detachedHead=false checkout abc123",
			},
		},
		{
			"Full branch",
			RepoRef{Repo: "org/repo"},
			[]string{
				"git clone https://github.com/org/repo.git DIR",
				"git clean -fdxq",
				"git reset --hard --quiet",
				"git fetch --tags origin main",
				"git checkout main",
				"git merge FETCH_HEAD",
			},
		},
		{
			"Full commit",
			RepoRef{Repo: "org/repo", Branch: "main", Commit: "abc123"},
			[]string{
				"git clone https://github.com/org/repo.git DIR",
				"git clean -fdxq",
				"git reset --hard --quiet",
				"git fetch --tags origin abc123",
				"git checkout main",
				"git merge FETCH_HEAD",
				"git reset --hard abc123",
			},
		},
		{
			"Tag takes precedence over commit",
			RepoRef{Repo: "org/repo", Commit: "abc123", Tag: "v1.2.3"},
			[]string{
				"git clone https://github.com/org/repo.git DIR",
				"git clean -fdxq",
				"git reset --hard --quiet",
				"git fetch --tags origin tag v1.2.3",
				"git checkout main",
				"git merge FETCH_HEAD",
				"git reset --hard v1.2.3",
			},
		},
	}

	for _, v := range values {
		t.Run(v.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "repo")
			runner := &scriptedRunner{}
			s := &Synchronizer{Runner: runner, Log: mutedLog()}

			require.NoError(t, s.Sync(context.Background(), v.ref, dir))

			expected := make([]string, len(v.expected))
			for i, cmd := range v.expected {
				expected[i] = replaceDir(cmd, shellQuote(dir))
			}
			assert.Equal(t, expected, runner.commands, "Wrong git commands")
			assert.Equal(t, "", runner.dirs[0], "Clone didn't run outside of the target directory")
			for _, d := range runner.dirs[1:] {
				assert.Equal(t, dir, d, "Command didn't run inside of the working copy")
			}
		})
	}
}

func replaceDir(cmd, dir string) string {
	if n := len(cmd); n >= 3 && cmd[n-3:] == "DIR" {
		return cmd[:n-3] + dir
	}
	return cmd
}

func TestSyncErrorWrapsCommandError(t *testing.T) {
	runner := &scriptedRunner{respond: func(dir, command string) (string, error) {
		if command == "git fetch --tags origin main" {
			return "fatal: couldn't find remote ref main", &CommandError{Command: command, Dir: dir}
		}
		return "", nil
	}}
	s := &Synchronizer{Runner: runner, Log: mutedLog()}

	err := s.Sync(context.Background(), RepoRef{Repo: "org/repo"}, filepath.Join(t.TempDir(), "repo"))

	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, "https://github.com/org/repo.git", syncErr.Repo)
	var cmdErr *CommandError
	assert.ErrorAs(t, err, &cmdErr, "SyncError doesn't wrap the failing command")
}

func TestSync(t *testing.T) {
	runner := NewShellRunner(mutedLog())
	ctx := context.Background()

	t.Run("Repeated sync reuses and updates the clone", func(t *testing.T) {
		origin := newOrigin(t)
		commitFile(t, origin, "file.txt", "1", "feat: first")

		dir := filepath.Join(t.TempDir(), "repo")
		s := &Synchronizer{Runner: runner, Log: mutedLog()}
		ref := RepoRef{Repo: fileURL(origin), Branch: "main"}

		require.NoError(t, s.Sync(ctx, ref, dir))
		head, err := HeadCommit(dir)
		require.NoError(t, err)
		assert.Equal(t, gitCmd(t, origin, "rev-parse", "HEAD"), head)

		// Marks this clone and leaves some dirt behind
		gitCmd(t, dir, "config", "ecosystem.marker", "kept")
		require.NoError(t, os.WriteFile(filepath.Join(dir, "untracked.txt"), []byte("dirt"), 0644))
		second := commitFile(t, origin, "file.txt", "2", "feat: second")

		require.NoError(t, s.Sync(ctx, ref, dir))
		head, err = HeadCommit(dir)
		require.NoError(t, err)
		assert.Equal(t, second, head, "Reused clone wasn't updated")
		assert.Equal(t, "kept", gitCmd(t, dir, "config", "ecosystem.marker"), "Clone wasn't reused")
		assert.NoFileExists(t, filepath.Join(dir, "untracked.txt"), "Untracked files weren't removed")

		// Syncing again without changes is a no-op
		require.NoError(t, s.Sync(ctx, ref, dir))
		head, err = HeadCommit(dir)
		require.NoError(t, err)
		assert.Equal(t, second, head)
	})
	t.Run("Tracked changes of a reused clone are discarded", func(t *testing.T) {
		origin := newOrigin(t)
		commitFile(t, origin, ManifestFile, `{"name":"x"}`, "feat: first")

		dir := filepath.Join(t.TempDir(), "repo")
		s := &Synchronizer{Runner: runner, Log: mutedLog()}
		ref := RepoRef{Repo: fileURL(origin)}
		require.NoError(t, s.Sync(ctx, ref, dir))

		// Left behind by applying overrides
		overridden := `{"name":"x","overrides":{}}`
		require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte(overridden), 0644))

		require.NoError(t, s.Sync(ctx, ref, dir))
		content, err := os.ReadFile(filepath.Join(dir, ManifestFile))
		require.NoError(t, err)
		assert.Equal(t, `{"name":"x"}`, string(content), "Tracked change survived an idle sync")

		require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte(overridden), 0644))
		upstream := commitFile(t, origin, ManifestFile, `{"name":"x","version":"2.0.0"}`, "feat: second")

		require.NoError(t, s.Sync(ctx, ref, dir), "Tracked change blocked the update")
		head, err := HeadCommit(dir)
		require.NoError(t, err)
		assert.Equal(t, upstream, head)
		content, err = os.ReadFile(filepath.Join(dir, ManifestFile))
		require.NoError(t, err)
		assert.Equal(t, `{"name":"x","version":"2.0.0"}`, string(content))
	})
	t.Run("Clone of another remote is replaced", func(t *testing.T) {
		origin := newOrigin(t)
		commitFile(t, origin, "file.txt", "origin", "feat: origin")
		other := newOrigin(t)
		commitFile(t, other, "file.txt", "other", "feat: other")

		dir := filepath.Join(t.TempDir(), "repo")
		s := &Synchronizer{Runner: runner, Log: mutedLog()}

		require.NoError(t, s.Sync(ctx, RepoRef{Repo: fileURL(other)}, dir))
		gitCmd(t, dir, "config", "ecosystem.marker", "stale")

		require.NoError(t, s.Sync(ctx, RepoRef{Repo: fileURL(origin)}, dir))
		remote, err := RemoteURL(dir)
		require.NoError(t, err)
		assert.Equal(t, fileURL(origin), remote)
		content, err := os.ReadFile(filepath.Join(dir, "file.txt"))
		require.NoError(t, err)
		assert.Equal(t, "origin", string(content))

		_, err = runner.Run(ctx, dir, nil, "git config ecosystem.marker")
		assert.Error(t, err, "Stale clone wasn't removed")
	})
	t.Run("Directory that isn't a repository is replaced", func(t *testing.T) {
		origin := newOrigin(t)
		commitFile(t, origin, "file.txt", "1", "feat: first")

		dir := filepath.Join(t.TempDir(), "repo")
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "leftover.txt"), []byte("x"), 0644))

		s := &Synchronizer{Runner: runner, Log: mutedLog()}
		require.NoError(t, s.Sync(ctx, RepoRef{Repo: fileURL(origin)}, dir))

		assert.FileExists(t, filepath.Join(dir, "file.txt"))
		assert.NoFileExists(t, filepath.Join(dir, "leftover.txt"))
	})
	t.Run("Full sync of a tag checks out the tagged commit", func(t *testing.T) {
		origin := newOrigin(t)
		tagged := commitFile(t, origin, "file.txt", "1", "release: v1.0.0")
		gitCmd(t, origin, "tag", "v1.0.0")
		commitFile(t, origin, "file.txt", "2", "feat: after release")

		dir := filepath.Join(t.TempDir(), "repo")
		s := &Synchronizer{Runner: runner, Log: mutedLog()}
		require.NoError(t, s.Sync(ctx, RepoRef{Repo: fileURL(origin), Tag: "v1.0.0"}, dir))

		head, err := HeadCommit(dir)
		require.NoError(t, err)
		assert.Equal(t, tagged, head)
	})
	t.Run("Shallow sync fetches a single commit", func(t *testing.T) {
		origin := newOrigin(t)
		commitFile(t, origin, "file.txt", "1", "feat: first")
		commitFile(t, origin, "file.txt", "2", "feat: second")
		last := commitFile(t, origin, "file.txt", "3", "feat: third")

		dir := filepath.Join(t.TempDir(), "repo")
		s := &Synchronizer{Runner: runner, Log: mutedLog()}
		require.NoError(t, s.Sync(ctx, RepoRef{Repo: fileURL(origin), Shallow: true}, dir))

		head, err := HeadCommit(dir)
		require.NoError(t, err)
		assert.Equal(t, last, head)
		assert.Equal(t, "1", gitCmd(t, dir, "rev-list", "--count", "HEAD"), "Clone isn't shallow")
	})
}

func TestRemoteURLOfNonRepository(t *testing.T) {
	_, err := RemoteURL(t.TempDir())
	assert.Error(t, err)
}
