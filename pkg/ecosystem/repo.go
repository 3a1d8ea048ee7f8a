package ecosystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"
)

// DefaultBranch is checked out when a RepoRef names neither a branch, a tag nor a commit.
const DefaultBranch = "main"

// A RepoRef pins a repository to a checkout target.
// When resolving the target, Tag takes precedence over Commit, which takes precedence over Branch.
type RepoRef struct {
	Repo string `yaml:"repo"` // Clone URL or "owner/name" shorthand for GitHub

	Branch string `yaml:"branch"`
	Tag    string `yaml:"tag"`
	Commit string `yaml:"commit"`

	Shallow bool `yaml:"shallow"` // Clone and fetch with depth 1 and without tags
}

// NormalizeRepoURL expands an "owner/name" shorthand into a full GitHub clone URL.
// Anything containing a colon is assumed to already be a URL and is returned unchanged.
func NormalizeRepoURL(repo string) string {
	if strings.Contains(repo, ":") {
		return repo
	}
	return fmt.Sprintf("https://github.com/%s.git", repo)
}

// branch returns the ref's branch or DefaultBranch if none was set
func (r RepoRef) branch() string {
	if r.Branch == "" {
		return DefaultBranch
	}
	return r.Branch
}

// A Synchronizer keeps working copies pinned to RepoRefs.
type Synchronizer struct {
	Runner Runner
	Env    []string
	Log    *logrus.Entry
}

// Sync ensures dir contains a clean working copy of ref.Repo at the resolved target of ref.
// An existing clone of the same remote is reused and updated in place, anything else in dir is deleted and re-cloned.
func (s *Synchronizer) Sync(ctx context.Context, ref RepoRef, dir string) error {
	repo := NormalizeRepoURL(ref.Repo)
	branch := ref.branch()

	needClone := true
	if _, err := os.Stat(dir); err == nil {
		current, err := RemoteURL(dir)
		if err == nil && current == repo {
			s.Log.Debugf("Reusing existing clone of %s at %s", repo, dir)
			needClone = false
		} else {
			if err != nil {
				s.Log.Debugf("%s is not a usable repository, re-cloning - %v", dir, err)
			} else {
				s.Log.Infof("%s holds a clone of %s instead of %s, re-cloning", dir, current, repo)
			}
			if err := os.RemoveAll(dir); err != nil {
				return &SyncError{Repo: repo, Dir: dir, Err: err}
			}
		}
	}

	runGit := func(cwd, args string) error {
		if _, err := s.Runner.Run(ctx, cwd, s.Env, "git "+args); err != nil {
			return &SyncError{Repo: repo, Dir: dir, Err: err}
		}
		return nil
	}

	if needClone {
		s.Log.Infof("Cloning %s into %s", repo, dir)
		if ref.Shallow {
			target := branch
			if ref.Tag != "" {
				target = ref.Tag
			}
			if err := runGit("", fmt.Sprintf("-c advice.detachedHead=false clone --depth=1 --no-tags --branch %s %s %s", shellQuote(target), shellQuote(repo), shellQuote(dir))); err != nil {
				return err
			}
		} else {
			if err := runGit("", fmt.Sprintf("clone %s %s", shellQuote(repo), shellQuote(dir))); err != nil {
				return err
			}
		}
	}

	if err := runGit(dir, "clean -fdxq"); err != nil {
		return err
	}
	// Tracked files, e.g. an overridden package.json of a previous run, would survive the checkout
	if err := runGit(dir, "reset --hard --quiet"); err != nil {
		return err
	}

	fetchTarget := shellQuote(branch)
	if ref.Tag != "" {
		fetchTarget = "tag " + shellQuote(ref.Tag)
	} else if ref.Commit != "" {
		fetchTarget = shellQuote(ref.Commit)
	}
	fetchFlags := "--tags"
	if ref.Shallow {
		fetchFlags = "--depth=1 --no-tags"
	}
	if err := runGit(dir, fmt.Sprintf("fetch %s origin %s", fetchFlags, fetchTarget)); err != nil {
		return err
	}

	if ref.Shallow {
		switch {
		case ref.Tag != "":
			return runGit(dir, "-c advice.detachedHead=false checkout "+shellQuote("tags/"+ref.Tag))
		case ref.Commit != "":
			return runGit(dir, "-c advice.detachedHead=false checkout "+shellQuote(ref.Commit))
		default:
			if err := runGit(dir, "-c advice.detachedHead=false checkout "+shellQuote(branch)); err != nil {
				return err
			}
			// A reused clone's local branch does not move on fetch
			return runGit(dir, "reset --hard FETCH_HEAD")
		}
	}

	if err := runGit(dir, "checkout "+shellQuote(branch)); err != nil {
		return err
	}
	if err := runGit(dir, "merge FETCH_HEAD"); err != nil {
		return err
	}
	if ref.Tag != "" {
		return runGit(dir, "reset --hard "+shellQuote(ref.Tag))
	} else if ref.Commit != "" {
		return runGit(dir, "reset --hard "+shellQuote(ref.Commit))
	}
	return nil
}

// RemoteURL returns the URL of the origin remote of the repository at dir.
// dir has to be the root of the working copy, parent repositories are not considered.
func RemoteURL(dir string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", errors.Join(fmt.Errorf("failed to open repository at %s", dir), err)
	}
	remote, err := repo.Remote("origin")
	if err != nil {
		return "", errors.Join(fmt.Errorf("failed to get origin remote of %s", dir), err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("origin remote of %s has no URLs configured", dir)
	}
	return urls[0], nil
}

// HeadCommit returns the hash of the commit currently checked out at dir
func HeadCommit(dir string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", errors.Join(fmt.Errorf("failed to open repository at %s", dir), err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", errors.Join(fmt.Errorf("failed to get HEAD of %s", dir), err)
	}
	return head.Hash().String(), nil
}

// resolveRef returns the hash the given reference points to, e.g. refs/bisect/bad
func resolveRef(dir, name string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", errors.Join(fmt.Errorf("failed to open repository at %s", dir), err)
	}
	ref, err := repo.Reference(plumbing.ReferenceName(name), true)
	if err != nil {
		return "", errors.Join(fmt.Errorf("failed to resolve %s in %s", name, dir), err)
	}
	return ref.Hash().String(), nil
}

// shellQuote quotes s for use as a single sh word
func shellQuote(s string) string {
	if s != "" && strings.Trim(s, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_./:@+=,") == "" {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
