package ecosystem

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"
)

// NonFunctionalCommit matches subjects of release and documentation commits, which are skipped during bisection
var NonFunctionalCommit = regexp.MustCompile(`^(?:release|docs)[:(]`)

// A Probe decides whether the currently checked out commit is good (nil) or bad (an error)
type Probe func(ctx context.Context) error

// A Bisector drives git bisect over the history of the repository at Dir using a probe for verdicts.
type Bisector struct {
	Runner Runner
	Env    []string
	Dir    string

	Skip *regexp.Regexp // Subjects of commits never probed, NonFunctionalCommit if nil

	Log *logrus.Entry
}

// An OffendingCommit is the first bad commit found by a bisection
type OffendingCommit struct {
	Commit string

	CommitMessage string
	CommitDate    string
	CommitAuthor  string
}

// Bisect searches the commits between good and the current HEAD, which is assumed to be bad, for the first bad commit.
// Release and documentation commits are skipped without probing them.
// The bisect state is always reset before returning, a failing reset is only logged.
// The returned commit is nil if the search did not finish.
func (b *Bisector) Bisect(ctx context.Context, good string, probe Probe) (oc *OffendingCommit, err error) {
	defer func() {
		// The reset has to happen even if ctx was cancelled
		if _, resetErr := b.git(context.WithoutCancel(ctx), "bisect reset"); resetErr != nil {
			b.Log.Errorf("Error while resetting bisect - %v", resetErr)
		}
	}()

	oc, err = b.search(ctx, good, probe)
	if err != nil {
		b.Log.Errorf("Error while bisecting - %v", err)
	}
	return oc, err
}

func (b *Bisector) search(ctx context.Context, good string, probe Probe) (*OffendingCommit, error) {
	if _, err := b.git(ctx, "bisect start"); err != nil {
		return nil, err
	}
	if _, err := b.git(ctx, "bisect bad"); err != nil {
		return nil, err
	}
	bisecting, err := b.step(ctx, "good "+shellQuote(good))
	if err != nil {
		return nil, err
	}

	skip := b.Skip
	if skip == nil {
		skip = NonFunctionalCommit
	}

	probes := 0
	for bisecting {
		out, err := b.git(ctx, "log -1 --format=%s")
		if err != nil {
			return nil, err
		}
		subject := strings.TrimSpace(out)

		if skip.MatchString(subject) {
			b.Log.Infof("Skipping non-functional commit %q", subject)
			if bisecting, err = b.step(ctx, "skip"); err != nil {
				return nil, err
			}
			continue
		}

		probes++
		b.Log.Infof("Probe %d on commit %q", probes, subject)
		probeErr := b.runProbe(ctx, probe)

		// Build tooling can modify tracked files
		if _, err := b.git(ctx, "reset --hard --quiet"); err != nil {
			return nil, err
		}

		verdict := "good"
		if probeErr != nil {
			b.Log.Infof("Commit %q is bad - %v", subject, probeErr)
			verdict = "bad"
		} else {
			b.Log.Infof("Commit %q is good", subject)
		}
		if bisecting, err = b.step(ctx, verdict); err != nil {
			return nil, err
		}
	}

	b.Log.Infof("Bisection finished after %d probes", probes)
	return b.offendingCommit()
}

// step runs "git bisect <args>" and reports whether git has more revisions to test
func (b *Bisector) step(ctx context.Context, args string) (bool, error) {
	out, err := b.git(ctx, "bisect "+args)
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && strings.Contains(cmdErr.Output, "only 'skip'ped commits left") {
			b.Log.Warnf("Only skipped commits are left to test, the first bad commit can not be determined exactly")
			return false, nil
		}
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "bisecting:") {
			return true, nil
		}
	}
	return false, nil
}

// runProbe invokes probe, turning a panic into a failure
func (b *Bisector) runProbe(ctx context.Context, probe Probe) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()
	return probe(ctx)
}

func (b *Bisector) git(ctx context.Context, args string) (string, error) {
	return b.Runner.Run(ctx, b.Dir, b.Env, "git "+args)
}

// offendingCommit describes the commit git marked as first bad commit
func (b *Bisector) offendingCommit() (*OffendingCommit, error) {
	hash, err := resolveRef(b.Dir, "refs/bisect/bad")
	if err != nil {
		return nil, err
	}
	oc := &OffendingCommit{Commit: hash}

	repo, err := git.PlainOpen(b.Dir)
	if err != nil {
		b.Log.Warnf("Couldn't get additional offending commit info - %v", err)
		return oc, nil
	}
	commit, err := repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		b.Log.Warnf("Couldn't get additional offending commit info - %v", err)
		return oc, nil
	}
	oc.CommitMessage = strings.TrimSpace(commit.Message)
	oc.CommitDate = commit.Author.When.Format(time.RFC1123Z)
	oc.CommitAuthor = fmt.Sprintf("%s <%s>", commit.Author.Name, commit.Author.Email)

	b.Log.Infof("Found offending commit %s. Message: %q, Date: %q, Author: %q", oc.Commit, oc.CommitMessage, oc.CommitDate, oc.CommitAuthor)
	return oc, nil
}
